package diarize

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/snarg/meeting-engine/internal/speakers"
)

func TestHTTPDiarizer_SortsAndMerges(t *testing.T) {
	var gotReq diarizeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		// Out of order, with two mergeable S1 regions.
		json.NewEncoder(w).Encode(diarizeResponse{Segments: []Region{
			{Start: 4.2, End: 6, Speaker: "S2"},
			{Start: 0, End: 2, Speaker: "S1"},
			{Start: 2.3, End: 4, Speaker: "S1"},
		}})
	}))
	defer srv.Close()

	params := Params{MergeMaxPause: 0.7, SegmentDuration: 3}
	d := NewHTTPDiarizer(srv.URL, params, 10*time.Second)
	profiles := []speakers.Profile{{Name: "Anh A", Embedding: []float32{0.1, 0.2}}}

	got, err := d.Diarize(context.Background(), "/audio/req-1/rec_full.wav", profiles)
	if err != nil {
		t.Fatalf("diarize: %v", err)
	}

	if gotReq.AudioPath != "/audio/req-1/rec_full.wav" {
		t.Errorf("audio_path = %q", gotReq.AudioPath)
	}
	if gotReq.Params.MergeMaxPause != 0.7 {
		t.Errorf("params not forwarded: %+v", gotReq.Params)
	}
	if len(gotReq.KnownSpeakers) != 1 || gotReq.KnownSpeakers[0].Name != "Anh A" {
		t.Errorf("known_speakers = %+v", gotReq.KnownSpeakers)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 regions after merge, got %d: %v", len(got), got)
	}
	if got[0].Speaker != "S1" || got[0].Start != 0 || got[0].End != 4 {
		t.Errorf("region 0 = %+v, want S1 [0,4]", got[0])
	}
	if got[1].Speaker != "S2" {
		t.Errorf("region 1 = %+v, want S2", got[1])
	}
}

func TestHTTPDiarizer_ErrorStatusSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no cuda device", http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := NewHTTPDiarizer(srv.URL, Params{}, 10*time.Second)
	if _, err := d.Diarize(context.Background(), "/a.wav", nil); err == nil {
		t.Fatal("expected error for 500 response")
	}
}
