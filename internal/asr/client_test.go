package asr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestShapeResult(t *testing.T) {
	t.Run("words_and_sentences_kept_separate", func(t *testing.T) {
		var r apiResponse
		raw := `{
			"language": "vi",
			"duration": 3.5,
			"segments": [{"text": " xin chào mọi người ", "start": 0, "end": 3.5}],
			"words": [
				{"word": " xin", "start": 0, "end": 0.8},
				{"word": "chào ", "start": 0.8, "end": 1.5}
			]
		}`
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			t.Fatalf("decode fixture: %v", err)
		}

		res := shapeResult(&r)

		if res.Language != "vi" || res.Duration != 3.5 {
			t.Errorf("metadata: got %q/%v", res.Language, res.Duration)
		}
		if len(res.Sentences) != 1 || res.Sentences[0].Text != "xin chào mọi người" {
			t.Errorf("sentences = %+v", res.Sentences)
		}
		if len(res.Words) != 2 {
			t.Fatalf("expected 2 words, got %d", len(res.Words))
		}
		if res.Words[0].Text != "xin" || res.Words[1].Text != "chào" {
			t.Errorf("words not trimmed: %+v", res.Words)
		}
		if res.Words[1].ID != 1 {
			t.Errorf("word ids not sequential: %+v", res.Words)
		}
	})

	t.Run("missing_words_fall_back_to_segments", func(t *testing.T) {
		var r apiResponse
		raw := `{"segments": [{"text": "hello", "start": 0, "end": 1}]}`
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			t.Fatalf("decode fixture: %v", err)
		}

		res := shapeResult(&r)

		if len(res.Words) != 1 || res.Words[0].Text != "hello" {
			t.Errorf("expected segment fallback, got %+v", res.Words)
		}
	})
}

func TestTranscribe_SendsMultipartForm(t *testing.T) {
	audio := filepath.Join(t.TempDir(), "meeting_full.wav")
	if err := os.WriteFile(audio, []byte("RIFFdata"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	var gotModel, gotLanguage, gotFormat string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotModel = r.FormValue("model")
		gotLanguage = r.FormValue("language")
		gotFormat = r.FormValue("response_format")
		if _, _, err := r.FormFile("file"); err != nil {
			t.Errorf("file part missing: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"language":"vi","words":[{"word":"ok","start":0,"end":0.5}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "whisper-large-v3", 5, 10*time.Second)
	res, err := c.Transcribe(context.Background(), audio, "vi")
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}

	if gotModel != "whisper-large-v3" {
		t.Errorf("model = %q", gotModel)
	}
	if gotLanguage != "vi" {
		t.Errorf("language = %q", gotLanguage)
	}
	if gotFormat != "verbose_json" {
		t.Errorf("response_format = %q", gotFormat)
	}
	if len(res.Words) != 1 || res.Words[0].Text != "ok" {
		t.Errorf("words = %+v", res.Words)
	}
}

func TestTranscribe_UpstreamErrorSurfaced(t *testing.T) {
	audio := filepath.Join(t.TempDir(), "a.wav")
	if err := os.WriteFile(audio, []byte("x"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "m", 0, 10*time.Second)
	if _, err := c.Transcribe(context.Background(), audio, "vi"); err == nil {
		t.Fatal("expected error for 503 response")
	}
}
