package diarize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/snarg/meeting-engine/internal/config"
	"github.com/snarg/meeting-engine/internal/speakers"
)

// Params are the algorithm knobs forwarded to the diarization service.
type Params struct {
	SegmentDuration   float64 `json:"segment_duration"`
	SegmentOverlap    float64 `json:"segment_overlap"`
	KnownThreshold    float64 `json:"known_threshold"`
	DistanceThreshold float64 `json:"distance_threshold"`
	MergeMaxPause     float64 `json:"merge_max_pause"`
	VADThreshold      float64 `json:"vad_threshold"`
	EnableVAD         bool    `json:"enable_vad"`
}

// ParamsFromConfig lifts the diarization settings out of the app config.
func ParamsFromConfig(cfg *config.Config) Params {
	return Params{
		SegmentDuration:   cfg.SegmentDuration,
		SegmentOverlap:    cfg.SegmentOverlap,
		KnownThreshold:    cfg.KnownThreshold,
		DistanceThreshold: cfg.ClusterThreshold,
		MergeMaxPause:     cfg.MergeMaxPause,
		VADThreshold:      cfg.VADThreshold,
		EnableVAD:         cfg.EnableVAD,
	}
}

// Diarizer produces a speaker timeline for an audio file. The external
// service does the VAD, windowed embedding, profile matching, and clustering;
// this side only supplies inputs and normalizes the output.
type Diarizer interface {
	Diarize(ctx context.Context, audioPath string, profiles []speakers.Profile) ([]Region, error)
}

// HTTPDiarizer calls the diarization service over HTTP.
type HTTPDiarizer struct {
	url    string
	params Params
	client *http.Client
}

func NewHTTPDiarizer(url string, params Params, timeout time.Duration) *HTTPDiarizer {
	return &HTTPDiarizer{
		url:    url,
		params: params,
		client: &http.Client{Timeout: timeout},
	}
}

type diarizeRequest struct {
	AudioPath     string             `json:"audio_path"`
	Params        Params             `json:"params"`
	KnownSpeakers []speakers.Profile `json:"known_speakers"`
}

type diarizeResponse struct {
	Segments []Region `json:"segments"`
}

// Diarize posts the audio path, parameters, and enrolled profiles, and
// returns the speaker timeline sorted by start with adjacent same-speaker
// regions merged per the configured pause.
func (d *HTTPDiarizer) Diarize(ctx context.Context, audioPath string, profiles []speakers.Profile) ([]Region, error) {
	payload, err := json.Marshal(diarizeRequest{
		AudioPath:     audioPath,
		Params:        d.params,
		KnownSpeakers: profiles,
	})
	if err != nil {
		return nil, fmt.Errorf("encode diarize request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("diarizer request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("diarizer API error (status %d): %s", resp.StatusCode, string(body))
	}

	var parsed diarizeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	timeline := parsed.Segments
	sort.Slice(timeline, func(i, j int) bool { return timeline[i].Start < timeline[j].Start })
	return MergeTimeline(timeline, d.params.MergeMaxPause), nil
}
