// Package asr calls an OpenAI-compatible /v1/audio/transcriptions endpoint
// and shapes its verbose_json output into the two transcript views the
// pipeline persists and publishes.
package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/snarg/meeting-engine/internal/database"
)

// Client calls the transcription endpoint.
type Client struct {
	url      string
	model    string
	beamSize int
	client   *http.Client
}

// Result carries both artifact forms of one transcription: the
// sentence-level view for live payloads and the word-level sequence that
// becomes the persisted transcript.
type Result struct {
	Language  string
	Duration  float64
	Sentences []database.Segment
	Words     []database.Segment
}

type apiResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
	Segments []struct {
		Text  string  `json:"text"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	} `json:"segments"`
	Words []struct {
		Word  string  `json:"word"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	} `json:"words"`
}

func NewClient(url, model string, beamSize int, timeout time.Duration) *Client {
	return &Client{
		url:      url,
		model:    model,
		beamSize: beamSize,
		client:   &http.Client{Timeout: timeout},
	}
}

// Transcribe sends the audio file as multipart form data, requesting
// verbose_json with both segment and word timestamps.
func (c *Client) Transcribe(ctx context.Context, audioPath, language string) (*Result, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("copy audio data: %w", err)
	}

	if c.model != "" {
		w.WriteField("model", c.model)
	}
	if language != "" {
		w.WriteField("language", language)
	}
	w.WriteField("response_format", "verbose_json")
	w.WriteField("timestamp_granularities[]", "word")
	w.WriteField("timestamp_granularities[]", "segment")
	if c.beamSize > 0 {
		w.WriteField("beam_size", fmt.Sprintf("%d", c.beamSize))
	}
	w.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("asr request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("asr API error (status %d): %s", resp.StatusCode, string(body))
	}

	var parsed apiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return shapeResult(&parsed), nil
}

// shapeResult converts the raw API response into the two views. Servers that
// return no word timestamps fall back to the segment view for both.
func shapeResult(r *apiResponse) *Result {
	res := &Result{Language: r.Language, Duration: r.Duration}

	for i, seg := range r.Segments {
		res.Sentences = append(res.Sentences, database.Segment{
			ID:    i,
			Text:  strings.TrimSpace(seg.Text),
			Start: seg.Start,
			End:   seg.End,
		})
	}

	for i, word := range r.Words {
		res.Words = append(res.Words, database.Segment{
			ID:    i,
			Text:  strings.TrimSpace(word.Word),
			Start: word.Start,
			End:   word.End,
		})
	}
	if len(res.Words) == 0 {
		res.Words = res.Sentences
	}
	return res
}
