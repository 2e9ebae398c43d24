package pipeline

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// fakeWAV builds a minimal RIFF header plus payload bytes.
func fakeWAV(payload []byte) []byte {
	b := make([]byte, wavHeaderSize+len(payload))
	copy(b[0:4], "RIFF")
	binary.LittleEndian.PutUint32(b[4:8], uint32(36+len(payload)))
	copy(b[8:12], "WAVE")
	copy(b[12:16], "fmt ")
	binary.LittleEndian.PutUint32(b[16:20], 16)
	copy(b[36:40], "data")
	binary.LittleEndian.PutUint32(b[40:44], uint32(len(payload)))
	copy(b[wavHeaderSize:], payload)
	return b
}

func TestConcatWAV(t *testing.T) {
	dir := t.TempDir()
	chunk1 := filepath.Join(dir, "rec_1.wav")
	chunk2 := filepath.Join(dir, "rec_2.wav")
	out := filepath.Join(dir, "rec_full.wav")

	if err := os.WriteFile(chunk1, fakeWAV([]byte("aaaa")), 0o644); err != nil {
		t.Fatalf("write chunk1: %v", err)
	}
	if err := os.WriteFile(chunk2, fakeWAV([]byte("bb")), 0o644); err != nil {
		t.Fatalf("write chunk2: %v", err)
	}

	if err := concatWAV([]string{chunk1, chunk2}, out); err != nil {
		t.Fatalf("concat: %v", err)
	}

	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if len(b) != wavHeaderSize+6 {
		t.Fatalf("output length = %d, want %d", len(b), wavHeaderSize+6)
	}
	if string(b[wavHeaderSize:]) != "aaaabb" {
		t.Errorf("payload = %q, want %q", b[wavHeaderSize:], "aaaabb")
	}
	if got := binary.LittleEndian.Uint32(b[4:8]); got != uint32(len(b)-8) {
		t.Errorf("RIFF size = %d, want %d", got, len(b)-8)
	}
	if got := binary.LittleEndian.Uint32(b[40:44]); got != 6 {
		t.Errorf("data size = %d, want 6", got)
	}
}

func TestConcatWAV_SingleChunkPassesThrough(t *testing.T) {
	dir := t.TempDir()
	chunk := filepath.Join(dir, "rec_1.wav")
	out := filepath.Join(dir, "rec_full.wav")
	src := fakeWAV([]byte("solo"))
	if err := os.WriteFile(chunk, src, 0o644); err != nil {
		t.Fatalf("write chunk: %v", err)
	}

	if err := concatWAV([]string{chunk}, out); err != nil {
		t.Fatalf("concat: %v", err)
	}

	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(b[wavHeaderSize:]) != "solo" {
		t.Errorf("payload = %q, want %q", b[wavHeaderSize:], "solo")
	}
}
