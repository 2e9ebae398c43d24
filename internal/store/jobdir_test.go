package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAssembledPath(t *testing.T) {
	s := New("/data/audio")

	tests := []struct {
		name     string
		filename string
		want     string
	}{
		{"wav_input", "meeting.wav", "/data/audio/req-1/meeting_full.wav"},
		{"other_extension", "recording.webm", "/data/audio/req-1/recording_full.wav"},
		{"no_extension", "audio", "/data/audio/req-1/audio_full.wav"},
		{"path_stripped", "../../etc/passwd.wav", "/data/audio/req-1/passwd_full.wav"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.AssembledPath("req-1", tt.filename); got != tt.want {
				t.Errorf("AssembledPath = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSaveChunk(t *testing.T) {
	s := New(t.TempDir())

	t.Run("requires_job_dir", func(t *testing.T) {
		err := s.SaveChunk("missing", "a_1.wav", strings.NewReader("data"))
		if err == nil {
			t.Fatal("expected error for missing job dir")
		}
	})

	t.Run("writes_chunk", func(t *testing.T) {
		if err := s.CreateDir("req-1"); err != nil {
			t.Fatalf("create dir: %v", err)
		}
		if err := s.SaveChunk("req-1", "a_1.wav", strings.NewReader("data")); err != nil {
			t.Fatalf("save chunk: %v", err)
		}
		b, err := os.ReadFile(filepath.Join(s.Dir("req-1"), "a_1.wav"))
		if err != nil {
			t.Fatalf("read chunk: %v", err)
		}
		if string(b) != "data" {
			t.Errorf("chunk content = %q, want %q", b, "data")
		}
	})

	t.Run("resend_replaces_previous_content", func(t *testing.T) {
		if err := s.SaveChunk("req-1", "a_1.wav", strings.NewReader("retried")); err != nil {
			t.Fatalf("resave chunk: %v", err)
		}
		b, err := os.ReadFile(filepath.Join(s.Dir("req-1"), "a_1.wav"))
		if err != nil {
			t.Fatalf("read chunk: %v", err)
		}
		if string(b) != "retried" {
			t.Errorf("chunk content = %q, want %q", b, "retried")
		}
		entries, err := os.ReadDir(s.Dir("req-1"))
		if err != nil {
			t.Fatalf("read dir: %v", err)
		}
		if len(entries) != 1 {
			t.Errorf("expected a single chunk file after resend, got %d", len(entries))
		}
	})

	t.Run("strips_path_from_filename", func(t *testing.T) {
		if err := s.CreateDir("req-2"); err != nil {
			t.Fatalf("create dir: %v", err)
		}
		if err := s.SaveChunk("req-2", "../../escape_1.wav", strings.NewReader("x")); err != nil {
			t.Fatalf("save chunk: %v", err)
		}
		if _, err := os.Stat(filepath.Join(s.Dir("req-2"), "escape_1.wav")); err != nil {
			t.Errorf("chunk not written inside job dir: %v", err)
		}
	})
}

func TestChunkFiles_NumericOrder(t *testing.T) {
	s := New(t.TempDir())
	if err := s.CreateDir("req-1"); err != nil {
		t.Fatalf("create dir: %v", err)
	}
	// Written out of order, and with enough chunks that lexical ordering
	// would put 10 before 2.
	for _, name := range []string{"rec_10.wav", "rec_2.wav", "rec_1.wav"} {
		if err := s.SaveChunk("req-1", name, strings.NewReader("x")); err != nil {
			t.Fatalf("save %s: %v", name, err)
		}
	}

	got, err := s.ChunkFiles("req-1", "rec.wav")
	if err != nil {
		t.Fatalf("chunk files: %v", err)
	}
	want := []string{"rec_1.wav", "rec_2.wav", "rec_10.wav"}
	if len(got) != len(want) {
		t.Fatalf("expected %d chunks, got %d", len(want), len(got))
	}
	for i := range want {
		if filepath.Base(got[i]) != want[i] {
			t.Errorf("chunk %d = %q, want %q", i, filepath.Base(got[i]), want[i])
		}
	}
}

func TestChunkFiles_ExcludesAssembledAndTemp(t *testing.T) {
	s := New(t.TempDir())
	if err := s.CreateDir("req-1"); err != nil {
		t.Fatalf("create dir: %v", err)
	}
	for _, name := range []string{"rec_1.wav", "rec_full.wav", ".chunk-123.tmp"} {
		path := filepath.Join(s.Dir("req-1"), name)
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	got, err := s.ChunkFiles("req-1", "rec.wav")
	if err != nil {
		t.Fatalf("chunk files: %v", err)
	}
	if len(got) != 1 || filepath.Base(got[0]) != "rec_1.wav" {
		t.Errorf("expected only rec_1.wav, got %v", got)
	}
}

func TestRemoveChunks(t *testing.T) {
	s := New(t.TempDir())
	if err := s.CreateDir("req-1"); err != nil {
		t.Fatalf("create dir: %v", err)
	}
	if err := s.SaveChunk("req-1", "rec_1.wav", strings.NewReader("x")); err != nil {
		t.Fatalf("save chunk: %v", err)
	}
	chunks, err := s.ChunkFiles("req-1", "rec.wav")
	if err != nil {
		t.Fatalf("chunk files: %v", err)
	}

	if err := s.RemoveChunks(chunks); err != nil {
		t.Fatalf("remove chunks: %v", err)
	}
	// Removing the same list again is a no-op.
	if err := s.RemoveChunks(chunks); err != nil {
		t.Errorf("second remove should not fail: %v", err)
	}
	left, err := s.ChunkFiles("req-1", "rec.wav")
	if err != nil {
		t.Fatalf("chunk files: %v", err)
	}
	if len(left) != 0 {
		t.Errorf("expected empty dir, got %v", left)
	}
}

func TestAssembledExists(t *testing.T) {
	s := New(t.TempDir())
	if err := s.CreateDir("req-1"); err != nil {
		t.Fatalf("create dir: %v", err)
	}
	if s.AssembledExists("req-1", "rec.wav") {
		t.Error("expected false before assembly")
	}
	if err := os.WriteFile(s.AssembledPath("req-1", "rec.wav"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !s.AssembledExists("req-1", "rec.wav") {
		t.Error("expected true after assembly")
	}
}
