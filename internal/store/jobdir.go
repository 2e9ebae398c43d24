// Package store manages the shared filesystem area: one private directory
// per request_id holding uploaded chunks and, after assembly, the single
// combined audio file.
package store

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// JobStore is rooted at the configured shared audio path.
type JobStore struct {
	root string
}

func New(root string) *JobStore {
	return &JobStore{root: root}
}

// EnsureRoot creates the shared directory if missing. Called once at startup.
func (s *JobStore) EnsureRoot() error {
	return os.MkdirAll(s.root, 0o755)
}

// Dir returns the per-job directory path.
func (s *JobStore) Dir(requestID string) string {
	return filepath.Join(s.root, requestID)
}

// CreateDir provisions the per-job chunk directory.
func (s *JobStore) CreateDir(requestID string) error {
	if err := os.MkdirAll(s.Dir(requestID), 0o755); err != nil {
		return fmt.Errorf("create job dir: %w", err)
	}
	return nil
}

// RemoveDir deletes the job directory and everything in it.
func (s *JobStore) RemoveDir(requestID string) error {
	if err := os.RemoveAll(s.Dir(requestID)); err != nil {
		return fmt.Errorf("remove job dir: %w", err)
	}
	return nil
}

// SaveChunk persists one uploaded chunk under the job directory.
// Atomic write: temp file + rename, so a crashed upload never leaves a
// half-written chunk for the assembler to pick up. A re-sent chunk replaces
// the previous file of the same name, which is what lets clients retry a
// chunk whose response they lost.
func (s *JobStore) SaveChunk(requestID, filename string, r io.Reader) error {
	dir := s.Dir(requestID)
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("job dir missing: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".chunk-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write chunk: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close chunk: %w", err)
	}
	if err := os.Rename(tmpPath, filepath.Join(dir, filepath.Base(filename))); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename chunk: %w", err)
	}
	return nil
}

// AssembledPath returns the path of the combined audio for a job, derived
// from the original filename: <stem>_full.wav in the job directory.
func (s *JobStore) AssembledPath(requestID, originalFilename string) string {
	stem := strings.TrimSuffix(filepath.Base(originalFilename), filepath.Ext(originalFilename))
	return filepath.Join(s.Dir(requestID), stem+"_full.wav")
}

// AssembledExists reports whether the combined audio file is present.
func (s *JobStore) AssembledExists(requestID, originalFilename string) bool {
	_, err := os.Stat(s.AssembledPath(requestID, originalFilename))
	return err == nil
}

var chunkSuffixRe = regexp.MustCompile(`_(\d+)\.[^.]+$`)

// ChunkFiles lists the chunk files in a job directory ordered by the numeric
// suffix in each filename (client-numbered "<name>_<n>.<ext>"). Files without
// a numeric suffix sort after numbered ones, by name. Temp files and any
// previously assembled output are excluded.
func (s *JobStore) ChunkFiles(requestID, originalFilename string) ([]string, error) {
	dir := s.Dir(requestID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list job dir: %w", err)
	}

	assembled := filepath.Base(s.AssembledPath(requestID, originalFilename))

	type chunk struct {
		path string
		num  int
		ok   bool
	}
	var chunks []chunk
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if name == assembled || strings.HasPrefix(name, ".") {
			continue
		}
		c := chunk{path: filepath.Join(dir, name)}
		if m := chunkSuffixRe.FindStringSubmatch(name); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				c.num = n
				c.ok = true
			}
		}
		chunks = append(chunks, c)
	}

	sort.Slice(chunks, func(i, j int) bool {
		a, b := chunks[i], chunks[j]
		if a.ok != b.ok {
			return a.ok
		}
		if a.ok && a.num != b.num {
			return a.num < b.num
		}
		return a.path < b.path
	})

	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.path
	}
	return out, nil
}

// RemoveChunks deletes the given chunk files after assembly.
func (s *JobStore) RemoveChunks(paths []string) error {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove chunk %s: %w", filepath.Base(p), err)
		}
	}
	return nil
}

// Open opens a file under the store for streaming.
func (s *JobStore) Open(path string) (io.ReadCloser, error) {
	return os.Open(path)
}
