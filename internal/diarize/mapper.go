// Package diarize holds the speaker-timeline client and the mapper that
// projects a speaker timeline onto word-level transcript segments.
package diarize

import (
	"strings"

	"github.com/snarg/meeting-engine/internal/database"
)

// Region is one span of the speaker timeline: [Start, End] attributed to a
// single speaker label.
type Region struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker"`
}

// MapWords assigns each word to the speaker region containing its center
// time, producing one output segment per region that received at least one
// word. Both inputs must be sorted by start time.
//
// The pass is linear: a word whose center falls before the current region is
// a silent-gap word and is discarded; a word whose center falls past the
// region's end closes the region without consuming the word. A center
// exactly on a boundary stays with the open region.
func MapWords(timeline []Region, words []database.Segment) []database.SpeakerSegment {
	var out []database.SpeakerSegment
	i := 0
	for _, region := range timeline {
		var collected []string
		for i < len(words) {
			center := (words[i].Start + words[i].End) / 2
			if center < region.Start {
				i++ // gap word, no region claims it
				continue
			}
			if center > region.End {
				break
			}
			collected = append(collected, words[i].Text)
			i++
		}
		if len(collected) == 0 {
			continue
		}
		out = append(out, database.SpeakerSegment{
			ID:      len(out),
			Speaker: region.Speaker,
			Text:    strings.Join(collected, " "),
			Start:   region.Start,
			End:     region.End,
		})
	}
	return out
}

// MergeTimeline collapses adjacent same-speaker regions whose silence gap is
// at most maxPause seconds.
func MergeTimeline(timeline []Region, maxPause float64) []Region {
	if len(timeline) == 0 {
		return nil
	}
	merged := []Region{timeline[0]}
	for _, r := range timeline[1:] {
		last := &merged[len(merged)-1]
		if r.Speaker == last.Speaker && r.Start-last.End <= maxPause {
			if r.End > last.End {
				last.End = r.End
			}
			continue
		}
		merged = append(merged, r)
	}
	return merged
}
