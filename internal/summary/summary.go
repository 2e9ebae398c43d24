// Package summary implements get-or-generate orchestration for the stored
// LLM summary artifacts of a job.
package summary

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/snarg/meeting-engine/internal/database"
	"github.com/snarg/meeting-engine/internal/llm"
)

// ErrNoSource is returned when the prerequisite artifact for a summary type
// is missing: a diarized transcript for speaker summaries, the
// active-language transcript for everything else.
var ErrNoSource = errors.New("summary source not available")

type Service struct {
	db  *database.DB
	llm *llm.Client
	loc *time.Location
	log zerolog.Logger
}

// NewService builds the summary service. localTZ names the zone used for the
// context header of templated documents; a bad name falls back to UTC.
func NewService(db *database.DB, lc *llm.Client, localTZ string, log zerolog.Logger) *Service {
	loc, err := time.LoadLocation(localTZ)
	if err != nil {
		log.Warn().Str("timezone", localTZ).Msg("unknown timezone, using UTC for document context")
		loc = time.UTC
	}
	return &Service{
		db:  db,
		llm: lc,
		loc: loc,
		log: log.With().Str("component", "summary").Logger(),
	}
}

// Get returns the stored summary of the given type, generating and storing
// it first when absent.
func (s *Service) Get(ctx context.Context, job *database.Job, summaryType string) (string, error) {
	existing, err := s.db.GetSummary(ctx, job.ID, summaryType)
	if err == nil {
		return existing.Content, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return "", err
	}

	content, err := s.generate(ctx, job, summaryType)
	if err != nil {
		return "", err
	}
	if err := s.db.UpsertSummary(ctx, job.ID, summaryType, content); err != nil {
		return "", err
	}
	s.log.Info().Str("request_id", job.RequestID).Str("summary_type", summaryType).Msg("summary generated")
	return content, nil
}

func (s *Service) generate(ctx context.Context, job *database.Job, summaryType string) (string, error) {
	source, err := s.sourceText(ctx, job, summaryType)
	if err != nil {
		return "", err
	}

	if summaryType == database.SummaryBBHHDQT || summaryType == database.SummaryNghiQuyet {
		source = s.contextHeader(job) + source
	}

	return s.llm.Complete(ctx, summaryType, []llm.Message{
		{Role: "user", Content: source},
	})
}

// sourceText selects the material a summary is generated from. Speaker
// summaries read the diarized transcript as "speaker: text" lines; every
// other type reads the active-language transcript.
func (s *Service) sourceText(ctx context.Context, job *database.Job, summaryType string) (string, error) {
	if summaryType == database.SummarySpeaker {
		d, err := s.db.GetDiarizedTranscript(ctx, job.ID)
		if errors.Is(err, database.ErrNotFound) {
			return "", fmt.Errorf("%w: a speaker summary requires diarization", ErrNoSource)
		}
		if err != nil {
			return "", err
		}
		lines := make([]string, 0, len(d.Segments))
		for _, seg := range d.Segments {
			lines = append(lines, seg.Speaker+": "+seg.Text)
		}
		return strings.Join(lines, "\n"), nil
	}

	t, err := s.db.GetTranscript(ctx, job.ID, job.Language)
	if errors.Is(err, database.ErrNotFound) {
		return "", fmt.Errorf("%w: a summary requires a completed transcript", ErrNoSource)
	}
	if err != nil {
		return "", err
	}
	lines := make([]string, 0, len(t.Segments))
	for _, seg := range t.Segments {
		lines = append(lines, seg.Text)
	}
	return strings.Join(lines, "\n"), nil
}

// contextHeader renders the meeting date and times, converted from the UTC
// stored timestamps to the configured local zone, as the literal prefix the
// templated document prompts expect.
func (s *Service) contextHeader(job *database.Job) string {
	dateStr, startStr, endStr := "N/A", "N/A", "N/A"
	if job.UploadStartedAt != nil {
		local := job.UploadStartedAt.In(s.loc)
		dateStr = local.Format("02/01/2006")
		startStr = local.Format("15:04")
	}
	if job.UploadFinishedAt != nil {
		endStr = job.UploadFinishedAt.In(s.loc).Format("15:04")
	}
	return fmt.Sprintf(
		"**THÔNG TIN BỐI CẢNH CUỘC HỌP:**\n"+
			"- Ngày họp: %s\n"+
			"- Giờ bắt đầu: %s\n"+
			"- Giờ kết thúc: %s\n"+
			"- Thành phần tham dự: %s\n\n"+
			"**NỘI DUNG BIÊN BẢN (TRANSCRIPT):**\n",
		dateStr, startStr, endStr, membersLine(job.MeetingMembers))
}

// membersLine joins the attendee list for the context header.
func membersLine(members []string) string {
	if len(members) == 0 {
		return "Không xác định"
	}
	return strings.Join(members, ", ")
}
