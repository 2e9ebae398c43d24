// Package chat implements the two-stage chat sub-engine: an intent
// classification call followed by intent-specific orchestration against the
// job's transcript, summaries, and chat history.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/snarg/meeting-engine/internal/database"
	"github.com/snarg/meeting-engine/internal/llm"
)

// Fixed replies for the non-generative paths.
const (
	replyFallback  = "Xin lỗi, tôi chưa hiểu ý của bạn. Bạn có thể diễn đạt khác được không?"
	replyClarify   = "Bạn muốn sửa loại tóm tắt nào? (ví dụ: theo chủ đề, theo người nói, các công việc cần làm...)"
	replyChitChat  = "Cảm ơn bạn. Tôi có thể giúp gì khác cho cuộc họp này không?"
	replyNoSummary = "Biên bản họp theo '%s' chưa được tạo. Vui lòng nhấn nút tương ứng để tạo tóm tắt trước khi bạn có thể chỉnh sửa."
)

// updatePattern matches the edit reply format the chat prompt asks for.
// (?s) lets the new content span multiple lines.
var updatePattern = regexp.MustCompile(`(?s)^\[UPDATE:(\w+)\]\s*(.*)`)

// intentDecision is the structured classification the LLM returns.
type intentDecision struct {
	Intent          string  `json:"intent"`
	Entity          string  `json:"entity"`
	Confidence      float64 `json:"confidence"`
	EditInstruction string  `json:"edit_instruction"`
}

type Engine struct {
	db           *database.DB
	llm          *llm.Client
	historyLimit int
	log          zerolog.Logger
}

func NewEngine(db *database.DB, lc *llm.Client, historyLimit int, log zerolog.Logger) *Engine {
	return &Engine{
		db:           db,
		llm:          lc,
		historyLimit: historyLimit,
		log:          log.With().Str("component", "chat").Logger(),
	}
}

// Respond runs one chat turn: classify the message, execute the intent, and
// append both the user message and the final reply to the chat log.
func (e *Engine) Respond(ctx context.Context, job *database.Job, message string) (string, error) {
	decision := e.classify(ctx, message)
	if decision.EditInstruction == "" {
		decision.EditInstruction = message
	}

	var reply string
	var err error
	switch decision.Intent {
	case "edit_summary":
		reply, err = e.editSummary(ctx, job, decision)
	case "ask_question":
		reply, err = e.askQuestion(ctx, job, message)
	case "general_chit_chat":
		reply = replyChitChat
	default:
		reply = replyFallback
	}
	if err != nil {
		return "", err
	}

	if err := e.db.AppendChatEntry(ctx, job.ID, database.RoleUser, message); err != nil {
		return "", err
	}
	if err := e.db.AppendChatEntry(ctx, job.ID, database.RoleAssistant, reply); err != nil {
		return "", err
	}
	return reply, nil
}

// classify asks the LLM for an intent decision. Any failure, upstream or
// parse, degrades to ask_question rather than surfacing an error.
func (e *Engine) classify(ctx context.Context, message string) intentDecision {
	raw, err := e.llm.Complete(ctx, llm.TaskIntentAnalysis, []llm.Message{
		{Role: "user", Content: message},
	})
	if err != nil {
		e.log.Error().Err(err).Msg("intent analysis failed, defaulting to ask_question")
		return intentDecision{Intent: "ask_question"}
	}

	var d intentDecision
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &d); err != nil {
		e.log.Error().Err(err).Str("raw", raw).Msg("intent response not valid JSON, defaulting to ask_question")
		return intentDecision{Intent: "ask_question"}
	}
	return d
}

// editSummary handles the edit_summary intent: clarify when the target is
// ambiguous, advise when the summary does not exist yet, and otherwise send
// the stored content plus the instruction through the chat prompt, storing
// the rewritten result.
func (e *Engine) editSummary(ctx context.Context, job *database.Job, d intentDecision) (string, error) {
	if d.Entity == "" || !database.ValidSummaryType(d.Entity) {
		return replyClarify, nil
	}

	stored, err := e.db.GetSummary(ctx, job.ID, d.Entity)
	if errors.Is(err, database.ErrNotFound) {
		return fmt.Sprintf(replyNoSummary, d.Entity), nil
	}
	if err != nil {
		return "", err
	}

	editContext := fmt.Sprintf(
		"--- EXISTING '%s' SUMMARY ---\n%s\n\n--- USER'S EDIT INSTRUCTION ---\n%s",
		strings.ToUpper(d.Entity), stored.Content, d.EditInstruction)

	raw, err := e.llm.Complete(ctx, llm.TaskChat, []llm.Message{
		{Role: "user", Content: editContext},
	})
	if err != nil {
		return "", err
	}

	content := raw
	if m := updatePattern.FindStringSubmatch(raw); m != nil {
		content = strings.TrimSpace(m[2])
	}
	if err := e.db.UpsertSummary(ctx, job.ID, d.Entity, content); err != nil {
		return "", err
	}
	e.log.Info().Str("request_id", job.RequestID).Str("summary_type", d.Entity).Msg("summary edited via chat")
	return content, nil
}

// askQuestion answers a free question grounded in the transcript, every
// stored summary, and the recent chat history.
func (e *Engine) askQuestion(ctx context.Context, job *database.Job, message string) (string, error) {
	transcriptText := ""
	if t, err := e.db.GetTranscript(ctx, job.ID, job.Language); err == nil {
		lines := make([]string, 0, len(t.Segments))
		for _, seg := range t.Segments {
			lines = append(lines, seg.Text)
		}
		transcriptText = strings.Join(lines, "\n")
	} else if !errors.Is(err, database.ErrNotFound) {
		return "", err
	}

	summaries, err := e.db.ListSummaries(ctx, job.ID)
	if err != nil {
		return "", err
	}
	summaryBlocks := make([]string, 0, len(summaries))
	for _, s := range summaries {
		summaryBlocks = append(summaryBlocks,
			fmt.Sprintf("--- SUMMARY (%s) ---\n%s", strings.ToUpper(s.SummaryType), s.Content))
	}

	entries, err := e.db.RecentChatEntries(ctx, job.ID, e.historyLimit*2)
	if err != nil {
		return "", err
	}
	history := make([]llm.Message, 0, len(entries)+1)
	for _, entry := range entries {
		history = append(history, llm.Message{Role: entry.Role, Content: entry.Message})
	}

	meetingContext := fmt.Sprintf("--- MEETING TRANSCRIPT ---\n%s\n\n%s",
		transcriptText, strings.Join(summaryBlocks, "\n\n"))
	history = append(history, llm.Message{
		Role:    "user",
		Content: fmt.Sprintf("**User Question:**\n%s\n\n**Meeting Context:**\n%s", message, meetingContext),
	})

	return e.llm.Complete(ctx, llm.TaskChat, history)
}

// stripCodeFence removes a surrounding Markdown code fence from an LLM reply.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
