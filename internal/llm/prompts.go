package llm

// Task names for prompt selection.
const (
	TaskIntentAnalysis = "intent_analysis"
	TaskChat           = "chat"
	TaskTopic          = "topic"
	TaskSpeaker        = "speaker"
	TaskActionItems    = "action_items"
	TaskDecisionLog    = "decision_log"
	TaskBBHHDQT        = "summary_bbh_hdqt"
	TaskNghiQuyet      = "summary_nghi_quyet"
)

// prompts maps a task to its system prompt. The texts here are deliberately
// short; deployments override them via future config without touching the
// orchestration code.
var prompts = map[string]string{
	TaskIntentAnalysis: `You classify a user's message about a meeting. Respond with JSON only:
{"intent": "edit_summary"|"ask_question"|"general_chit_chat",
 "entity": "topic"|"speaker"|"action_items"|"decision_log"|"summary_bbh_hdqt"|"summary_nghi_quyet"|null,
 "confidence": 0.0-1.0,
 "edit_instruction": string|null}`,
	TaskChat:        "You are a helpful meeting assistant. Answer in the language of the user's message, grounded only in the provided meeting materials.",
	TaskTopic:       "Summarize the meeting transcript below by topic, as a structured Markdown outline.",
	TaskSpeaker:     "Summarize the meeting transcript below per speaker: for each speaker, list their main points.",
	TaskActionItems: "Extract the action items from the meeting transcript below: owner, task, deadline where stated.",
	TaskDecisionLog: "Extract the decisions made in the meeting transcript below, one entry per decision.",
	TaskBBHHDQT:     "Draft a formal board meeting minutes document (biên bản họp HĐQT) from the context and transcript below.",
	TaskNghiQuyet:   "Draft a formal resolution document (nghị quyết) from the context and transcript below.",
}

// PromptFor returns the system prompt for a task, falling back to the chat
// prompt for unknown tasks.
func PromptFor(task string) string {
	if p, ok := prompts[task]; ok {
		return p
	}
	return prompts[TaskChat]
}
