package llm

import "testing"

func TestPromptFor(t *testing.T) {
	t.Run("known_task", func(t *testing.T) {
		if got := PromptFor(TaskTopic); got != prompts[TaskTopic] {
			t.Errorf("PromptFor(TaskTopic) = %q", got)
		}
	})

	t.Run("summary_types_map_to_prompts", func(t *testing.T) {
		for _, task := range []string{TaskTopic, TaskSpeaker, TaskActionItems, TaskDecisionLog, TaskBBHHDQT, TaskNghiQuyet} {
			if _, ok := prompts[task]; !ok {
				t.Errorf("no prompt registered for %q", task)
			}
		}
	})

	t.Run("unknown_task_falls_back_to_chat", func(t *testing.T) {
		if got := PromptFor("weather_report"); got != prompts[TaskChat] {
			t.Errorf("expected chat fallback, got %q", got)
		}
	})
}
