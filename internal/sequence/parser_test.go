package sequence

import (
	"fmt"
	"strings"
	"testing"
)

func TestParseStepsBareArray(t *testing.T) {
	payload := `[
		{"step_number": 1, "delay_days": 0, "subject_template": "Hi", "body_template": "Hello {first_name}", "follow_up_angle": "intro"},
		{"step_number": 2, "delay_days": 3, "subject_template": "Re: Hi", "body_template": "Bumping this", "follow_up_angle": "value"}
	]`

	res, err := ParseSteps(payload)
	if err != nil {
		t.Fatalf("ParseSteps: %v", err)
	}
	if len(res.Steps) != 2 || res.Dropped != 0 {
		t.Fatalf("steps = %d dropped = %d, want 2/0", len(res.Steps), res.Dropped)
	}
	if res.Steps[1].DelayDays != 3 {
		t.Errorf("delay_days = %d, want 3", res.Steps[1].DelayDays)
	}
}

func TestParseStepsWrappedObject(t *testing.T) {
	payload := `{"steps": [{"step_number": 1, "delay_days": 0, "body_template": "Hello"}]}`

	res, err := ParseSteps(payload)
	if err != nil {
		t.Fatalf("ParseSteps: %v", err)
	}
	if len(res.Steps) != 1 {
		t.Fatalf("steps = %d, want 1", len(res.Steps))
	}
}

func TestParseStepsCodeFence(t *testing.T) {
	payload := "```json\n[{\"step_number\": 1, \"delay_days\": 0, \"body_template\": \"Hi\"}]\n```"

	res, err := ParseSteps(payload)
	if err != nil {
		t.Fatalf("ParseSteps: %v", err)
	}
	if len(res.Steps) != 1 {
		t.Fatalf("steps = %d, want 1", len(res.Steps))
	}
}

func TestParseStepsDropsInvalid(t *testing.T) {
	// Nine steps, step 4 missing its body
	var parts []string
	for i := 1; i <= 9; i++ {
		body := fmt.Sprintf("Body %d", i)
		if i == 4 {
			body = ""
		}
		parts = append(parts, fmt.Sprintf(
			`{"step_number": %d, "delay_days": 2, "body_template": %q}`, i, body))
	}
	payload := "[" + strings.Join(parts, ",") + "]"

	res, err := ParseSteps(payload)
	if err != nil {
		t.Fatalf("ParseSteps: %v", err)
	}
	if len(res.Steps) != 8 {
		t.Errorf("steps = %d, want 8", len(res.Steps))
	}
	if res.Dropped != 1 {
		t.Errorf("dropped = %d, want 1", res.Dropped)
	}
	for _, s := range res.Steps {
		if s.StepNumber == 4 {
			t.Error("step 4 should have been dropped")
		}
	}
}

func TestParseStepsDefaultAngle(t *testing.T) {
	payload := `[{"step_number": 3, "delay_days": 2, "body_template": "Hi"}]`

	res, err := ParseSteps(payload)
	if err != nil {
		t.Fatalf("ParseSteps: %v", err)
	}
	if got := res.Steps[0].FollowUpAngle; got != "AI Generated Step 3" {
		t.Errorf("follow_up_angle = %q, want %q", got, "AI Generated Step 3")
	}
}

func TestParseStepsInvalidJSON(t *testing.T) {
	if _, err := ParseSteps("I could not generate a sequence, sorry."); err == nil {
		t.Fatal("expected error for non-JSON payload")
	}
}

func TestParseStepsRejectsNegativeDelay(t *testing.T) {
	payload := `[{"step_number": 1, "delay_days": -1, "body_template": "Hi"}]`

	res, err := ParseSteps(payload)
	if err != nil {
		t.Fatalf("ParseSteps: %v", err)
	}
	if len(res.Steps) != 0 || res.Dropped != 1 {
		t.Errorf("steps = %d dropped = %d, want 0/1", len(res.Steps), res.Dropped)
	}
}
