package sequence

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/salestroopz/outreach-engine/internal/domain"
	"github.com/salestroopz/outreach-engine/internal/pkg/logger"
)

// rawStep mirrors the JSON shape the model is prompted to produce.
type rawStep struct {
	StepNumber      int    `json:"step_number"`
	DelayDays       int    `json:"delay_days"`
	SubjectTemplate string `json:"subject_template"`
	BodyTemplate    string `json:"body_template"`
	FollowUpAngle   string `json:"follow_up_angle"`
	IsAICrafted     bool   `json:"is_ai_crafted"`
}

// ParseResult is the outcome of decoding one model response.
type ParseResult struct {
	Steps   []domain.CampaignStep
	Dropped int // structurally invalid steps discarded during validation
}

// ParseSteps decodes a model response into validated campaign steps.
// The payload may be a bare JSON array or wrapped as {"steps": [...]},
// optionally inside a markdown code fence. Individually invalid steps
// are dropped and counted, not fatal; an undecodable payload is.
func ParseSteps(payload string) (*ParseResult, error) {
	cleaned := stripCodeFence(payload)
	if cleaned == "" {
		return nil, fmt.Errorf("empty response")
	}

	var raws []rawStep
	if err := json.Unmarshal([]byte(cleaned), &raws); err != nil {
		var wrapped struct {
			Steps []rawStep `json:"steps"`
		}
		if err2 := json.Unmarshal([]byte(cleaned), &wrapped); err2 != nil {
			return nil, fmt.Errorf("decode steps: %w", err)
		}
		raws = wrapped.Steps
	}

	res := &ParseResult{}
	for i, r := range raws {
		if r.StepNumber <= 0 || r.DelayDays < 0 || strings.TrimSpace(r.BodyTemplate) == "" {
			logger.Warn("dropping invalid generated step",
				"index", i, "step_number", r.StepNumber)
			res.Dropped++
			continue
		}
		angle := strings.TrimSpace(r.FollowUpAngle)
		if angle == "" {
			angle = fmt.Sprintf("AI Generated Step %d", r.StepNumber)
		}
		res.Steps = append(res.Steps, domain.CampaignStep{
			StepNumber:      r.StepNumber,
			DelayDays:       r.DelayDays,
			SubjectTemplate: strings.TrimSpace(r.SubjectTemplate),
			BodyTemplate:    strings.TrimSpace(r.BodyTemplate),
			FollowUpAngle:   angle,
			IsAICrafted:     r.IsAICrafted,
		})
	}
	return res, nil
}

// stripCodeFence removes a surrounding ```json ... ``` fence if present.
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
