package sequence

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/salestroopz/outreach-engine/internal/domain"
	"github.com/salestroopz/outreach-engine/internal/llm"
)

// Crafter writes one-off personalized emails for steps flagged
// is_ai_crafted. Unlike template steps, these are composed per lead at
// send time.
type Crafter struct {
	client llm.Client
}

// NewCrafter creates a per-lead email crafter.
func NewCrafter(client llm.Client) *Crafter {
	return &Crafter{client: client}
}

// Craft produces the subject and body for one lead. The sequencer treats
// an error as a failed send attempt for that enrollment.
func (cr *Crafter) Craft(ctx context.Context, c *domain.Campaign, step *domain.CampaignStep, lead *domain.Lead) (subject, body string, err error) {
	if cr.client == nil {
		return "", "", llm.ErrNotConfigured
	}

	raw, err := cr.client.Complete(ctx, llm.Request{
		System:       craftSystemPrompt,
		Prompt:       buildCraftPrompt(c, step, lead),
		Temperature:  0.7,
		JSONResponse: true,
	})
	if err != nil {
		return "", "", fmt.Errorf("craft email: %w", err)
	}

	var out struct {
		Subject string `json:"subject"`
		Body    string `json:"body"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &out); err != nil {
		return "", "", fmt.Errorf("decode crafted email: %w", err)
	}
	out.Subject = strings.TrimSpace(out.Subject)
	out.Body = strings.TrimSpace(out.Body)
	if out.Body == "" {
		return "", "", fmt.Errorf("crafted email has empty body")
	}
	if out.Subject == "" {
		out.Subject = step.FollowUpAngle
	}
	return out.Subject, out.Body, nil
}
