package sequence

import (
	"fmt"
	"strings"

	"github.com/salestroopz/outreach-engine/internal/domain"
)

const generateSystemPrompt = `You are an expert B2B cold outreach copywriter.
You write short, specific, non-salesy emails that get replies.
Always respond with valid JSON and nothing else.`

// buildGeneratePrompt renders the sequence generation instruction for one
// campaign. Templates may use {first_name}, {name}, {company} and {title}
// placeholders which are substituted per lead at send time.
func buildGeneratePrompt(c *domain.Campaign, numSteps int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a %d-step cold email sequence.\n\n", numSteps)
	if c.TargetAudience != "" {
		fmt.Fprintf(&b, "Target audience: %s\n", c.TargetAudience)
	}
	if c.OfferingSummary != "" {
		fmt.Fprintf(&b, "Offering: %s\n", c.OfferingSummary)
	}
	if c.Description != "" {
		fmt.Fprintf(&b, "Campaign context: %s\n", c.Description)
	}
	b.WriteString(`
Rules:
- Each email under 120 words, plain text, one clear call to action.
- Use placeholders {first_name} and {company} where personalization helps.
- Step 1 has delay_days 0; later steps wait 2-5 days after the previous send.
- Vary the angle per step (value, social proof, objection, breakup).

Respond with a JSON object of the form:
{"steps": [{"step_number": 1, "delay_days": 0, "subject_template": "...", "body_template": "...", "follow_up_angle": "..."}]}
`)
	return b.String()
}

const craftSystemPrompt = `You are an expert B2B sales copywriter writing one
personalized follow-up email. Respond with valid JSON and nothing else.`

// buildCraftPrompt renders the per-lead instruction for an AI-crafted step.
func buildCraftPrompt(c *domain.Campaign, step *domain.CampaignStep, lead *domain.Lead) string {
	var b strings.Builder
	b.WriteString("Write one short follow-up email for this lead.\n\n")
	fmt.Fprintf(&b, "Lead: %s, %s at %s\n", lead.Name, lead.Title, lead.Company)
	if lead.Industry != "" {
		fmt.Fprintf(&b, "Industry: %s\n", lead.Industry)
	}
	if c.OfferingSummary != "" {
		fmt.Fprintf(&b, "Offering: %s\n", c.OfferingSummary)
	}
	fmt.Fprintf(&b, "Angle for this email: %s\n", step.FollowUpAngle)
	b.WriteString(`
Under 100 words, plain text, specific to the lead, one call to action.
Respond with a JSON object: {"subject": "...", "body": "..."}
`)
	return b.String()
}
