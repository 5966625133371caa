// Package classify assigns inbound reply text to a closed intent set
// using the configured language model.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/salestroopz/outreach-engine/internal/domain"
	"github.com/salestroopz/outreach-engine/internal/llm"
	"github.com/salestroopz/outreach-engine/internal/pkg/logger"
)

// Result is one classification outcome. ExtractedInfo carries the
// entities the model pulled out (meeting interest, requested times,
// questions, objections) keyed by snake_case names.
type Result struct {
	Category      domain.ReplyCategory
	Summary       string
	ExtractedInfo map[string]string
}

// Classifier wraps the model call. A nil Classifier or failed call yields
// a nil Result; callers must treat nil as "leave the message untouched".
type Classifier struct {
	client llm.Client
}

// New creates a reply classifier.
func New(client llm.Client) *Classifier {
	return &Classifier{client: client}
}

const systemPrompt = `You are an assistant that classifies replies to B2B cold
outreach emails. Always respond with valid JSON and nothing else.`

const promptTemplate = `Classify the reply below into exactly one category:
POSITIVE_MEETING_INTEREST, POSITIVE_GENERAL_INTEREST, NEGATIVE_NOT_INTERESTED,
NEGATIVE_UNSUBSCRIBE, NEGATIVE_WRONG_PERSON, QUESTION_PRODUCT_SERVICE,
QUESTION_OBJECTION, OUT_OF_OFFICE_AUTO_REPLY, NEUTRAL_ACKNOWLEDGEMENT,
NEUTRAL_AUTO_REPLY_OTHER, CANNOT_CLASSIFY_GIBBERISH

Original outreach subject: %s

Reply:
---
%s
---

Respond with a JSON object:
{"classification": "<category>", "summary": "<one sentence>",
 "extracted_info": {"meeting_interest": "", "requested_time": "", "questions": "", "objections": ""}}`

// Classify returns the category for one reply body, or nil when
// classification is impossible. An empty body short-circuits to
// CANNOT_CLASSIFY_GIBBERISH without a model call.
func (c *Classifier) Classify(ctx context.Context, subject, body string) *Result {
	if strings.TrimSpace(body) == "" {
		return &Result{
			Category: domain.ReplyCannotClassify,
			Summary:  "Reply was empty",
		}
	}
	if c == nil || c.client == nil {
		return nil
	}

	raw, err := c.client.Complete(ctx, llm.Request{
		System:       systemPrompt,
		Prompt:       fmt.Sprintf(promptTemplate, subject, truncate(body, 4000)),
		Temperature:  0.2,
		JSONResponse: true,
	})
	if err != nil {
		logger.Error("reply classification failed", "error", err.Error())
		return nil
	}

	var out struct {
		Classification string          `json:"classification"`
		Summary        string          `json:"summary"`
		ExtractedInfo  json.RawMessage `json:"extracted_info"`
	}
	cleaned := stripCodeFence(raw)
	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		logger.Error("reply classification returned malformed JSON", "error", err.Error())
		return nil
	}
	if out.Classification == "" {
		return nil
	}

	return &Result{
		Category:      domain.ReplyCategory(strings.ToUpper(strings.TrimSpace(out.Classification))),
		Summary:       out.Summary,
		ExtractedInfo: normalizeExtracted(out.ExtractedInfo),
	}
}

// normalizeExtracted flattens whatever shape the model produced into a
// string map. Lists are joined, scalars stringified, empties dropped.
func normalizeExtracted(raw json.RawMessage) map[string]string {
	if len(raw) == 0 {
		return nil
	}
	var generic map[string]interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil
	}

	out := make(map[string]string, len(generic))
	for k, v := range generic {
		s := stringify(v)
		if s != "" {
			out[k] = s
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case bool:
		if t {
			return "true"
		}
		return "false"
	case float64:
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%f", t), "0"), ".")
	case []interface{}:
		var parts []string
		for _, e := range t {
			if s := stringify(e); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "; ")
	case nil:
		return ""
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// truncate cuts s to at most max bytes without splitting a rune, so the
// prompt stays valid UTF-8 inside the JSON request body.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

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
