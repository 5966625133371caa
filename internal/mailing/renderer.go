// Package mailing holds the outbound side of the outreach engine: the
// template renderer that fills step templates with lead attributes, and
// the mail transports (SMTP, SES) that deliver the rendered email.
package mailing

import (
	"fmt"
	"strings"
	"sync"

	"github.com/osteele/liquid"

	"github.com/salestroopz/outreach-engine/internal/domain"
)

// Fallbacks substituted when a lead attribute is missing. Rendering never
// fails; a template with unknown placeholders passes them through as-is.
const (
	fallbackFirstName = "there"
	fallbackCompany   = "your company"
)

// TemplateService renders step subject/body templates with caching.
// Two syntaxes are supported: simple {placeholder} tokens (what the
// sequence generator emits) and Liquid for operator-authored templates.
type TemplateService struct {
	engine *liquid.Engine
	cache  sync.Map // map[string]*liquid.Template
}

// NewTemplateService creates a template service with custom filters.
func NewTemplateService() *TemplateService {
	ts := &TemplateService{engine: liquid.NewEngine()}
	ts.registerCustomFilters()
	return ts
}

func (ts *TemplateService) registerCustomFilters() {
	// Default value filter: {{ first_name | default: "there" }}
	ts.engine.RegisterFilter("default", func(value interface{}, defaultVal string) interface{} {
		if value == nil {
			return defaultVal
		}
		strVal := fmt.Sprintf("%v", value)
		if strVal == "" || strVal == "<nil>" {
			return defaultVal
		}
		return value
	})

	// Capitalize first letter: {{ name | capitalize }}
	ts.engine.RegisterFilter("capitalize", func(s string) string {
		if len(s) == 0 {
			return s
		}
		return strings.ToUpper(string(s[0])) + s[1:]
	})

	// Title case: {{ company | titlecase }}
	ts.engine.RegisterFilter("titlecase", func(s string) string {
		return strings.Title(strings.ToLower(s))
	})

	// Truncate with ellipsis: {{ title | truncate: 40 }}
	ts.engine.RegisterFilter("truncate", func(s string, length int) string {
		if len(s) <= length {
			return s
		}
		if length <= 3 {
			return s[:length]
		}
		return s[:length-3] + "..."
	})
}

// LeadContext builds the render context for one lead, applying the
// documented fallbacks for missing attributes.
func LeadContext(lead *domain.Lead) map[string]interface{} {
	firstName := lead.FirstName()
	if firstName == "" {
		firstName = fallbackFirstName
	}
	name := lead.Name
	if name == "" {
		name = fallbackFirstName
	}
	company := lead.Company
	if company == "" {
		company = fallbackCompany
	}
	return map[string]interface{}{
		"name":       name,
		"first_name": firstName,
		"company":    company,
		"title":      lead.Title,
	}
}

// Render fills a single template string for one lead. Pure with respect
// to its inputs and has no failure mode: a Liquid parse error falls back
// to the simple token pass, and unknown {tokens} survive unresolved.
func (ts *TemplateService) Render(cacheKey, templateStr string, lead *domain.Lead) string {
	ctx := LeadContext(lead)

	out := templateStr
	if strings.Contains(templateStr, "{{") || strings.Contains(templateStr, "{%") {
		if rendered, err := ts.renderLiquid(cacheKey, templateStr, ctx); err == nil {
			out = rendered
		}
	}
	return substituteTokens(out, ctx)
}

// RenderStep renders a step's subject and body for one lead.
func (ts *TemplateService) RenderStep(step *domain.CampaignStep, lead *domain.Lead) (subject, body string) {
	subject = ts.Render(step.ID+":subject", step.SubjectTemplate, lead)
	body = ts.Render(step.ID+":body", step.BodyTemplate, lead)
	return subject, body
}

func (ts *TemplateService) renderLiquid(cacheKey, templateStr string, ctx map[string]interface{}) (string, error) {
	if cacheKey != "" {
		if cached, ok := ts.cache.Load(cacheKey); ok {
			return cached.(*liquid.Template).RenderString(ctx)
		}
	}
	tpl, err := ts.engine.ParseString(templateStr)
	if err != nil {
		return templateStr, err
	}
	if cacheKey != "" {
		ts.cache.Store(cacheKey, tpl)
	}
	return tpl.RenderString(ctx)
}

// substituteTokens handles the simple {placeholder} syntax. Only the
// recognized placeholders are replaced; anything else passes through.
func substituteTokens(s string, ctx map[string]interface{}) string {
	for _, key := range []string{"name", "first_name", "company", "title"} {
		val := fmt.Sprintf("%v", ctx[key])
		s = strings.ReplaceAll(s, "{"+key+"}", val)
	}
	return s
}

// ClearCache removes all cached templates. Called after step regeneration
// so stale template bodies are not reused under the same step IDs.
func (ts *TemplateService) ClearCache() {
	ts.cache = sync.Map{}
}
