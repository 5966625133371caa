package mailing

import (
	"strings"
	"testing"

	"github.com/salestroopz/outreach-engine/internal/domain"
)

func TestRenderTokens(t *testing.T) {
	ts := NewTemplateService()
	lead := &domain.Lead{Name: "Jane Smith", Company: "Acme Corp", Title: "VP Sales"}

	tests := []struct {
		name     string
		template string
		want     string
	}{
		{"name token", "Hi {name}!", "Hi Jane Smith!"},
		{"first name token", "Hi {first_name},", "Hi Jane,"},
		{"company token", "at {company}", "at Acme Corp"},
		{"title token", "as {title}", "as VP Sales"},
		{"unknown token passes through", "code {promo_code}", "code {promo_code}"},
		{"no tokens", "plain text", "plain text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ts.Render("", tt.template, lead)
			if got != tt.want {
				t.Errorf("Render(%q) = %q, want %q", tt.template, got, tt.want)
			}
		})
	}
}

func TestRenderFallbacks(t *testing.T) {
	ts := NewTemplateService()
	lead := &domain.Lead{Email: "x@example.com"} // no name, company, title

	if got := ts.Render("", "Hi {first_name},", lead); got != "Hi there," {
		t.Errorf("missing name fallback = %q, want %q", got, "Hi there,")
	}
	if got := ts.Render("", "at {company}", lead); got != "at your company" {
		t.Errorf("missing company fallback = %q, want %q", got, "at your company")
	}
	if got := ts.Render("", "as {title}.", lead); got != "as ." {
		t.Errorf("missing title = %q, want %q", got, "as .")
	}
}

func TestRenderLiquid(t *testing.T) {
	ts := NewTemplateService()
	lead := &domain.Lead{Name: "Jane Smith", Company: "Acme Corp"}

	got := ts.Render("k1", "Hello {{ first_name }} from {{ company | titlecase }}", lead)
	if got != "Hello Jane from Acme Corp" {
		t.Errorf("liquid render = %q", got)
	}

	// Cached template renders with a different lead's context
	got = ts.Render("k1", "Hello {{ first_name }} from {{ company | titlecase }}", &domain.Lead{Name: "Bob"})
	if !strings.Contains(got, "Bob") {
		t.Errorf("cached render = %q, want Bob substituted", got)
	}
}

func TestRenderLiquidDefaultFilter(t *testing.T) {
	ts := NewTemplateService()
	got := ts.Render("", `{{ title | default: "your role" }}`, &domain.Lead{})
	if got != "your role" {
		t.Errorf("default filter = %q, want %q", got, "your role")
	}
}

func TestRenderStep(t *testing.T) {
	ts := NewTemplateService()
	step := &domain.CampaignStep{
		ID:              "step-1",
		SubjectTemplate: "Quick question for {company}",
		BodyTemplate:    "Hi {first_name}, saw your work at {company}.",
	}
	lead := &domain.Lead{Name: "Jane Smith", Company: "Acme"}

	subject, body := ts.RenderStep(step, lead)
	if subject != "Quick question for Acme" {
		t.Errorf("subject = %q", subject)
	}
	if body != "Hi Jane, saw your work at Acme." {
		t.Errorf("body = %q", body)
	}
}

func TestBuildMIMEMessage(t *testing.T) {
	msg := &OutboundEmail{
		To:        "lead@example.com",
		Subject:   "Hello",
		HTMLBody:  "<p>Hi</p>",
		TextBody:  "Hi",
		FromName:  "Sam Seller",
		FromEmail: "sam@vendor.com",
		Headers:   map[string]string{"X-Campaign": "c1"},
	}
	raw := string(buildMIMEMessage(msg, "abc123@vendor.com"))

	for _, want := range []string{
		"From: Sam Seller <sam@vendor.com>",
		"To: lead@example.com",
		"Subject: Hello",
		"Message-ID: <abc123@vendor.com>",
		"X-Campaign: c1",
		"multipart/alternative",
		"text/plain; charset=UTF-8",
		"text/html; charset=UTF-8",
	} {
		if !strings.Contains(raw, want) {
			t.Errorf("MIME message missing %q", want)
		}
	}
}

func TestMessageIDDomain(t *testing.T) {
	if got := messageIDDomain("sam@vendor.com"); got != "vendor.com" {
		t.Errorf("messageIDDomain = %q", got)
	}
	if got := messageIDDomain("not-an-email"); got != "outreach.local" {
		t.Errorf("messageIDDomain fallback = %q", got)
	}
}
