package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/salestroopz/outreach-engine/internal/domain"
	"github.com/salestroopz/outreach-engine/internal/pkg/httputil"
	"github.com/salestroopz/outreach-engine/internal/repository/postgres"
)

// mailSettingsResponse is the read shape for org mail settings. Secrets
// are write-only; the response only reports whether one is stored.
type mailSettingsResponse struct {
	*domain.OrgMailSettings
	HasSMTPPassword bool `json:"has_smtp_password"`
	HasIMAPPassword bool `json:"has_imap_password"`
}

// mailSettingsRequest is the write shape. Empty password fields keep
// the stored credential, so clients can PUT the GET response back.
type mailSettingsRequest struct {
	Provider             string `json:"provider"`
	SMTPHost             string `json:"smtp_host"`
	SMTPPort             int    `json:"smtp_port"`
	SMTPUsername         string `json:"smtp_username"`
	SMTPPassword         string `json:"smtp_password"`
	FromEmail            string `json:"from_email"`
	FromName             string `json:"from_name"`
	IsConfigured         bool   `json:"is_configured"`
	IMAPHost             string `json:"imap_host"`
	IMAPPort             int    `json:"imap_port"`
	IMAPUsername         string `json:"imap_username"`
	IMAPPassword         string `json:"imap_password"`
	IMAPUseSSL           bool   `json:"imap_use_ssl"`
	EnableReplyDetection bool   `json:"enable_reply_detection"`
}

// GET /api/v1/settings/mail
func (s *Server) handleGetMailSettings(w http.ResponseWriter, r *http.Request) {
	org := orgID(r)

	settings, err := s.deps.Settings.Get(r.Context(), org)
	if err != nil {
		if errors.Is(err, postgres.ErrSettingsNotFound) {
			httputil.OK(w, mailSettingsResponse{
				OrgMailSettings: &domain.OrgMailSettings{OrganizationID: org, Provider: "smtp"},
			})
			return
		}
		httputil.InternalError(w, err)
		return
	}

	resp := mailSettingsResponse{
		OrgMailSettings: settings,
		HasSMTPPassword: settings.SMTPPassword != "",
		HasIMAPPassword: settings.IMAPPassword != "",
	}
	settings.SMTPPassword = ""
	settings.IMAPPassword = ""
	httputil.OK(w, resp)
}

// PUT /api/v1/settings/mail
func (s *Server) handlePutMailSettings(w http.ResponseWriter, r *http.Request) {
	var req mailSettingsRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	req.Provider = strings.ToLower(strings.TrimSpace(req.Provider))
	if req.Provider == "" {
		req.Provider = "smtp"
	}
	if req.Provider != "smtp" && req.Provider != "ses" {
		httputil.BadRequest(w, "provider must be smtp or ses")
		return
	}
	if req.FromEmail != "" && !strings.Contains(req.FromEmail, "@") {
		httputil.BadRequest(w, "from_email is not a valid address")
		return
	}

	org := orgID(r)
	settings := &domain.OrgMailSettings{
		OrganizationID:       org,
		Provider:             req.Provider,
		SMTPHost:             req.SMTPHost,
		SMTPPort:             req.SMTPPort,
		SMTPUsername:         req.SMTPUsername,
		SMTPPassword:         req.SMTPPassword,
		FromEmail:            req.FromEmail,
		FromName:             req.FromName,
		IsConfigured:         req.IsConfigured,
		IMAPHost:             req.IMAPHost,
		IMAPPort:             req.IMAPPort,
		IMAPUsername:         req.IMAPUsername,
		IMAPPassword:         req.IMAPPassword,
		IMAPUseSSL:           req.IMAPUseSSL,
		EnableReplyDetection: req.EnableReplyDetection,
	}

	if err := s.deps.Settings.Upsert(r.Context(), settings); err != nil {
		httputil.InternalError(w, err)
		return
	}

	stored, err := s.deps.Settings.Get(r.Context(), org)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	resp := mailSettingsResponse{
		OrgMailSettings: stored,
		HasSMTPPassword: stored.SMTPPassword != "",
		HasIMAPPassword: stored.IMAPPassword != "",
	}
	stored.SMTPPassword = ""
	stored.IMAPPassword = ""
	httputil.OK(w, resp)
}
