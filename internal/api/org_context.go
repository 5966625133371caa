package api

import (
	"context"
	"net/http"
	"os"
	"strings"

	"github.com/salestroopz/outreach-engine/internal/pkg/httputil"
)

type orgContextKey struct{}

// OrgIDFromRequest resolves the organization scope of a request.
// Priority: context (middleware), X-Organization-ID header, org_id
// query param, then the DEV_MODE default org.
func OrgIDFromRequest(r *http.Request) string {
	if orgID, ok := r.Context().Value(orgContextKey{}).(string); ok && orgID != "" {
		return orgID
	}
	if orgID := strings.TrimSpace(r.Header.Get("X-Organization-ID")); orgID != "" {
		return orgID
	}
	if orgID := strings.TrimSpace(r.URL.Query().Get("org_id")); orgID != "" {
		return orgID
	}
	if os.Getenv("DEV_MODE") == "true" || os.Getenv("ENVIRONMENT") == "development" {
		return os.Getenv("DEFAULT_ORG_ID")
	}
	return ""
}

// RequireOrg rejects requests without an organization scope and stores
// the resolved ID in the request context for handlers.
func RequireOrg(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		orgID := OrgIDFromRequest(r)
		if orgID == "" {
			httputil.Error(w, http.StatusUnauthorized, "organization context required")
			return
		}
		ctx := context.WithValue(r.Context(), orgContextKey{}, orgID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// orgID reads the organization ID a middleware stored on the request.
func orgID(r *http.Request) string {
	id, _ := r.Context().Value(orgContextKey{}).(string)
	return id
}
