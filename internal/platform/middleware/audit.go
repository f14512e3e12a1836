package middleware

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/caseload/internal/platform/auth"
)

// AuditEntry records one caseload read. Search parameter values are not
// captured; the template id and category are enough to reconstruct what
// list the user saw.
type AuditEntry struct {
	UserID     string
	UserRoles  []string
	TenantID   string
	Operation  string // list, count, data, categories
	QueryID    string
	Category   string
	Page       string
	IPAddress  string
	UserAgent  string
	Route      string
	Timestamp  time.Time
	RequestID  string
	StatusCode int
}

// AuditRecorder persists audit entries somewhere more durable than the log.
type AuditRecorder interface {
	RecordAccess(entry AuditEntry) error
}

// AuditRecorderFunc is a function adapter for AuditRecorder.
type AuditRecorderFunc func(entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(entry AuditEntry) error {
	return f(entry)
}

// Audit logs every request under /api/v1/caseload as a PHI access event.
func Audit(logger zerolog.Logger, recorders ...AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if !strings.HasPrefix(req.URL.Path, "/api/v1/caseload") {
				return next(c)
			}

			err := next(c)

			ctx := req.Context()
			entry := AuditEntry{
				Timestamp:  time.Now().UTC(),
				UserID:     auth.UserIDFromContext(ctx),
				UserRoles:  auth.RolesFromContext(ctx),
				Operation:  caseloadOperation(c.Path()),
				QueryID:    c.Param("id"),
				Category:   c.QueryParam("category"),
				Page:       c.QueryParam("page"),
				IPAddress:  c.RealIP(),
				UserAgent:  req.UserAgent(),
				Route:      c.Path(),
				StatusCode: c.Response().Status,
			}
			entry.TenantID, _ = c.Get("tenant_id").(string)
			entry.RequestID, _ = c.Get("request_id").(string)

			for _, r := range recorders {
				if r == nil {
					continue
				}
				if recErr := r.RecordAccess(entry); recErr != nil {
					logger.Error().Err(recErr).
						Str("request_id", entry.RequestID).
						Msg("failed to record audit entry")
				}
			}

			logger.Info().
				Str("type", "phi_audit").
				Str("request_id", entry.RequestID).
				Str("user_id", entry.UserID).
				Strs("user_roles", entry.UserRoles).
				Str("tenant_id", entry.TenantID).
				Str("operation", entry.Operation).
				Str("query_id", entry.QueryID).
				Str("category", entry.Category).
				Str("page", entry.Page).
				Str("route", entry.Route).
				Str("remote_ip", entry.IPAddress).
				Int("status", entry.StatusCode).
				Msg("phi_access")

			return err
		}
	}
}

func caseloadOperation(route string) string {
	switch {
	case strings.HasSuffix(route, "/count"):
		return "count"
	case strings.Contains(route, "/caseload/search/"):
		return "list"
	case strings.Contains(route, "/caseload/data/"):
		return "data"
	case strings.HasSuffix(route, "/caseload/categories"):
		return "categories"
	}
	return "unknown"
}
