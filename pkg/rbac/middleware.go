package rbac

import (
	"errors"
	"net/http"

	"github.com/platinummonkey/rolegate/pkg/audit"
	"github.com/platinummonkey/rolegate/pkg/httputil"
	"github.com/platinummonkey/rolegate/pkg/middleware"
	"github.com/platinummonkey/rolegate/pkg/observability"
)

// AdminGate rejects any request whose caller is not an administrator
// before the wrapped handler can touch storage
type AdminGate struct {
	guard   *Guard
	audit   audit.Logger
	metrics *observability.Metrics
}

// NewAdminGate creates the administrator gate. auditLogger may be nil.
func NewAdminGate(guard *Guard, auditLogger audit.Logger, metrics *observability.Metrics) *AdminGate {
	if auditLogger == nil {
		auditLogger = audit.NoOpLogger()
	}
	return &AdminGate{guard: guard, audit: auditLogger, metrics: metrics}
}

// Handler wraps next with the administrator check
func (g *AdminGate) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := g.guard.RequireAdministrator(middleware.GetCaller(r))
		switch {
		case err == nil:
			g.metrics.RecordAdminGate("allowed")
			next.ServeHTTP(w, r)
		case errors.Is(err, ErrUnauthenticated):
			g.metrics.RecordAdminGate("unauthenticated")
			httputil.WriteUnauthorized(w, msgAuthenticationRequired)
		default:
			g.metrics.RecordAdminGate("forbidden")
			g.recordDenied(r)
			httputil.WriteForbidden(w, msgAdministratorRequired)
		}
	})
}

func (g *AdminGate) recordDenied(r *http.Request) {
	ctx := r.Context()
	event := audit.NewEvent(ctx, audit.EventTypeAccessDenied, audit.EventStatusDenied)
	event.Message = r.Method + " " + r.URL.Path
	if err := g.audit.Log(ctx, event); err != nil {
		observability.FromContext(ctx).WithError(err).Warn("Failed to record audit event")
	}
}
