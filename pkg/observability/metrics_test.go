package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	if metrics == nil {
		t.Fatal("NewMetrics returned nil")
	}

	t.Run("double registration panics", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Error("Expected panic on duplicate registration")
			}
		}()
		NewMetrics(registry)
	})
}

func TestMetrics_Recorders(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	metrics.RecordRoleOperation("create", "success")
	metrics.RecordRoleOperation("create", "success")
	metrics.RecordRoleOperation("delete", "role_in_use")
	metrics.RecordSeeded(4)
	metrics.RecordSeeded(0)
	metrics.RecordAdminGate("forbidden")
	metrics.RecordAuthorization("settings", true)
	metrics.RecordAuthorization("settings", false)
	metrics.RecordRoleCache(true)
	metrics.RecordRoleCache(false)
	metrics.RecordRoleCache(false)
	metrics.RecordSessionLookup("hit")

	if got := testutil.ToFloat64(metrics.RoleOperationsTotal.WithLabelValues("create", "success")); got != 2 {
		t.Errorf("Expected 2 create successes, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.RoleOperationsTotal.WithLabelValues("delete", "role_in_use")); got != 1 {
		t.Errorf("Expected 1 delete failure, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.SeededRolesTotal); got != 4 {
		t.Errorf("Expected 4 seeded roles, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.AdminGateTotal.WithLabelValues("forbidden")); got != 1 {
		t.Errorf("Expected 1 forbidden, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.AuthorizationDecisionsTotal.WithLabelValues("settings", "denied")); got != 1 {
		t.Errorf("Expected 1 denied decision, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.RoleCacheMissesTotal); got != 2 {
		t.Errorf("Expected 2 misses, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.SessionLookupsTotal.WithLabelValues("hit")); got != 1 {
		t.Errorf("Expected 1 session hit, got %v", got)
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var metrics *Metrics
	metrics.RecordRoleOperation("create", "success")
	metrics.RecordSeeded(1)
	metrics.RecordAdminGate("granted")
	metrics.RecordAuthorization("user", true)
	metrics.RecordRoleCache(true)
	metrics.RecordSessionLookup("miss")

	handler := HTTPMetricsMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))
	if rr.Code != http.StatusTeapot {
		t.Errorf("Expected passthrough status, got %d", rr.Code)
	}
}

func TestHTTPMetricsMiddleware_UsesRouteTemplate(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	router := mux.NewRouter()
	router.Use(HTTPMetricsMiddleware(metrics))
	router.HandleFunc("/rbac/roles/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}).Methods("GET")

	for _, id := range []string{"a", "b", "c"} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest("GET", "/rbac/roles/"+id, nil))
	}

	got := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", "/rbac/roles/{id}", "404"))
	if got != 3 {
		t.Errorf("Expected 3 requests under the route template, got %v", got)
	}
}

func TestRegisterMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	metrics.RecordAdminGate("granted")

	router := mux.NewRouter()
	RegisterMetricsEndpoint(router, registry)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
	body, _ := io.ReadAll(rr.Body)
	if !strings.Contains(string(body), "rolegate_admin_gate_total") {
		t.Error("Expected rolegate_admin_gate_total in /metrics output")
	}
}
