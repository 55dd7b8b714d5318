package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestAuthOperation(t *testing.T) {
	m := New()
	m.AuthOperation("login", "success", 10*time.Millisecond)
	m.AuthOperation("login", "success", 20*time.Millisecond)
	m.AuthOperation("login", "invalid_credentials", time.Millisecond)

	require.Equal(t, 2.0, testutil.ToFloat64(m.authOps.WithLabelValues("login", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.authOps.WithLabelValues("login", "invalid_credentials")))
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for _, id := range []string{"a", "b", "c"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/users/"+id, nil))
	}

	require.Equal(t, 3.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/users/{id}", "418")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.AuthOperation("signup", "success", time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.True(t, strings.Contains(body, `crm_auth_operations_total{operation="signup",outcome="success"} 1`), body)
	require.Contains(t, body, "go_goroutines")
}
