package obs

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                                "/",
		"/metrics":                        "/metrics",
		"/v1/auth/login":                  "/v1/auth/login",
		"/v1/auth/register":               "/v1/auth/register",
		"/v1/auth/google":                 "/v1/auth/:provider",
		"/v1/auth/github":                 "/v1/auth/:provider",
		"/v1/auth/google/callback":        "/v1/auth/:provider/callback",
		"/v1/auth/google/callback?code=x": "/v1/auth/:provider/callback",
		"/v1/auth/forgot-password":        "/v1/auth/forgot-password",
		"/v1/me":                          "/v1/me",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}

func TestAuthMetricsCounting(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewAuthMetrics(reg)

	m.Registration()
	m.Registration()
	m.LoginAttempt("success")
	m.LoginAttempt("failure")
	m.LoginAttempt("failure")

	if got := testutil.ToFloat64(m.registrations); got != 2 {
		t.Fatalf("registrations=%v, want 2", got)
	}
	if got := testutil.ToFloat64(m.loginAttempts.WithLabelValues("success")); got != 1 {
		t.Fatalf("success attempts=%v, want 1", got)
	}
	if got := testutil.ToFloat64(m.loginAttempts.WithLabelValues("failure")); got != 2 {
		t.Fatalf("failure attempts=%v, want 2", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var names []string
	for _, fam := range families {
		names = append(names, fam.GetName())
	}
	joined := strings.Join(names, ",")
	if !strings.Contains(joined, "user_registrations_total") || !strings.Contains(joined, "login_attempts_total") {
		t.Fatalf("expected auth counters registered, got %v", names)
	}
}
