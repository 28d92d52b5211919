package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/alchemorsel/pantry/pkg/healthcheck"
)

func TestRun(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		degraded bool
		want     int
	}{
		{"healthy", http.StatusOK, `{"status":"healthy","version":"1"}`, true, exitCodeSuccess},
		{"degraded allowed", http.StatusOK, `{"status":"degraded"}`, true, exitCodeSuccess},
		{"degraded rejected", http.StatusOK, `{"status":"degraded"}`, false, exitCodeFailure},
		{"unhealthy", http.StatusServiceUnavailable, `{"status":"unhealthy"}`, true, exitCodeFailure},
		{"not found", http.StatusNotFound, ``, true, exitCodeError},
		{"garbage", http.StatusOK, `nope`, true, exitCodeError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			got := run(Options{URL: srv.URL, Timeout: time.Second, Format: "json", Degraded: tt.degraded})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRun_RetriesUntilReachable(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	}))
	defer srv.Close()

	got := run(Options{URL: srv.URL, Timeout: time.Second, Retry: 10 * time.Second})

	assert.Equal(t, exitCodeSuccess, got)
	assert.Equal(t, 3, calls)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitCodeFailure, exitCode(healthcheck.Status("unknown"), true))
}
