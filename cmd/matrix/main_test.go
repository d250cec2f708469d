package main

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setEnv points every backend at url and clears settings the host might carry.
func setEnv(t *testing.T, url string) {
	t.Helper()
	for _, key := range []string{
		"MATRIX_HUB_TOKEN", "MATRIX_TOKEN", "API_TOKEN",
		"MATRIX_TIMEOUT", "MATRIX_RATE_LIMIT", "MATRIX_LOG_JSON",
		"STORAGE_ENABLED", "DATABASE_URL", "PROMETHEUS_URL", "KUBECONFIG",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("MATRIX_HUB_URL", url)
	t.Setenv("MATRIX_AI_URL", url)
	t.Setenv("MATRIX_GUARDIAN_URL", url)
	t.Setenv("MATRIX_MAX_RETRIES", "1")
	t.Setenv("MATRIX_LOG_LEVEL", "error")
}

func execute(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

const proposalJSON = `{"id": 7, "app_uid": "billing", "proposal_type": "scale", "state": "%s",
	"rationale": "p95 latency above budget", "risk_score": 85, "diff": {}}`

func TestVersion(t *testing.T) {
	setEnv(t, "http://localhost:7300")

	code, stdout, _ := execute("version")

	assert.Equal(t, 0, code)
	assert.Equal(t, "matrix version "+version+"\n", stdout)
}

func TestVersionIgnoresInvalidConfig(t *testing.T) {
	setEnv(t, "http://localhost:7300")
	t.Setenv("MATRIX_LOG_LEVEL", "verbose")
	t.Setenv("PROMETHEUS_URL", "not a url")

	code, stdout, stderr := execute("version")
	assert.Equal(t, 0, code, stderr)
	assert.Equal(t, "matrix version "+version+"\n", stdout)

	code, _, stderr = execute("info")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "invalid configuration")
}

func TestInfoMasksToken(t *testing.T) {
	setEnv(t, "http://localhost:7300")
	t.Setenv("MATRIX_TOKEN", "supersecrettoken")

	code, stdout, _ := execute("-o", "json", "info")

	require.Equal(t, 0, code)
	assert.NotContains(t, stdout, "supersecrettoken")
	assert.Contains(t, stdout, `"hub_url": "http://localhost:7300"`)
}

func TestInvalidOutputFormat(t *testing.T) {
	setEnv(t, "http://localhost:7300")

	code, _, stderr := execute("-o", "yaml", "info")

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "invalid configuration")
}

func TestProposalsJSON(t *testing.T) {
	var gotState string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotState = r.URL.Query().Get("state")
		assert.Equal(t, "/proposals", r.URL.Path)
		fmt.Fprintf(w, `{"items": [`+proposalJSON+`]}`, "pending")
	}))
	defer srv.Close()
	setEnv(t, srv.URL)

	code, stdout, stderr := execute("-o", "json", "proposals", "--state", "pending")

	require.Equal(t, 0, code, stderr)
	assert.Equal(t, "pending", gotState)
	assert.Contains(t, stdout, `"risk_level": "HIGH"`)
	assert.Contains(t, stdout, `"app_uid": "billing"`)
}

func TestApproveAlreadyDecided(t *testing.T) {
	var (
		mu    sync.Mutex
		calls []string
	)
	mux := http.NewServeMux()
	mux.HandleFunc("/proposals/7/approve", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls = append(calls, r.Method+" "+r.URL.Path)
		mu.Unlock()
		w.WriteHeader(http.StatusConflict)
		fmt.Fprint(w, `{"detail": "proposal is not pending"}`)
	})
	mux.HandleFunc("/proposals/7", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls = append(calls, r.Method+" "+r.URL.Path)
		mu.Unlock()
		fmt.Fprintf(w, proposalJSON, "rejected")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	setEnv(t, srv.URL)

	code, stdout, stderr := execute("-o", "json", "approve", "7", "--actor", "alice")

	require.Equal(t, 0, code, stderr)
	assert.Equal(t, []string{"POST /proposals/7/approve", "GET /proposals/7"}, calls)
	assert.Contains(t, stdout, `"outcome": "ALREADY_DECIDED"`)
	assert.Contains(t, stdout, `"final_state": "rejected"`)
	assert.Contains(t, stdout, `"actor": "alice"`)
}

func TestAuthErrorKind(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"detail": "missing token"}`)
	}))
	defer srv.Close()
	setEnv(t, srv.URL)

	code, _, stderr := execute("stats")

	assert.Equal(t, 1, code)
	assert.True(t, strings.HasPrefix(stderr, "Error (auth):"), stderr)
	assert.Contains(t, stderr, "MATRIX_HUB_TOKEN")
}

func TestHealthAllContinuesPastFailures(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status": "healthy"}`)
	})
	mux.HandleFunc("/health/ai", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	mux.HandleFunc("/health/guardian", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status": "degraded"}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	setEnv(t, srv.URL)

	code, stdout, stderr := execute("-o", "json", "health", "--service", "all")

	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, `"service": "hub"`)
	assert.Contains(t, stdout, `"service": "ai"`)
	assert.Contains(t, stdout, `"service": "guardian"`)
	assert.Contains(t, stdout, `"status": "degraded"`)
	assert.Contains(t, stdout, `"status": "unhealthy"`)
	assert.Contains(t, stderr, "Error (api): health check failed")
}

func TestHealthUnknownService(t *testing.T) {
	setEnv(t, "http://localhost:7300")

	code, _, stderr := execute("health", "--service", "db")

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, `unknown service "db"`)
}

func TestInvalidProposalID(t *testing.T) {
	setEnv(t, "http://localhost:7300")

	for _, id := range []string{"abc", "0", "-3"} {
		code, _, stderr := execute("proposal", id)
		assert.Equal(t, 1, code, id)
		assert.Contains(t, stderr, "invalid proposal id", id)
	}
}

func TestStorageCommandsNeedStorage(t *testing.T) {
	setEnv(t, "http://localhost:7300")

	code, _, stderr := execute("history", "billing")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "storage is disabled")

	code, _, stderr = execute("decisions", "7")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "storage is disabled")
}

func TestProbeUnknownSource(t *testing.T) {
	setEnv(t, "http://localhost:7300")

	code, _, stderr := execute("probe", "--source", "nagios")

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, `unknown source "nagios"`)
}

func TestMetricsDump(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"services": 3}`)
	}))
	defer srv.Close()
	setEnv(t, srv.URL)

	code, _, stderr := execute("--metrics", "stats")

	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stderr, `matrix_client_requests_total{code="200",method="GET",service="hub"} 1`)
}

func TestErrorChain(t *testing.T) {
	root := errors.New("root")
	other := errors.New("other")
	err := fmt.Errorf("outer: %w", errors.Join(root, other))

	chain := errorChain(err)

	require.Len(t, chain, 4)
	assert.Equal(t, err, chain[0])
	assert.Equal(t, root, chain[2])
	assert.Equal(t, other, chain[3])
	assert.Nil(t, errorChain(nil))
}
