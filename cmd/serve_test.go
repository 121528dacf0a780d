package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brokerdesk/coverage-cli/internal/config"
	"github.com/brokerdesk/coverage-cli/internal/extract"
	"github.com/brokerdesk/coverage-cli/internal/model"
	"github.com/brokerdesk/coverage-cli/internal/pipeline"
	"github.com/brokerdesk/coverage-cli/internal/store"
	"github.com/brokerdesk/coverage-cli/pkg/anthropic"
)

// stubDoc returns fixed document text.
type stubDoc struct {
	text string
}

func (s *stubDoc) ExtractText(context.Context, string) (string, error) {
	return s.text, nil
}

// stubModel returns a canned model response.
type stubModel struct {
	payload string
}

func (s *stubModel) CreateMessage(context.Context, anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: s.payload}},
		Usage:   anthropic.TokenUsage{InputTokens: 10, OutputTokens: 5},
	}, nil
}

const serveTestPayload = `{"offers":[{"structured":{"vendor_name":"ACME Insurance","fire":true,"premium_total":1450.0},"raw_text":"Fire: included"}]}`

// newTestEnv builds an appEnv against a throwaway SQLite store and stubbed
// model transport, and points the global cfg at test defaults.
func newTestEnv(t *testing.T) *appEnv {
	t.Helper()

	cfg = &config.Config{
		Server:  config.ServerConfig{Port: 0, AllowedOrigins: []string{"*"}},
		Extract: config.ExtractConfig{MaxAttempts: 2, MaxTokens: 1024},
	}

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "serve_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	catalog, err := model.DefaultRowCatalog()
	require.NoError(t, err)

	extractor := extract.NewExtractor(&stubModel{payload: serveTestPayload}, catalog, "claude-test", cfg.Extract)

	return &appEnv{
		Store:    st,
		Catalog:  catalog,
		Pipeline: pipeline.New(st, &stubDoc{text: "offer text"}, extractor),
	}
}

func testDocPath(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "acme.txt")
	require.NoError(t, os.WriteFile(path, []byte("offer"), 0644))
	return path
}

func TestServe_Health(t *testing.T) {
	router := newRouter(context.Background(), newTestEnv(t))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rr.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestServe_Extract_BadRequest(t *testing.T) {
	router := newRouter(context.Background(), newTestEnv(t))

	for name, payload := range map[string]string{
		"invalid json":   `{not json`,
		"missing fields": `{"case_id":"case-1"}`,
	} {
		t.Run(name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/extract", bytes.NewBufferString(payload))
			router.ServeHTTP(rr, req)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}
}

func TestServe_Extract_Accepted(t *testing.T) {
	env := newTestEnv(t)
	router := newRouter(context.Background(), env)

	body, err := json.Marshal(map[string]string{
		"case_id":     "case-1",
		"vendor_name": "ACME",
		"path":        testDocPath(t),
	})
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/extract", bytes.NewReader(body)))

	require.Equal(t, http.StatusAccepted, rr.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	runID := resp["run_id"]
	require.NotEmpty(t, runID)
	assert.Equal(t, "queued", resp["status"])

	// The extraction runs in the background; wait for the run to finish.
	require.Eventually(t, func() bool {
		run, err := env.Store.GetRun(context.Background(), runID)
		return err == nil && run.Status == model.RunStatusComplete
	}, 5*time.Second, 10*time.Millisecond)

	offers, err := env.Store.ListOffers(context.Background(), "case-1")
	require.NoError(t, err)
	require.Len(t, offers, 1)
	assert.Equal(t, "ACME Insurance", offers[0].VendorName)
}

func TestServe_GetRun_NotFound(t *testing.T) {
	router := newRouter(context.Background(), newTestEnv(t))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/runs/nonexistent", nil))

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestServe_Comparison(t *testing.T) {
	env := newTestEnv(t)
	router := newRouter(context.Background(), env)
	ctx := context.Background()

	run, err := env.Store.CreateRun(ctx, "case-1", "ACME", "acme.txt")
	require.NoError(t, err)
	_, err = env.Store.SaveOffers(ctx, run.ID, "case-1", []model.OfferRecord{
		{VendorName: "ACME Insurance", Coverage: map[string]any{"fire": true}},
		{VendorName: "Allianz", Coverage: map[string]any{"fire": false}},
	})
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/cases/case-1/comparison", nil))

	require.Equal(t, http.StatusOK, rr.Code)

	var m struct {
		Columns []string       `json:"columns"`
		Values  map[string]any `json:"values"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &m))
	assert.Equal(t, []string{"ACME Insurance", "Allianz"}, m.Columns)
	assert.Equal(t, true, m.Values["fire::ACME Insurance"])
	assert.Equal(t, false, m.Values["fire::Allianz"])
}

func TestServe_Comparison_EmptyCase(t *testing.T) {
	router := newRouter(context.Background(), newTestEnv(t))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/cases/empty-case/comparison", nil))

	require.Equal(t, http.StatusOK, rr.Code)

	var m struct {
		Columns []string `json:"columns"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &m))
	assert.Empty(t, m.Columns)
	assert.NotNil(t, m.Columns)
}

func TestServe_CaseRuns(t *testing.T) {
	env := newTestEnv(t)
	router := newRouter(context.Background(), env)

	_, err := env.Store.CreateRun(context.Background(), "case-1", "ACME", "a.txt")
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/cases/case-1/runs", nil))

	require.Equal(t, http.StatusOK, rr.Code)

	var runs []model.ExtractionRun
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "ACME", runs[0].VendorName)
}
