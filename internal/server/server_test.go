package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"sceneforge/internal/agent"
	"sceneforge/internal/config"
	"sceneforge/internal/meshgen"
)

// stubRefiner records calls and replays a canned result.
type stubRefiner struct {
	lastReq  agent.Request
	result   *agent.Result
	err      error
	resets   []string
	refines  int
	resetCtx context.Context
}

func (s *stubRefiner) Refine(_ context.Context, req agent.Request) (*agent.Result, error) {
	s.refines++
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func (s *stubRefiner) ResetSession(ctx context.Context, sessionID string) {
	s.resetCtx = ctx
	s.resets = append(s.resets, sessionID)
}

func newTestServer(t *testing.T, refiner *stubRefiner, statuses *meshgen.StatusTable) *Server {
	t.Helper()
	srv, err := New(Config{
		Server:   config.ServerConfig{Host: "127.0.0.1", Port: 0},
		Refiner:  refiner,
		Statuses: statuses,
		Version:  "test",
	})
	require.NoError(t, err)
	return srv
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var envelope APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope
}

func TestNewRequiresRefiner(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}

func TestRefineEndpoint(t *testing.T) {
	refiner := &stubRefiner{result: &agent.Result{Code: "function setupScene(scene) {}", Iterations: 2}}
	srv := newTestServer(t, refiner, nil)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/sessions/s1/refine", map[string]any{
		"instruction": "add a cube",
		"code":        "function setupScene(scene) {}",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	envelope := decodeEnvelope(t, rec)
	require.True(t, envelope.Success)
	require.Equal(t, 1, refiner.refines)
	require.Equal(t, "s1", refiner.lastReq.SessionID)
	require.Equal(t, "add a cube", refiner.lastReq.Instruction)
}

func TestRefineRejectsEmptyInstruction(t *testing.T) {
	refiner := &stubRefiner{result: &agent.Result{}}
	srv := newTestServer(t, refiner, nil)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/sessions/s1/refine", map[string]any{
		"instruction": "   ",
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Zero(t, refiner.refines)
}

func TestRefineSurfacesEngineError(t *testing.T) {
	refiner := &stubRefiner{err: fmt.Errorf("boom")}
	srv := newTestServer(t, refiner, nil)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/sessions/s1/refine", map[string]any{
		"instruction": "add a cube",
	})

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	envelope := decodeEnvelope(t, rec)
	require.False(t, envelope.Success)
	require.Contains(t, envelope.Error, "boom")
}

func TestRefineRejectsNonJSONBody(t *testing.T) {
	refiner := &stubRefiner{result: &agent.Result{}}
	srv := newTestServer(t, refiner, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/s1/refine",
		bytes.NewBufferString("instruction=add a cube"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	require.Zero(t, refiner.refines)
}

func TestResetEndpoint(t *testing.T) {
	refiner := &stubRefiner{result: &agent.Result{}}
	srv := newTestServer(t, refiner, nil)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/sessions/s9/reset", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []string{"s9"}, refiner.resets)
}

func TestGenerationEndpoints(t *testing.T) {
	statuses := meshgen.NewStatusTable(meshgen.TableConfig{})
	statuses.Begin("req-1", "a dragon")
	statuses.Complete("req-1", "https://cdn.example.com/dragon.glb")

	srv := newTestServer(t, &stubRefiner{result: &agent.Result{}}, statuses)

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/generations/req-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "dragon.glb")

	rec = doJSON(t, srv.Handler(), http.MethodGet, "/api/generations/missing", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, srv.Handler(), http.MethodGet, "/api/generations", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"count":1`)
}

func TestGenerationLookupWithoutTable(t *testing.T) {
	srv := newTestServer(t, &stubRefiner{result: &agent.Result{}}, nil)

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/generations/req-1", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestToolsEndpointWithoutRegistry(t *testing.T) {
	srv := newTestServer(t, &stubRefiner{result: &agent.Result{}}, nil)

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/tools", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"count":0`)
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, &stubRefiner{result: &agent.Result{}}, nil)

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	envelope := decodeEnvelope(t, rec)
	require.True(t, envelope.Success)
	require.Contains(t, rec.Body.String(), `"status":"ok"`)
	require.Contains(t, rec.Body.String(), `"version":"test"`)
}

func TestRequestIDEchoedBack(t *testing.T) {
	srv := newTestServer(t, &stubRefiner{result: &agent.Result{}}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set(requestIDHeader, "fixed-id")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, "fixed-id", rec.Header().Get(requestIDHeader))
}
