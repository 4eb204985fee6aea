package web_service

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pzhenzhou/respd/pkg/common"
	"github.com/pzhenzhou/respd/pkg/server"
)

func newTestWebServer(t *testing.T, mutate func(cfg *common.ServerConfig)) *WebServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := common.DefaultServerConfig()
	cfg.WebServer.EnablePprof = false
	if mutate != nil {
		mutate(&cfg)
	}
	return NewWebServer(&cfg, server.NewRespServer(&cfg), nil)
}

func doRequest(s *WebServer, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	s.Engine().ServeHTTP(rec, req)
	return rec
}

type decodeResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func TestHealthCheck(t *testing.T) {
	s := newTestWebServer(t, nil)
	rec := doRequest(s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","node":"local_respd"}`, rec.Body.String())

	s = newTestWebServer(t, func(cfg *common.ServerConfig) {
		cfg.Node.NodeId = "respd-2"
	})
	rec = doRequest(s, http.MethodGet, "/healthz", "")
	assert.JSONEq(t, `{"status":"ok","node":"respd-2"}`, rec.Body.String())
}

func TestListSessions_Empty(t *testing.T) {
	s := newTestWebServer(t, nil)
	rec := doRequest(s, http.MethodGet, ListSessionsPath, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp decodeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.JSONEq(t, `[]`, string(resp.Data))
}

func TestGetSession_NotFound(t *testing.T) {
	s := newTestWebServer(t, nil)
	rec := doRequest(s, http.MethodGet, "/sessions/missing", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	var resp decodeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "session not found: missing", resp.Message)
}

func TestDecodeHandler(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		code     int
		expected string
	}{
		{name: "simple string", body: "+OK\r\n", code: http.StatusOK, expected: `{"type":"simple_string","value":"OK"}`},
		{name: "error", body: "-ERR bad\r\n", code: http.StatusOK, expected: `{"type":"simple_error","value":"ERR bad"}`},
		{name: "integer", body: ":-12\r\n", code: http.StatusOK, expected: `{"type":"integer","value":-12}`},
		{name: "bulk", body: "$5\r\nhello\r\n", code: http.StatusOK, expected: `{"type":"bulk_string","value":"hello"}`},
		{name: "empty", body: "", code: http.StatusBadRequest, expected: `{"kind":"empty","error":"empty RESP buffer"}`},
		{name: "array", body: "*1\r\n", code: http.StatusBadRequest, expected: `{"kind":"unsupported_type","error":"unsupported RESP type '*'"}`},
		{name: "length mismatch", body: "$9\r\nhello\r\n", code: http.StatusBadRequest,
			expected: `{"kind":"length_mismatch","error":"bulk string length mismatch: declared 9, got 5 bytes"}`},
	}

	s := newTestWebServer(t, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(s, http.MethodPost, DecodePath, tt.body)
			require.Equal(t, tt.code, rec.Code)
			var resp decodeResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.JSONEq(t, tt.expected, string(resp.Data))
		})
	}
}

func TestDecodeHandler_Lenient(t *testing.T) {
	s := newTestWebServer(t, func(cfg *common.ServerConfig) {
		cfg.Decoder.LenientBulkLength = true
	})
	rec := doRequest(s, http.MethodPost, DecodePath, "$9\r\nhello\r\n")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDecodeHandler_TooLarge(t *testing.T) {
	s := newTestWebServer(t, nil)
	rec := doRequest(s, http.MethodPost, DecodePath, "+"+strings.Repeat("a", maxDecodeBody)+"\r\n")
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestRegisterHandler_Dedup(t *testing.T) {
	s := newTestWebServer(t, nil)
	before := len(s.handlers)
	s.registerHandler(&HealthCheckHandler{})
	assert.Equal(t, before, len(s.handlers))
}
