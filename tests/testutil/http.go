package testutil

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/erp/poscore/internal/interfaces/http/dto"
	"github.com/erp/poscore/internal/interfaces/http/handler"
	"github.com/erp/poscore/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

// Server is the full HTTP stack of an Env
type Server struct {
	Env    *Env
	Engine *gin.Engine
}

// NewServer builds the production engine over env's services
func NewServer(t *testing.T, env *Env) *Server {
	t.Helper()
	engine, err := router.NewEngine(router.EngineConfig{
		Authenticator: env.JWT,
		Logger:        env.Logger,
	}, router.Handlers{
		Sales:          handler.NewSaleHandler(env.Sales),
		Payments:       handler.NewPaymentHandler(env.Payments),
		Products:       handler.NewProductHandler(env.Inventory),
		Customers:      handler.NewCustomerHandler(env.Customers),
		Reconciliation: handler.NewReconciliationHandler(env.Reconciliation),
		Health: handler.NewHealthHandler("test", map[string]handler.Pinger{
			"database": handler.PingerFunc(env.DB.Ping),
		}),
	})
	require.NoError(t, err)
	return &Server{Env: env, Engine: engine}
}

// Request describes one call against the server
type Request struct {
	Method  string
	Path    string
	Body    any
	Token   string
	Headers map[string]string
}

// Do serves req and returns the recorded response
func (s *Server) Do(t *testing.T, req Request) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Reader
	switch b := req.Body.(type) {
	case nil:
		body = bytes.NewReader(nil)
	case string:
		body = bytes.NewReader([]byte(b))
	case []byte:
		body = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	httpReq := httptest.NewRequest(req.Method, req.Path, body)
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.Token)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.Engine.ServeHTTP(w, httpReq)
	return w
}

// As returns a request builder bound to token. Headers are passed as
// alternating name and value strings.
func (s *Server) As(t *testing.T, token string) func(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	return func(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
		t.Helper()
		h := map[string]string{}
		for i := 0; i+1 < len(headers); i += 2 {
			h[headers[i]] = headers[i+1]
		}
		return s.Do(t, Request{Method: method, Path: path, Body: body, Token: token, Headers: h})
	}
}

// envelope mirrors dto.Response with a typed payload
type envelope[T any] struct {
	Success bool           `json:"success"`
	Data    T              `json:"data"`
	Error   *dto.ErrorInfo `json:"error"`
	Meta    *dto.Meta      `json:"meta"`
}

// DecodeData unmarshals the data field of a success envelope
func DecodeData[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var env envelope[T]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), "body: %s", w.Body.String())
	require.True(t, env.Success, "expected success, body: %s", w.Body.String())
	return env.Data
}

// DecodeMeta unmarshals the pagination metadata of a list response
func DecodeMeta(t *testing.T, w *httptest.ResponseRecorder) *dto.Meta {
	t.Helper()
	var env envelope[json.RawMessage]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env.Meta
}

// DecodeError unmarshals the error field of a failure envelope
func DecodeError(t *testing.T, w *httptest.ResponseRecorder) *dto.ErrorInfo {
	t.Helper()
	var env envelope[json.RawMessage]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), "body: %s", w.Body.String())
	require.False(t, env.Success, "expected failure, body: %s", w.Body.String())
	require.NotNil(t, env.Error, "body: %s", w.Body.String())
	return env.Error
}

// AssertErrorCode checks the status and machine code of an error response
func AssertErrorCode(t *testing.T, w *httptest.ResponseRecorder, status int, code string) *dto.ErrorInfo {
	t.Helper()
	require.Equal(t, status, w.Code, "body: %s", w.Body.String())
	info := DecodeError(t, w)
	require.Equal(t, code, info.Code, "body: %s", w.Body.String())
	return info
}

// AssertStatus checks the response status and reports the body on mismatch
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, status int) {
	t.Helper()
	require.Equal(t, status, w.Code, "body: %s", w.Body.String())
}
