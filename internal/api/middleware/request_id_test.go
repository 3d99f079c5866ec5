package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/saferoute/saferoute/internal/api/middleware"
)

func serveWithRequestID(t *testing.T, inbound string) (header, fromContext string) {
	t.Helper()
	handler := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromContext = middleware.GetRequestID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/route", http.NoBody)
	if inbound != "" {
		req.Header.Set(middleware.RequestIDHeader, inbound)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	return w.Header().Get(middleware.RequestIDHeader), fromContext
}

func TestRequestID_Generated(t *testing.T) {
	header, ctxID := serveWithRequestID(t, "")

	assert.True(t, strings.HasPrefix(header, "req_"), header)
	assert.Len(t, header, len("req_")+32)
	assert.Equal(t, header, ctxID)
}

func TestRequestID_Inbound(t *testing.T) {
	tests := []struct {
		name    string
		inbound string
		kept    bool
	}{
		{name: "plain", inbound: "existing_request_id", kept: true},
		{name: "uuid", inbound: "0b6f2a1e-7c4d-4e8f-9a3b-2d1c0e9f8a7b", kept: true},
		{name: "cloud trace style", inbound: "abc.def:123", kept: true},
		{name: "too long", inbound: strings.Repeat("a", 65)},
		{name: "spaces", inbound: "has spaces"},
		{name: "log injection", inbound: "id\nlevel=error"},
		{name: "non ascii", inbound: "idé"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header, ctxID := serveWithRequestID(t, tt.inbound)

			assert.Equal(t, header, ctxID)
			if tt.kept {
				assert.Equal(t, tt.inbound, header)
			} else {
				assert.NotEqual(t, tt.inbound, header)
				assert.True(t, strings.HasPrefix(header, "req_"), header)
			}
		})
	}
}

func TestGetRequestID_ReturnsEmptyStringForMissingContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/route", http.NoBody)
	assert.Empty(t, middleware.GetRequestID(req.Context()))
}

func TestRequestID_UniqueIDs(t *testing.T) {
	ids := make(map[string]bool)
	for range 100 {
		id, _ := serveWithRequestID(t, "")
		assert.False(t, ids[id], "duplicate request ID generated: %s", id)
		ids[id] = true
	}
}
