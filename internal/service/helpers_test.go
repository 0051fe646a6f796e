package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"ppe-dashboard/internal/backend"
)

func newTestAPI(t *testing.T, h http.Handler, policy backend.Policy) *backend.API {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	client := backend.NewClient(backend.Options{
		BaseURL:       srv.URL,
		Timeout:       2 * time.Second,
		UploadTimeout: 5 * time.Second,
		Policy:        policy,
	}, backend.NewHTTPTransport(srv.URL, nil), zerolog.Nop())
	return backend.NewAPI(client)
}

var getOnly = backend.Policy{Mode: backend.FallbackMock, Methods: []string{http.MethodGet}}
