package http

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpec_Valid(t *testing.T) {
	doc, err := Spec(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "taxgraph", doc.Info.Title)
}

func TestSpec_DocumentsEveryRoute(t *testing.T) {
	srv, _ := newTestServer(t)
	doc, err := Spec(context.Background())
	require.NoError(t, err)

	var routes int
	err = chi.Walk(srv.router(), func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		if route != "/" {
			route = strings.TrimSuffix(route, "/")
		}
		routes++
		item := doc.Paths.Find(route)
		if assert.NotNil(t, item, "undocumented path %s", route) {
			assert.NotNil(t, item.GetOperation(method), "undocumented operation %s %s", method, route)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Greater(t, routes, 10)
}

func TestGetOpenAPI(t *testing.T) {
	_, h := newTestServer(t)

	w := do(t, h, "GET", "/openapi.json", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	body := decodeBody[map[string]any](t, w)
	assert.Equal(t, "3.0.3", body["openapi"])
	assert.Contains(t, body["paths"], "/sessions/{key}/events")
}
