package http

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var openapiYAML []byte

// Spec parses and validates the OpenAPI document describing Routes.
func Spec(ctx context.Context) (*openapi3.T, error) {
	doc, err := openapi3.NewLoader().LoadFromData(openapiYAML)
	if err != nil {
		return nil, fmt.Errorf("failed to load openapi document: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("invalid openapi document: %w", err)
	}
	return doc, nil
}

var specJSON = sync.OnceValues(func() ([]byte, error) {
	doc, err := Spec(context.Background())
	if err != nil {
		return nil, err
	}
	return json.Marshal(doc)
})

// GetOpenAPI handles GET /openapi.json.
func (s *Server) GetOpenAPI(w http.ResponseWriter, r *http.Request) {
	data, err := specJSON()
	if err != nil {
		s.fail(w, "GetOpenAPI", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}
