// Package contract holds the OpenAPI description of the backend and checks
// outgoing requests against it.
package contract

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	legacyrouter "github.com/getkin/kin-openapi/routers/legacy"
)

//go:embed openapi.yaml
var document []byte

// Load parses and validates the embedded document.
func Load(ctx context.Context) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(document)
	if err != nil {
		return nil, fmt.Errorf("load api contract: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("validate api contract: %w", err)
	}
	return doc, nil
}

type Validator struct {
	router   routers.Router
	basePath string
}

// NewValidator builds a validator for requests sent to a backend mounted
// under basePath (usually empty).
func NewValidator(ctx context.Context, basePath string) (*Validator, error) {
	doc, err := Load(ctx)
	if err != nil {
		return nil, err
	}
	router, err := legacyrouter.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("build contract router: %w", err)
	}
	return &Validator{router: router, basePath: strings.TrimRight(basePath, "/")}, nil
}

// Validate checks method, path, parameters and, except for multipart
// uploads, the body. req is not consumed.
func (v *Validator) Validate(ctx context.Context, req *http.Request, body []byte) error {
	routed := req.Clone(ctx)
	if v.basePath != "" {
		routed.URL.Path = strings.TrimPrefix(routed.URL.Path, v.basePath)
		if routed.URL.Path == "" {
			routed.URL.Path = "/"
		}
	}
	routed.URL.RawPath = ""
	routed.Body = io.NopCloser(bytes.NewReader(body))

	route, params, err := v.router.FindRoute(routed)
	if err != nil {
		return fmt.Errorf("%s %s is not part of the api contract: %w", req.Method, routed.URL.Path, err)
	}

	multipart := strings.HasPrefix(req.Header.Get("Content-Type"), "multipart/")
	input := &openapi3filter.RequestValidationInput{
		Request:    routed,
		PathParams: params,
		Route:      route,
		Options: &openapi3filter.Options{
			AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
			ExcludeRequestBody: multipart,
			MultiError:         false,
		},
	}
	if err := openapi3filter.ValidateRequest(ctx, input); err != nil {
		return fmt.Errorf("%s %s violates the api contract: %w", req.Method, routed.URL.Path, err)
	}
	return nil
}
