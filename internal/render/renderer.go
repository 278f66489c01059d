// Package render defines the template rendering collaborator boundary.
// The issuance engine only needs "merge fields into a body, get bytes
// back"; PDF/HTML layout engines plug in behind the Renderer interface.
package render

import "errors"

// ErrMalformed is returned for bodies the renderer cannot process, such
// as an unterminated {{ placeholder.
var ErrMalformed = errors.New("malformed template body")

//go:generate mockgen -destination=../../mocks/renderer/mock_renderer.go -package=mockrenderer labcert/internal/render Renderer

// Renderer merges field values into a template body and produces the
// final artifact bytes.
type Renderer interface {
	Render(body string, fields map[string]string) ([]byte, error)
}
