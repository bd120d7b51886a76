package api

import (
	"net/http"

	"github.com/go-chi/render"
)

// Problem is an RFC 7807 problem details object.
type Problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
	Trace  string `json:"trace_id,omitempty"`
}

// Render implements render.Renderer. The body is written by render.Respond.
func (p *Problem) Render(_ http.ResponseWriter, r *http.Request) error {
	render.Status(r, p.Status)
	return nil
}
