package apiv1

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

// ListJobsParams defines parameters for ListJobs.
type ListJobsParams struct {
	Limit  *int `form:"limit,omitempty" json:"limit,omitempty"`
	Offset *int `form:"offset,omitempty" json:"offset,omitempty"`
}

// GetArtifactParams defines parameters for GetArtifact.
type GetArtifactParams struct {
	Token string `form:"token" json:"token"`
}

// ServerInterface mirrors the operations of api/openapi.yaml.
type ServerInterface interface {
	// (POST /v1/jobs)
	SubmitJob(w http.ResponseWriter, r *http.Request)
	// (GET /v1/jobs)
	ListJobs(w http.ResponseWriter, r *http.Request, params ListJobsParams)
	// (GET /v1/jobs/{id})
	GetJob(w http.ResponseWriter, r *http.Request, id string)
	// (GET /v1/jobs/{id}/watch)
	WatchJob(w http.ResponseWriter, r *http.Request, id string)
	// (GET /v1/credits)
	GetCredits(w http.ResponseWriter, r *http.Request)
	// (GET /v1/artifacts)
	GetArtifact(w http.ResponseWriter, r *http.Request, params GetArtifactParams)
}

// InvalidParamFormatError is reported when a path or query parameter cannot be bound.
type InvalidParamFormatError struct {
	ParamName string
	Err       error
}

func (e *InvalidParamFormatError) Error() string {
	return fmt.Sprintf("invalid format for parameter %s: %s", e.ParamName, e.Err.Error())
}

func (e *InvalidParamFormatError) Unwrap() error { return e.Err }

type wrapper struct {
	handler ServerInterface
	onError func(w http.ResponseWriter, r *http.Request, err error)
}

func (s *wrapper) SubmitJob(w http.ResponseWriter, r *http.Request) {
	s.handler.SubmitJob(w, r)
}

func (s *wrapper) ListJobs(w http.ResponseWriter, r *http.Request) {
	var params ListJobsParams
	if err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &params.Limit); err != nil {
		s.onError(w, r, &InvalidParamFormatError{ParamName: "limit", Err: err})
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "offset", r.URL.Query(), &params.Offset); err != nil {
		s.onError(w, r, &InvalidParamFormatError{ParamName: "offset", Err: err})
		return
	}
	s.handler.ListJobs(w, r, params)
}

func (s *wrapper) pathID(w http.ResponseWriter, r *http.Request) (string, bool) {
	var id string
	err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		s.onError(w, r, &InvalidParamFormatError{ParamName: "id", Err: err})
		return "", false
	}
	return id, true
}

func (s *wrapper) GetJob(w http.ResponseWriter, r *http.Request) {
	if id, ok := s.pathID(w, r); ok {
		s.handler.GetJob(w, r, id)
	}
}

func (s *wrapper) WatchJob(w http.ResponseWriter, r *http.Request) {
	if id, ok := s.pathID(w, r); ok {
		s.handler.WatchJob(w, r, id)
	}
}

func (s *wrapper) GetCredits(w http.ResponseWriter, r *http.Request) {
	s.handler.GetCredits(w, r)
}

func (s *wrapper) GetArtifact(w http.ResponseWriter, r *http.Request) {
	var params GetArtifactParams
	if err := runtime.BindQueryParameter("form", true, true, "token", r.URL.Query(), &params.Token); err != nil {
		s.onError(w, r, &InvalidParamFormatError{ParamName: "token", Err: err})
		return
	}
	s.handler.GetArtifact(w, r, params)
}

// RegisterAPIV1 mounts the /v1 routes on r. Every route except the artifact
// download runs behind authMW; artifact URLs carry their own signed token.
func RegisterAPIV1(r chi.Router, si ServerInterface, authMW ...func(http.Handler) http.Handler) {
	w := &wrapper{
		handler: si,
		onError: func(w http.ResponseWriter, r *http.Request, err error) {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		},
	}

	r.Get("/v1/artifacts", w.GetArtifact)
	r.Group(func(g chi.Router) {
		g.Use(authMW...)
		g.Post("/v1/jobs", w.SubmitJob)
		g.Get("/v1/jobs", w.ListJobs)
		g.Get("/v1/jobs/{id}", w.GetJob)
		g.Get("/v1/jobs/{id}/watch", w.WatchJob)
		g.Get("/v1/credits", w.GetCredits)
	})
}
