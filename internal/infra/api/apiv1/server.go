package apiv1

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"virtual-tryon/internal/domain"
	"virtual-tryon/internal/domain/model"
	"virtual-tryon/internal/domain/ports/adapter"
	"virtual-tryon/internal/infra/logging"
	"virtual-tryon/internal/infra/metrics"
	red "virtual-tryon/internal/infra/redis"
	"virtual-tryon/internal/usecase"
)

var _ ServerInterface = (*Server)(nil)

// RateLimiter is satisfied by the Redis fixed-window limiter.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// TokenVerifier resolves a signed artifact token to its reference.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

type Deps struct {
	Dispatch  usecase.DispatchUseCase
	Status    usecase.StatusUseCase
	Artifacts adapter.ArtifactStore
	Tokens    TokenVerifier

	// Limiter is optional; without it submissions are not rate limited.
	Limiter         RateLimiter
	SubmitPerMinute int
	MaxImageBytes   int64
	WatchInterval   time.Duration
}

type Server struct {
	deps     Deps
	upgrader websocket.Upgrader
	log      *zerolog.Logger
}

func NewServer(deps Deps, logger *zerolog.Logger) *Server {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if deps.MaxImageBytes <= 0 {
		deps.MaxImageBytes = 10 << 20
	}
	if deps.WatchInterval <= 0 {
		deps.WatchInterval = time.Second
	}
	l := logger.With().Str("component", "apiv1").Logger()
	return &Server{
		deps: deps,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: &l,
	}
}

func (s *Server) logger(r *http.Request) *zerolog.Logger {
	return logging.With(r.Context(), s.log)
}

type submitResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

func (s *Server) SubmitJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner := logging.OwnerID(ctx)

	if s.deps.Limiter != nil && s.deps.SubmitPerMinute > 0 {
		ok, err := s.deps.Limiter.Allow(ctx, red.OwnerActionKey(owner, "submit"), s.deps.SubmitPerMinute, time.Minute)
		if err != nil {
			// fail open
			s.logger(r).Warn().Err(err).Msg("rate limiter unavailable")
		} else if !ok {
			metrics.IncRateLimitTriggered()
			metrics.IncJobRejected("rate_limit")
			s.writeError(w, r, domain.ErrRateLimited)
			return
		}
	}

	// two images plus form overhead
	r.Body = http.MaxBytesReader(w, r.Body, 2*s.deps.MaxImageBytes+(1<<20))
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, r, fmt.Errorf("%w: request exceeds %d bytes", domain.ErrInvalidImage, tooLarge.Limit))
			return
		}
		s.writeError(w, r, fmt.Errorf("%w: expected multipart/form-data: %v", domain.ErrInvalidArgument, err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	person, err := s.readInput(r, "person")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	garment, err := s.readInput(r, "garment")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	job, err := s.deps.Dispatch.Submit(ctx, usecase.SubmitInput{
		OwnerID: owner,
		Person:  person,
		Garment: garment,
		Style:   r.FormValue("style"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/jobs/"+job.ID)
	writeJSON(w, http.StatusAccepted, submitResponse{JobID: job.ID, Status: string(job.Status)})
}

// readInput takes the file part <name> or, when absent, the <name>_ref field.
func (s *Server) readInput(r *http.Request, name string) (usecase.Input, error) {
	f, _, err := r.FormFile(name)
	if errors.Is(err, http.ErrMissingFile) {
		return usecase.Input{Ref: r.FormValue(name + "_ref")}, nil
	}
	if err != nil {
		return usecase.Input{}, fmt.Errorf("%w: %s: %v", domain.ErrInvalidArgument, name, err)
	}
	defer f.Close()
	// one byte over the limit lets the dispatcher report the size
	data, err := io.ReadAll(io.LimitReader(f, s.deps.MaxImageBytes+1))
	if err != nil {
		return usecase.Input{}, fmt.Errorf("read %s: %w", name, err)
	}
	return usecase.Input{Data: data}, nil
}

func (s *Server) GetJob(w http.ResponseWriter, r *http.Request, id string) {
	v, err := s.deps.Status.GetStatus(r.Context(), id, logging.OwnerID(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

type listResponse struct {
	Items  []*usecase.JobView `json:"items"`
	Total  int                `json:"total"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
}

func (s *Server) ListJobs(w http.ResponseWriter, r *http.Request, params ListJobsParams) {
	offset, limit := 0, usecase.DefaultListLimit
	if params.Offset != nil && *params.Offset > 0 {
		offset = *params.Offset
	}
	if params.Limit != nil && *params.Limit > 0 {
		limit = *params.Limit
	}
	if limit > usecase.MaxListLimit {
		limit = usecase.MaxListLimit
	}
	items, total, err := s.deps.Status.ListCompleted(r.Context(), logging.OwnerID(r.Context()), offset, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Items: items, Total: total, Limit: limit, Offset: offset})
}

func (s *Server) GetCredits(w http.ResponseWriter, r *http.Request) {
	owner := logging.OwnerID(r.Context())
	balance, err := s.deps.Status.Balance(r.Context(), owner)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"owner_id": owner, "balance": balance})
}

func (s *Server) GetArtifact(w http.ResponseWriter, r *http.Request, params GetArtifactParams) {
	ref, err := s.deps.Tokens.Verify(params.Token)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	img, err := s.deps.Artifacts.Get(r.Context(), ref)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ct := img.MIMEType
	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
	w.Header().Set("Cache-Control", "private, max-age=60")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img.Data)
}

// WatchJob pushes the job view over a websocket every time its status changes
// and closes the stream once the job is terminal.
func (s *Server) WatchJob(w http.ResponseWriter, r *http.Request, id string) {
	owner := logging.OwnerID(r.Context())
	view, err := s.deps.Status.GetStatus(r.Context(), id, owner)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger(r).Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		// drain client frames; a read error means the peer went away
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.deps.WatchInterval)
	defer ticker.Stop()
	last := ""
	for {
		if view.Status != last {
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(view); err != nil {
				return
			}
			last = view.Status
		}
		if model.JobStatus(view.Status).IsTerminal() {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, view.Status),
				time.Now().Add(time.Second))
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		next, err := s.deps.Status.GetStatus(ctx, id, owner)
		if err != nil {
			s.logger(r).Warn().Err(err).Str("job_id", id).Msg("watch: status read failed")
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "status unavailable"),
				time.Now().Add(time.Second))
			return
		}
		view = next
	}
}
