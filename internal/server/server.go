// Package server exposes enrichment runs over HTTP so a front end can start
// them and poll their progress.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/osmatch-cli/internal/pipeline"
)

// maxRequestBody caps the size of a create-run request.
const maxRequestBody = 1 << 20

// ErrOutsideInputDir is returned for input paths that escape the input directory.
var ErrOutsideInputDir = errors.New("server: input_path must be inside the input directory")

// DriverFactory builds a fresh single-use driver for a run.
type DriverFactory func(runID string) *pipeline.Driver

// Option configures a Server.
type Option func(*Server)

// WithDefaultKey sets the API key used when a request does not carry one.
func WithDefaultKey(key string) Option {
	return func(s *Server) {
		s.defaultKey = key
	}
}

// WithInputDir restricts runs to files under dir. Relative input paths are
// resolved against it. The default is the working directory.
func WithInputDir(dir string) Option {
	return func(s *Server) {
		s.inputDir = dir
	}
}

// WithAllowedOrigins sets the CORS origins. Empty disables CORS headers.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		s.allowedOrigins = origins
	}
}

// Server tracks runs started over HTTP.
type Server struct {
	ctx            context.Context
	newDriver      DriverFactory
	defaultKey     string
	allowedOrigins []string
	inputDir       string
	inputRoot      string
	inputRootReal  string

	mu    sync.RWMutex
	runs  map[string]*pipeline.Progress
	order []string

	wg sync.WaitGroup
}

// New creates a Server. Runs are cancelled when ctx is done.
func New(ctx context.Context, newDriver DriverFactory, opts ...Option) (*Server, error) {
	s := &Server{
		ctx:       ctx,
		newDriver: newDriver,
		inputDir:  ".",
		runs:      make(map[string]*pipeline.Progress),
	}
	for _, opt := range opts {
		opt(s)
	}

	root, err := filepath.Abs(s.inputDir)
	if err != nil {
		return nil, eris.Wrap(err, "server: resolve input dir")
	}
	s.inputRoot = root
	s.inputRootReal = root
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		s.inputRootReal = resolved
	}
	return s, nil
}

// resolveInput returns the absolute form of inputPath, or ErrOutsideInputDir
// when it (or the file it links to) is not under the input directory.
func (s *Server) resolveInput(inputPath string) (string, error) {
	p := inputPath
	if !filepath.IsAbs(p) {
		p = filepath.Join(s.inputRoot, p)
	}
	p = filepath.Clean(p)

	if !within(s.inputRoot, p) {
		return "", ErrOutsideInputDir
	}
	resolved, err := filepath.EvalSymlinks(p)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// The run reports the missing file.
		return p, nil
	case err != nil:
		return "", eris.Wrap(err, "server: resolve input path")
	case !within(s.inputRootReal, resolved):
		return "", ErrOutsideInputDir
	}
	return p, nil
}

func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// StartRun launches a run in the background and returns its ID. inputPath
// must resolve to a file under the input directory.
func (s *Server) StartRun(inputPath, key string) (string, error) {
	inputPath, err := s.resolveInput(inputPath)
	if err != nil {
		return "", err
	}
	if key == "" {
		key = s.defaultKey
	}

	id := uuid.NewString()
	d := s.newDriver(id)

	s.mu.Lock()
	s.runs[id] = d.Progress()
	s.order = append(s.order, id)
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		out, err := d.Run(s.ctx, inputPath, key)
		if err != nil {
			zap.L().Warn("server: run failed", zap.String("run_id", id), zap.Error(err))
			return
		}
		zap.L().Info("server: run complete", zap.String("run_id", id), zap.String("output", out))
	}()

	return id, nil
}

// Run returns the state of one run.
func (s *Server) Run(id string) (pipeline.RunState, bool) {
	s.mu.RLock()
	p, ok := s.runs[id]
	s.mu.RUnlock()
	if !ok {
		return pipeline.RunState{}, false
	}
	return p.Snapshot(), true
}

// Runs returns the state of every run, oldest first.
func (s *Server) Runs() []pipeline.RunState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	states := make([]pipeline.RunState, 0, len(s.order))
	for _, id := range s.order {
		states = append(states, s.runs[id].Snapshot())
	}
	return states
}

// Wait blocks until every started run has returned.
func (s *Server) Wait() {
	s.wg.Wait()
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if len(s.allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.allowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1/runs", func(r chi.Router) {
		r.Post("/", s.handleCreateRun)
		r.Get("/", s.handleListRuns)
		r.Get("/{runID}", s.handleGetRun)
	})

	return r
}

type createRunRequest struct {
	InputPath string `json:"input_path"`
	Key       string `json:"key"`
}

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req createRunRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "request body too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.InputPath == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "input_path is required"})
		return
	}

	id, err := s.StartRun(req.InputPath, req.Key)
	if errors.Is(err, ErrOutsideInputDir) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		zap.L().Warn("server: start run", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid input_path"})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "accepted",
		"id":     id,
	})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	state, ok := s.Run(chi.URLParam(r, "runID"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "run not found"})
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleListRuns(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.Runs())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("server: encode response", zap.Error(err))
	}
}
