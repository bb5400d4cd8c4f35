package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/CAFxX/httpcompression"
	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/goccy/go-json"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/getsentry/callprof"
	"github.com/getsentry/callprof/internal/errorutil"
	"github.com/getsentry/callprof/internal/export"
	"github.com/getsentry/callprof/internal/httputil"
	"github.com/getsentry/callprof/internal/timeutil"
)

type (
	environment struct {
		config ServiceConfig

		mu         sync.Mutex
		session    *callprof.Session
		recordedAt time.Time
	}

	SessionResponse struct {
		ID              string        `json:"id"`
		RecordedAt      timeutil.Time `json:"recorded_at"`
		Frames          int           `json:"frames"`
		Functions       int           `json:"functions"`
		FrequencyHz     int64         `json:"frequency_hz"`
		MemoryProfiling bool          `json:"memory_profiling"`
		Messages        []string      `json:"messages"`
	}

	FunctionStatistics struct {
		callprof.Unit
		AverageSelfTimeMicros   int64                 `json:"avg_self_time_us"`
		AverageTimeMicros       int64                 `json:"avg_time_us"`
		AverageMemoryDeltaBytes int64                 `json:"avg_memory_delta_bytes"`
		Percentiles             *callprof.Percentiles `json:"self_time_percentiles,omitempty"`
	}
)

func newServeCommand(cfg *ServiceConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Profile the workload and serve the results over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e := newEnvironment(*cfg)
			if err := e.record(); err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			return e.listenAndServe(ctx, cfg.ListenAddr)
		},
	}
	cmd.Flags().StringVar(&cfg.ListenAddr, "addr", cfg.ListenAddr, "address the debug server listens on")
	cmd.Flags().IntVar(&cfg.Frames, "frames", cfg.Frames, "number of frames to record")
	cmd.Flags().BoolVar(&cfg.MemoryProfiling, "memory", cfg.MemoryProfiling, "sample the working set at every call")
	return cmd
}

func newEnvironment(cfg ServiceConfig) *environment {
	return &environment{
		config:  cfg,
		session: callprof.New(callprof.Options{}),
	}
}

// record runs the workload on the calling goroutine. Concurrent requests wait
// for the recording to finish.
func (e *environment) record() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	record(e.session, e.config)
	e.recordedAt = time.Now()
	if len(e.session.Frames()) == 0 && e.config.Frames > 0 {
		return fmt.Errorf("%w: no frame was recorded", errorutil.ErrNoResults)
	}
	return nil
}

func (e *environment) newRouter() (http.Handler, error) {
	compress, err := httpcompression.DefaultAdapter()
	if err != nil {
		return nil, err
	}

	routes := []struct {
		method  string
		path    string
		handler http.HandlerFunc
	}{
		{http.MethodGet, "/health", e.getHealth},
		{http.MethodGet, "/session", e.getSession},
		{http.MethodPost, "/session", e.postSession},
		{http.MethodGet, "/statistics", e.getStatistics},
		{http.MethodGet, "/frames", e.getFrames},
		{http.MethodGet, "/frames/:frame/statistics", e.getFrameStatistics},
		{http.MethodGet, "/frames/:frame/tree", e.getFrameTree},
	}

	router := httprouter.New()

	for _, route := range routes {
		handler := compress(httputil.NameTransaction(route.path, route.handler))
		router.Handler(route.method, route.path, handler)
	}

	return sentryhttp.New(sentryhttp.Options{}).Handle(router), nil
}

// listenAndServe serves until ctx is done, then shuts the server down
// gracefully.
func (e *environment) listenAndServe(ctx context.Context, addr string) error {
	router, err := e.newRouter()
	if err != nil {
		sentry.CaptureException(err)
		return fmt.Errorf("setting up the router: %w", err)
	}
	server := http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	waitForShutdown := make(chan struct{})
	go func() {
		<-ctx.Done()

		timeout := time.Duration(e.config.ShutdownTimeoutMS) * time.Millisecond
		cctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := server.Shutdown(cctx); err != nil {
			sentry.CaptureException(err)
			log.Err(err).Msg("error shutting down server")
		}

		close(waitForShutdown)
	}()

	log.Info().Str("addr", addr).Msg("debug server listening")
	err = server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		sentry.CaptureException(err)
		return fmt.Errorf("server failed: %w", err)
	}

	<-waitForShutdown
	return nil
}

func (e *environment) getHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (e *environment) getSession(w http.ResponseWriter, r *http.Request) {
	e.mu.Lock()
	response := e.sessionResponse()
	e.mu.Unlock()
	writeJSON(w, r, http.StatusOK, response)
}

// postSession records a new session on the request's goroutine.
func (e *environment) postSession(w http.ResponseWriter, r *http.Request) {
	hub := sentry.GetHubFromContext(r.Context())
	if raw := r.URL.Query().Get("frames"); raw != "" {
		frames, err := strconv.Atoi(raw)
		if err != nil || frames < 0 {
			http.Error(w, fmt.Sprintf("invalid frame count %q", raw), http.StatusBadRequest)
			return
		}
		e.mu.Lock()
		e.config.Frames = frames
		e.mu.Unlock()
	}
	if err := e.record(); err != nil {
		if hub != nil {
			hub.CaptureException(err)
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	e.mu.Lock()
	response := e.sessionResponse()
	e.mu.Unlock()
	writeJSON(w, r, http.StatusCreated, response)
}

func (e *environment) getStatistics(w http.ResponseWriter, r *http.Request) {
	limit, ok := httputil.GetLimit(w, r)
	if !ok {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.writeStatistics(w, r, callprof.Global, e.session.Statistics(), limit)
}

func (e *environment) getFrameStatistics(w http.ResponseWriter, r *http.Request) {
	i, logger, ok := httputil.GetFrameIndex(w, r)
	if !ok {
		return
	}
	limit, ok := httputil.GetLimit(w, r)
	if !ok {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if i >= len(e.session.Frames()) {
		logger.Debug().Msg("frame out of range")
		http.Error(w, errorutil.ErrFrameOutOfRange.Error(), http.StatusNotFound)
		return
	}
	e.writeStatistics(w, r, callprof.FrameScope(i), e.session.FrameStatistics(i), limit)
}

func (e *environment) getFrames(w http.ResponseWriter, r *http.Request) {
	e.mu.Lock()
	defer e.mu.Unlock()
	w.Header().Set("Content-Type", "text/csv")
	if err := callprof.WriteFrames(w, e.session); err != nil {
		log.Err(err).Msg("can't write frames")
	}
}

func (e *environment) getFrameTree(w http.ResponseWriter, r *http.Request) {
	i, logger, ok := httputil.GetFrameIndex(w, r)
	if !ok {
		return
	}
	e.mu.Lock()
	tree, exists := e.session.CallTree(i)
	e.mu.Unlock()
	if !exists {
		logger.Debug().Msg("frame out of range")
		http.Error(w, errorutil.ErrFrameOutOfRange.Error(), http.StatusNotFound)
		return
	}
	if tree == nil {
		tree = []*callprof.Node{}
	}
	writeJSON(w, r, http.StatusOK, tree)
}

// writeStatistics must be called with e.mu held.
func (e *environment) writeStatistics(w http.ResponseWriter, r *http.Request, scope callprof.Scope, units []callprof.Unit, limit int) {
	if limit > 0 && len(units) > limit {
		units = units[:limit]
	}
	switch r.URL.Query().Get("format") {
	case "", "csv":
		w.Header().Set("Content-Type", "text/csv")
		if err := callprof.WriteStatistics(w, units); err != nil {
			log.Err(err).Msg("can't write statistics")
		}
	case "json":
		response := make([]FunctionStatistics, 0, len(units))
		for _, u := range units {
			fs := FunctionStatistics{
				Unit:                    u,
				AverageSelfTimeMicros:   u.AverageSelfTimeMicros(),
				AverageTimeMicros:       u.AverageTimeMicros(),
				AverageMemoryDeltaBytes: u.AverageMemoryDeltaBytes(),
			}
			if p, ok := e.session.Percentiles(scope, u.Address); ok {
				fs.Percentiles = &p
			}
			response = append(response, fs)
		}
		writeJSON(w, r, http.StatusOK, response)
	case "table":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		export.RenderTable(w, fmt.Sprintf("session %s", e.session.ID()), units, 0)
	default:
		http.Error(w, fmt.Sprintf("unknown format %q", r.URL.Query().Get("format")), http.StatusBadRequest)
	}
}

// sessionResponse must be called with e.mu held.
func (e *environment) sessionResponse() SessionResponse {
	messages := e.session.Messages()
	if messages == nil {
		messages = []string{}
	}
	return SessionResponse{
		ID:              e.session.ID().String(),
		RecordedAt:      timeutil.Time(e.recordedAt),
		Frames:          len(e.session.Frames()),
		Functions:       len(e.session.Statistics()),
		FrequencyHz:     e.session.Frequency(),
		MemoryProfiling: e.session.MemoryProfiling(),
		Messages:        messages,
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	s := sentry.StartSpan(r.Context(), "json.marshal")
	b, err := json.Marshal(v)
	s.Finish()
	if err != nil {
		if hub := sentry.GetHubFromContext(r.Context()); hub != nil {
			hub.CaptureException(err)
		}
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(b)
}
