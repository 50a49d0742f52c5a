package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/urfave/cli/v3"

	"tangled.sh/cuesheet/export"
	"tangled.sh/cuesheet/hub"
	"tangled.sh/cuesheet/log"
	"tangled.sh/cuesheet/midi"
	"tangled.sh/cuesheet/server/config"
	"tangled.sh/cuesheet/show"
	"tangled.sh/cuesheet/tags"
	"tangled.sh/cuesheet/timecode"
)

const shutdownTimeout = 10 * time.Second

func Command() *cli.Command {
	return &cli.Command{
		Name:   "server",
		Usage:  "run the show notes server",
		Action: Run,
		Description: `
Environment variables:
	CUESHEET_SERVER_LISTEN_ADDR      (default: 0.0.0.0:3000)
	CUESHEET_SERVER_STATIC_DIR       (default: public)
	CUESHEET_SERVER_DEV              (default: false)
	CUESHEET_SERVER_LOG_LEVEL        (default: info)
	CUESHEET_TIMECODE_SOURCE         (default: auto; none, a device path or a ws:// bridge URL)
	CUESHEET_TIMECODE_DEVICE_GLOB    (default: /dev/snd/midiC*D*)
	CUESHEET_TIMECODE_FRAME_RATE     (default: 30)
	CUESHEET_TIMECODE_START          (default: 00:00:00:00)
	CUESHEET_TIMECODE_RESET_ON_GAP   (default: true)
	CUESHEET_TAGS_PROVIDER           (default: file; sqlite or redis)
	CUESHEET_TAGS_PATH               (default: tags.json)
	CUESHEET_TAGS_DB_PATH            (default: cuesheet.db)
	CUESHEET_TAGS_REDIS_ADDR         (default: localhost:6379)
	CUESHEET_TAGS_REDIS_KEY          (default: cuesheet:tags)
`,
	}
}

func Run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.Server.LogLevel
	if cfg.Server.Dev {
		level = "debug"
	}
	if !log.SetLevel(level) {
		return fmt.Errorf("unknown log level %q", level)
	}
	logger := log.SubLogger(log.FromContext(ctx), "server")

	if cfg.Server.Dev {
		logger.Info("running in dev mode")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	tagStore, err := tags.Open(ctx, cfg.Tags.StoreConfig())
	if err != nil {
		return fmt.Errorf("failed to open tag store: %w", err)
	}
	if s, ok := tagStore.(tags.Stopper); ok {
		defer s.Stop()
	}

	s, err := New(ctx, cfg, logger, tagStore)
	if err != nil {
		return fmt.Errorf("failed to setup server: %w", err)
	}
	return s.Serve(ctx, nil)
}

type Server struct {
	cfg   *config.Config
	l     *slog.Logger
	store *show.Store
	hub   *hub.Hub
}

// New builds the show store and hub. The show starts at the configured
// start position and frame rate until a time source reports.
func New(ctx context.Context, cfg *config.Config, l *slog.Logger, tagStore tags.Store) (*Server, error) {
	start, err := cfg.Timecode.StartTimecode()
	if err != nil {
		return nil, err
	}

	store := show.New(ctx, show.Options{
		Logger:   log.SubLogger(l, "show"),
		TagStore: tagStore,
		Start:    start,
	})

	return &Server{
		cfg:   cfg,
		l:     l,
		store: store,
		hub:   hub.New(store, log.SubLogger(l, "hub")),
	}, nil
}

// Serve runs the hub, the time source and the HTTP listener until ctx ends,
// then shuts them down in that reverse order. A nil opener reads devices
// and bridges directly.
func (s *Server) Serve(ctx context.Context, opener midi.Opener) error {
	hubCtx, stopHub := context.WithCancel(context.WithoutCancel(ctx))
	hubDone := make(chan error, 1)
	go func() {
		hubDone <- s.hub.Run(hubCtx)
	}()
	defer func() {
		stopHub()
		<-hubDone
	}()

	emit := func(tc timecode.Timecode) {
		s.hub.SetTimecode(tc)
	}
	src, err := startTimeSource(ctx, s.cfg.Timecode, s.l, opener, emit)
	if err != nil {
		return fmt.Errorf("failed to start time source: %w", err)
	}
	defer src.Stop()
	if err := s.hub.SetStatus(src.status); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:    s.cfg.Server.ListenAddr,
		Handler: s.Router(),
	}

	serveErr := make(chan error, 1)
	go func() {
		s.l.Info("starting server", "address", srv.Addr)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.l.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.l.Error("failed to shut down cleanly", "err", err)
	}
	return nil
}

func (s *Server) Router() http.Handler {
	mux := chi.NewRouter()
	mux.Use(s.RequestLogger)

	mux.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.Get("/ws", s.Events)

	mux.Route("/api", func(r chi.Router) {
		r.Get("/state", s.State)
		r.Get("/export/{format}", s.Export)
	})

	mux.Handle("/*", http.FileServer(http.Dir(s.cfg.Server.StaticDir)))

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) State(w http.ResponseWriter, r *http.Request) {
	st, err := s.hub.Snapshot(r.Context())
	if err != nil {
		s.l.Error("failed to take snapshot", "err", err)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) Export(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(chi.URLParam(r, "format"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	f, err := s.hub.Export(r.Context(), format)
	if err != nil {
		s.l.Error("failed to export", "format", format, "err", err)
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", f.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", f.Filename))
	w.Write([]byte(f.Data))
}
