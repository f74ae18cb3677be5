package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ChoisMath/kyobobook/intake"
	"github.com/ChoisMath/kyobobook/models"
	"github.com/ChoisMath/kyobobook/parser"
	"github.com/ChoisMath/kyobobook/scraper"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve extraction and applications over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := openEnv(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeEnv(e, &err)

		addr := cfg.ListenAddr
		if serveAddr != "" {
			addr = serveAddr
		}

		metrics := promhttp.HandlerFor(e.scraper.Metrics.Registry, promhttp.HandlerOpts{})
		api := &server{extractor: e.scraper, intake: e.intake, stats: e.scraper.Stats()}

		var servers []*http.Server
		if cfg.MetricsAddr != "" {
			servers = append(servers, &http.Server{Addr: cfg.MetricsAddr, Handler: metrics})
			metrics = nil
			slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
		}
		servers = append(servers, &http.Server{
			Addr:              addr,
			Handler:           newRouter(api, metrics),
			ReadHeaderTimeout: 10 * time.Second,
		})

		errc := make(chan error, len(servers))
		for _, srv := range servers {
			go func(srv *http.Server) {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errc <- err
				}
			}(srv)
		}
		slog.Info("starting server", slog.String("addr", addr))

		select {
		case <-ctx.Done():
			slog.Info("shutdown signal received")
		case err = <-errc:
			slog.Error("server failed", slog.Any("error", err))
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for _, srv := range servers {
			if serr := srv.Shutdown(shutdownCtx); serr != nil {
				slog.Error("server shutdown failed", slog.String("addr", srv.Addr), slog.Any("error", serr))
			}
		}
		return err
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	rootCmd.AddCommand(serveCmd)
}

type bookExtractor interface {
	Extract(ctx context.Context, url string) (*models.BookRecord, error)
}

type server struct {
	extractor bookExtractor
	intake    *intake.Service
	stats     *scraper.Stats
}

type extractResponse struct {
	URL      string             `json:"url"`
	Record   *models.BookRecord `json:"record"`
	Missing  []string           `json:"missing"`
	Complete bool               `json:"complete"`
}

type applyRequest struct {
	Applicant string `json:"applicant"`
	URL       string `json:"url"`
	Quantity  int    `json:"quantity"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	Publisher string `json:"publisher"`
	Price     string `json:"price"`
}

type quantityRequest struct {
	Applicant string `json:"applicant"`
	Quantity  int    `json:"quantity"`
}

// newRouter mounts the API. metrics may be nil when it is served elsewhere.
func newRouter(s *server, metrics http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/extract", s.handleExtract)
	r.Get("/stats", s.handleStats)
	r.Route("/applications", func(r chi.Router) {
		r.Get("/", s.handleList)
		r.Post("/", s.handleApply)
		r.Patch("/{index}", s.handleQuantity)
	})
	if metrics != nil {
		r.Handle("/metrics", metrics)
	}
	return r
}

func (s *server) handleExtract(w http.ResponseWriter, r *http.Request) {
	target := parser.NormalizeURL(r.URL.Query().Get("url"))
	if target == "" {
		writeError(w, http.StatusBadRequest, "url is required", nil)
		return
	}

	rec, err := s.extractor.Extract(r.Context(), target)
	switch {
	case errors.Is(err, scraper.ErrMaintenance):
		writeError(w, http.StatusServiceUnavailable, "store is under maintenance", nil)
		return
	case errors.Is(err, scraper.ErrExtractionFailed):
		writeError(w, http.StatusBadGateway, err.Error(), scraper.DiagnoseURL(target))
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error(), nil)
		return
	}

	missing := rec.Missing()
	if missing == nil {
		missing = []string{}
	}
	writeJSON(w, http.StatusOK, extractResponse{
		URL:      target,
		Record:   rec,
		Missing:  missing,
		Complete: len(missing) == 0,
	})
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.stats.Snapshot())
}

func (s *server) handleList(w http.ResponseWriter, r *http.Request) {
	var (
		apps []intake.Application
		err  error
	)
	if applicant := r.URL.Query().Get("applicant"); applicant != "" {
		apps, err = s.intake.ApplicationsFor(r.Context(), applicant)
	} else {
		apps, err = s.intake.Applications(r.Context())
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	if apps == nil {
		apps = []intake.Application{}
	}
	writeJSON(w, http.StatusOK, apps)
}

func (s *server) handleApply(w http.ResponseWriter, r *http.Request) {
	var req applyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if parser.NormalizeURL(req.URL) == "" {
		writeError(w, http.StatusBadRequest, "url is required", nil)
		return
	}

	merged, err := extractWithFallback(r.Context(), s.extractor, req.URL, models.BookRecord{
		Title:            req.Title,
		Author:           req.Author,
		Publisher:        req.Publisher,
		Price:            req.Price,
		ExtractionMethod: "manual",
	})
	if errors.Is(err, scraper.ErrMaintenance) {
		writeError(w, http.StatusServiceUnavailable, "store is under maintenance", nil)
		return
	}

	row, err := s.intake.Apply(r.Context(), req.Applicant, req.URL, &merged, req.Quantity)
	if err != nil {
		writeIntakeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, row)
}

func (s *server) handleQuantity(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "index must be an integer", nil)
		return
	}
	var req quantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	row, err := s.intake.ChangeQuantity(r.Context(), req.Applicant, index, req.Quantity)
	if err != nil {
		writeIntakeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func writeIntakeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, intake.ErrMissingFields),
		errors.Is(err, intake.ErrInvalidPrice),
		errors.Is(err, intake.ErrInvalidQuantity):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, intake.ErrNotOwner):
		status = http.StatusForbidden
	case errors.Is(err, intake.ErrRowNotFound):
		status = http.StatusNotFound
	}
	writeError(w, status, err.Error(), nil)
}

func writeError(w http.ResponseWriter, status int, msg string, issues []string) {
	body := map[string]any{"error": msg}
	if len(issues) > 0 {
		body["issues"] = issues
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		slog.Error("encode response", slog.Any("error", err))
	}
}
