package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/leadsignal/internal/model"
	"github.com/sells-group/leadsignal/internal/pipeline"
	"github.com/sells-group/leadsignal/internal/store"
)

const (
	maxBodyBytes    = 1 << 20
	shutdownTimeout = 10 * time.Second
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP signal ingest server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           buildRouter(env, cfg.Server.CORSOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			zap.L().Info("starting server", zap.Int("port", port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return eris.Wrap(srv.Shutdown(shutdownCtx), "server shutdown")
		})
		return g.Wait()
	},
}

// buildRouter registers the HTTP API around env.
func buildRouter(env *leadsEnv, origins []string) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	h := &handlers{env: env}
	r.Get("/health", h.health)
	r.Post("/signals", h.ingest)
	r.Post("/analyze", h.analyze)
	r.Get("/officers", h.officers)
	r.Route("/leads", func(r chi.Router) {
		r.Get("/", h.listLeads)
		r.Get("/{id}", h.getLead)
	})
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

type handlers struct {
	env *leadsEnv
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	if err := h.env.Store.Ping(r.Context()); err != nil {
		zap.L().Warn("health: store ping failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ingest accepts one signal object or an array of them.
func (h *handlers) ingest(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(http.MaxBytesReader(w, r.Body, maxBodyBytes)); err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	body := bytes.TrimSpace(buf.Bytes())

	if len(body) > 0 && body[0] == '[' {
		var signals []model.Signal
		if err := json.Unmarshal(body, &signals); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		writeJSON(w, http.StatusOK, h.env.Pipeline.ProcessMany(r.Context(), signals))
		return
	}

	var sig model.Signal
	if err := json.Unmarshal(body, &sig); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	out := h.env.Pipeline.Process(r.Context(), sig)
	writeJSON(w, outcomeStatus(out), out)
}

func outcomeStatus(o pipeline.Outcome) int {
	switch {
	case o.Status == pipeline.StatusCreated:
		return http.StatusCreated
	case o.Status == pipeline.StatusFailed:
		return http.StatusInternalServerError
	case o.Reason == pipeline.ReasonInvalidInput:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusOK
	}
}

func (h *handlers) analyze(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
		Size string `json:"size"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	size := model.SizeClass(req.Size)
	if size == "" {
		size = model.SizeMedium
	}
	writeJSON(w, http.StatusOK, buildReport(h.env.Engine, req.Text, size))
}

func (h *handlers) officers(w http.ResponseWriter, r *http.Request) {
	officers, err := h.env.Store.ListOfficers(r.Context())
	if err != nil {
		zap.L().Error("list officers failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list officers failed")
		return
	}
	if officers == nil {
		officers = []model.Officer{}
	}
	writeJSON(w, http.StatusOK, officers)
}

func (h *handlers) listLeads(w http.ResponseWriter, r *http.Request) {
	filter, err := parseLeadFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	leads, err := h.env.Store.ListLeads(r.Context(), filter)
	if err != nil {
		zap.L().Error("list leads failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list leads failed")
		return
	}
	if leads == nil {
		leads = []model.Lead{}
	}
	writeJSON(w, http.StatusOK, leads)
}

func (h *handlers) getLead(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid lead id")
		return
	}
	lead, err := h.env.Store.GetLead(r.Context(), id)
	if err != nil {
		zap.L().Error("get lead failed", zap.Int64("lead_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "get lead failed")
		return
	}
	if lead == nil {
		writeError(w, http.StatusNotFound, "lead not found")
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

func parseLeadFilter(r *http.Request) (store.LeadFilter, error) {
	q := r.URL.Query()
	f := store.LeadFilter{
		Status:         model.LeadStatus(q.Get("status")),
		TerritoryState: q.Get("territory"),
	}
	var err error
	if v := q.Get("min_score"); v != "" {
		if f.MinScore, err = strconv.ParseFloat(v, 64); err != nil {
			return f, eris.New("min_score must be a number")
		}
	}
	if v := q.Get("limit"); v != "" {
		if f.Limit, err = strconv.Atoi(v); err != nil || f.Limit < 0 {
			return f, eris.New("limit must be a non-negative integer")
		}
	}
	if v := q.Get("offset"); v != "" {
		if f.Offset, err = strconv.Atoi(v); err != nil || f.Offset < 0 {
			return f, eris.New("offset must be a non-negative integer")
		}
	}
	return f, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("encode response failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
