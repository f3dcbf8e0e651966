package web

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"rtrgen/internal/compose"
	"rtrgen/internal/config"
	"rtrgen/internal/export"
	appLog "rtrgen/internal/log"
	"rtrgen/internal/model"
	"rtrgen/internal/schedule"
)

// Server provides the message-preview UI and its HTTP API.
//
// The shuffle counter that feeds seed composition is scoped per browser
// session (cookie), never process-global: two users previewing at the same
// time must not advance each other's wording. This is a correctness
// property of the engine, not an optimization.
type Server struct {
	cfg *config.Config
	mux *http.ServeMux

	weekday time.Weekday
	loc     *time.Location

	// Parsed schedule records, reloaded on the configured cron schedule.
	scheduleMu sync.RWMutex
	records    []model.RunRecord

	// Per-session shuffle counters, keyed by session cookie value.
	sessionMu sync.Mutex
	counters  map[string]int
}

// embeddedStatic contains the single-page preview UI.
//
//go:embed all:static
var embeddedStatic embed.FS

const sessionCookie = "rtr_session"

// NewServer constructs a Server and performs the initial schedule load.
// A failed initial load is logged, not fatal: the reload cron may succeed
// later, and /api/runs reports the empty schedule as ErrNoUpcomingRuns.
func NewServer(cfg *config.Config) *Server {
	wd, err := schedule.ParseWeekday(cfg.RunWeekday)
	if err != nil {
		appLog.Error("invalid run_weekday in config; falling back to Thursday", err, "value", cfg.RunWeekday)
		wd = time.Thursday
	}

	s := &Server{
		cfg:      cfg,
		mux:      http.NewServeMux(),
		weekday:  wd,
		loc:      resolveLocationOrLocal(cfg.Timezone),
		counters: make(map[string]int),
	}
	s.reloadSchedule()
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty username or password is treated as disabled.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="rtrgen", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// StartServer runs the preview server on cfg.Listen and a cron-driven
// schedule reload until ctx is canceled.
func StartServer(ctx context.Context, cfg *config.Config) error {
	s := NewServer(cfg)

	c := cron.New()
	if _, err := c.AddFunc(cfg.RefreshCron, s.reloadSchedule); err != nil {
		appLog.Error("invalid refresh cron expression; periodic reload disabled", err, "refresh", cfg.RefreshCron)
	} else {
		c.Start()
		defer c.Stop()
	}

	srv := &http.Server{
		Addr:    cfg.Listen,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// reloadSchedule re-reads the schedule CSV. Failures keep the previous
// in-memory records, matching the cache-fallback behavior of the fetch
// layer this replaces.
func (s *Server) reloadSchedule() {
	records, err := schedule.Load(s.cfg.SchedulePath)
	if err != nil {
		appLog.Error("schedule reload failed; keeping previous records", err, "path", s.cfg.SchedulePath)
		return
	}

	s.scheduleMu.Lock()
	s.records = records
	s.scheduleMu.Unlock()

	appLog.Info("schedule reloaded", "path", s.cfg.SchedulePath, "records", len(records))
}

func (s *Server) upcoming() ([]model.RunRecord, error) {
	s.scheduleMu.RLock()
	records := s.records
	s.scheduleMu.RUnlock()

	return schedule.Upcoming(records, time.Now().In(s.loc), s.weekday)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/runs", s.handleRuns)
	s.mux.HandleFunc("/api/message", s.handleMessage)
	s.mux.HandleFunc("/api/shuffle", s.handleShuffle)
	s.mux.HandleFunc("/calendar.ics", s.handleCalendar)

	s.mux.Handle("/", s.staticFileServer())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// runDTO is a JSON-friendly view of one upcoming run.
type runDTO struct {
	Date         string     `json:"date"`
	Label        string     `json:"label"`
	MeetingPoint string     `json:"meeting_point"`
	SurfaceNotes string     `json:"surface_notes"`
	SpecialEvent string     `json:"special_event"`
	Routes       []routeDTO `json:"routes"`
}

type routeDTO struct {
	Label string `json:"label"`
	Name  string `json:"name"`
	URL   string `json:"url"`
}

// handleRuns lists upcoming runs (on/after the next run night).
//
// GET /api/runs
func (s *Server) handleRuns(w http.ResponseWriter, _ *http.Request) {
	upcoming, err := s.upcoming()
	if err != nil {
		if errors.Is(err, model.ErrNoUpcomingRuns) {
			writeError(w, http.StatusNotFound, "no upcoming runs in schedule")
			return
		}
		appLog.Error("api runs failed", err)
		writeError(w, http.StatusInternalServerError, "failed to read schedule")
		return
	}

	dtos := make([]runDTO, 0, len(upcoming))
	for _, rec := range upcoming {
		d := runDTO{
			Date:         rec.Date.Format("2006-01-02"),
			Label:        rec.DateLabel(),
			MeetingPoint: rec.MeetingPoint,
			SurfaceNotes: rec.SurfaceNotes,
			SpecialEvent: rec.SpecialEvent,
			Routes:       []routeDTO{},
		}
		for _, rt := range rec.IncludedRoutes() {
			d.Routes = append(d.Routes, routeDTO{Label: rt.Label, Name: rt.Name, URL: rt.URL})
		}
		dtos = append(dtos, d)
	}

	writeJSON(w, http.StatusOK, map[string]any{"runs": dtos})
}

// messageResponse is the JSON response shape for /api/message.
type messageResponse struct {
	Message  string `json:"message"`
	FileName string `json:"file_name"`
	Counter  int    `json:"counter"`
}

// handleMessage renders the announcement for one run.
//
// GET /api/message?date=2025-06-19&platform=WhatsApp&tone=upbeat
//
// The render uses the calling session's shuffle counter; shuffling via
// /api/shuffle changes wording for this session only.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	platform, err := model.ParsePlatform(q.Get("platform"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown platform")
		return
	}
	tone, err := model.ParseTone(q.Get("tone"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown tone")
		return
	}

	upcoming, err := s.upcoming()
	if err != nil {
		if errors.Is(err, model.ErrNoUpcomingRuns) {
			writeError(w, http.StatusNotFound, "no upcoming runs in schedule")
			return
		}
		appLog.Error("api message: schedule read failed", err)
		writeError(w, http.StatusInternalServerError, "failed to read schedule")
		return
	}

	// Default to the next run when no date is given.
	rec := upcoming[0]
	if dateParam := q.Get("date"); dateParam != "" {
		found := false
		for _, cand := range upcoming {
			if cand.Date.Format("2006-01-02") == dateParam {
				rec = cand
				found = true
				break
			}
		}
		if !found {
			writeError(w, http.StatusNotFound, "no run on that date")
			return
		}
	}

	counter := s.sessionCounter(w, r)
	seed := compose.ComposeSeed(rec, platform, tone, counter)

	text, err := compose.Render(rec, platform, tone, seed, s.composeOptions())
	if err != nil {
		appLog.Error("api message: render failed", err, "platform", string(platform), "date", rec.Date.Format("2006-01-02"))
		writeError(w, http.StatusInternalServerError, "failed to render message")
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{
		Message:  text,
		FileName: export.FileName(rec, platform),
		Counter:  counter,
	})
}

// handleShuffle mutates this session's shuffle counter.
//
// POST /api/shuffle           -> increment
// POST /api/shuffle?reset=1   -> reset to zero
func (s *Server) handleShuffle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	id := s.ensureSession(w, r)

	s.sessionMu.Lock()
	if r.URL.Query().Get("reset") != "" {
		s.counters[id] = 0
	} else {
		s.counters[id]++
	}
	counter := s.counters[id]
	s.sessionMu.Unlock()

	writeJSON(w, http.StatusOK, map[string]int{"counter": counter})
}

// handleCalendar serves the upcoming runs as an iCalendar feed.
func (s *Server) handleCalendar(w http.ResponseWriter, _ *http.Request) {
	upcoming, err := s.upcoming()
	if err != nil {
		if errors.Is(err, model.ErrNoUpcomingRuns) {
			writeError(w, http.StatusNotFound, "no upcoming runs in schedule")
			return
		}
		appLog.Error("calendar export failed", err)
		writeError(w, http.StatusInternalServerError, "failed to build calendar")
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(export.BuildICS(s.cfg.ClubName, upcoming)))
}

func (s *Server) composeOptions() compose.Options {
	return compose.Options{
		DefaultMeetingPoint: s.cfg.DefaultMeetingPoint,
		DepartureTime:       s.cfg.DepartureTime,
		BookingURL:          s.cfg.BookingURL,
		CancelURL:           s.cfg.CancelURL,
		Hashtags:            s.cfg.Hashtags,
	}
}

// sessionCounter returns the shuffle counter for the calling session,
// creating the session (counter 0) on first contact.
func (s *Server) sessionCounter(w http.ResponseWriter, r *http.Request) int {
	id := s.ensureSession(w, r)

	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()
	return s.counters[id]
}

// ensureSession reads the session cookie, minting a new session id when the
// cookie is absent.
func (s *Server) ensureSession(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		return c.Value
	}

	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	id := hex.EncodeToString(buf)

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// staticFileServer serves the embedded preview UI for all non-API paths.
func (s *Server) staticFileServer() http.Handler {
	sub, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		appLog.Error("failed to initialize embedded static filesystem", err)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "static UI not available", http.StatusServiceUnavailable)
		})
	}

	fileServer := http.FileServer(http.FS(sub))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		// Never serve HTML for unmatched API paths; a 404 is correct there.
		if path == "/api" || strings.HasPrefix(path, "/api/") {
			http.NotFound(w, r)
			return
		}

		fileServer.ServeHTTP(w, r)
	})
}

func resolveLocationOrLocal(name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", name)
		return time.Local
	}
	return loc
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
