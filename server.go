package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const maxUploadSize = 10 << 20 // 10 MiB

var allowedMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// rateLimiter is a simple per-IP token bucket rate limiter.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*bucket
	rate     int           // tokens per interval
	interval time.Duration // refill interval

	stop     chan struct{}
	stopOnce sync.Once
}

type bucket struct {
	tokens   int
	lastSeen time.Time
}

func newRateLimiter(rate int, interval time.Duration) *rateLimiter {
	rl := &rateLimiter{
		visitors: make(map[string]*bucket),
		rate:     rate,
		interval: interval,
		stop:     make(chan struct{}),
	}
	go rl.sweep(time.Minute)
	return rl
}

// sweep drops visitors idle for five minutes until close is called.
func (rl *rateLimiter) sweep(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.mu.Lock()
			for ip, b := range rl.visitors {
				if time.Since(b.lastSeen) > 5*time.Minute {
					delete(rl.visitors, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

func (rl *rateLimiter) close() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.visitors[ip]
	if !ok {
		rl.visitors[ip] = &bucket{tokens: rl.rate - 1, lastSeen: time.Now()}
		return true
	}

	if refill := int(time.Since(b.lastSeen) / rl.interval); refill > 0 {
		b.tokens = min(b.tokens+refill*rl.rate, rl.rate)
		b.lastSeen = time.Now()
	}

	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ImageImporter transcribes a crossword photo.
type ImageImporter interface {
	ImportImage(ctx context.Context, imageData []byte, mimeType string) (*RawPuzzle, error)
}

// ServerDeps are the collaborators of the HTTP server. Importer and Cache
// are optional.
type ServerDeps struct {
	Store    *Store
	Source   BlobSource
	Importer ImageImporter
	Exporter *Exporter
	Cache    *BlobCache
	Logger   *zap.Logger
}

// Server is the main HTTP server.
type Server struct {
	mux      *http.ServeMux
	store    *Store
	source   BlobSource
	importer ImageImporter
	exporter *Exporter
	cache    *BlobCache
	events   *Broadcaster
	logger   *zap.Logger
	fetchRL  *rateLimiter
	importRL *rateLimiter

	pickInt func(n int) int
	now     func() time.Time

	ctx    context.Context // parent of background export jobs
	cancel context.CancelFunc
	jobs   sync.WaitGroup
}

// NewServer creates a configured HTTP server.
func NewServer(d ServerDeps) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		mux:      http.NewServeMux(),
		store:    d.Store,
		source:   d.Source,
		importer: d.Importer,
		exporter: d.Exporter,
		cache:    d.Cache,
		events:   NewBroadcaster(),
		logger:   d.Logger,
		fetchRL:  newRateLimiter(30, time.Minute), // 30 feed lookups/min per IP
		importRL: newRateLimiter(5, time.Minute),  // 5 uploads/min per IP
		pickInt:  rand.IntN,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	// Feed API
	s.mux.HandleFunc("GET /api/crosswords/{date}", s.handleGetCrossword)
	s.mux.HandleFunc("GET /api/crosswords/{date}/raw", s.handleGetRaw)
	s.mux.HandleFunc("GET /api/random/{weekday}", s.handleRandom)

	// Stored puzzles
	s.mux.HandleFunc("GET /api/puzzles", s.handleListPuzzles)
	s.mux.HandleFunc("GET /api/puzzles/{id}", s.handleGetPuzzle)
	s.mux.HandleFunc("POST /api/imports", s.handleImport)

	// CSV exports
	s.mux.HandleFunc("POST /api/exports", s.handleCreateExport)
	s.mux.HandleFunc("GET /api/exports/{id}", s.handleGetExport)
	s.mux.HandleFunc("GET /api/exports/{id}/events", s.handleExportEvents)
	s.mux.HandleFunc("GET /api/exports/{id}/csv", s.handleExportCSV)

	s.mux.HandleFunc("GET /healthz", s.handleHealth)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
	s.mux.ServeHTTP(w, r)
}

// Close cancels running export jobs, waits for them to stop and stops the
// rate limiters.
func (s *Server) Close() {
	s.cancel()
	s.jobs.Wait()
	s.fetchRL.close()
	s.importRL.close()
}

// --- Feed handlers ---

// GET /api/crosswords/{date}: fetch, build and memoise one puzzle.
func (s *Server) handleGetCrossword(w http.ResponseWriter, r *http.Request) {
	if !s.fetchRL.allow(clientIP(r)) {
		jsonError(w, "too many requests, try again later", http.StatusTooManyRequests)
		return
	}

	date := r.PathValue("date")
	if _, err := ParseFeedDate(date); err != nil {
		s.writeError(w, err)
		return
	}

	if p := s.store.GetPuzzle(date); p != nil {
		writeJSON(w, http.StatusOK, newPuzzleResponse(p))
		return
	}

	blob, err := s.source.Fetch(r.Context(), date)
	if err != nil {
		s.writeError(w, err)
		return
	}
	p, err := BuildFromResponse(blob)
	if err != nil {
		s.writeError(w, err)
		return
	}
	p.ID = date
	s.store.SavePuzzle(p)

	s.logger.Info("puzzle built", zap.String("date", date), zap.Int("entries", len(p.Entries)))
	writeJSON(w, http.StatusOK, newPuzzleResponse(p))
}

// GET /api/crosswords/{date}/raw: upstream blob passthrough.
func (s *Server) handleGetRaw(w http.ResponseWriter, r *http.Request) {
	if !s.fetchRL.allow(clientIP(r)) {
		jsonError(w, "too many requests, try again later", http.StatusTooManyRequests)
		return
	}

	blob, err := s.source.Fetch(r.Context(), r.PathValue("date"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, blob)
}

// GET /api/random/{weekday}: a random archive puzzle published on weekday.
func (s *Server) handleRandom(w http.ResponseWriter, r *http.Request) {
	if !s.fetchRL.allow(clientIP(r)) {
		jsonError(w, "too many requests, try again later", http.StatusTooManyRequests)
		return
	}

	wd, err := ParseWeekday(r.PathValue("weekday"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	// Today's puzzle is already published, so the window ends after it.
	day, ok := RandomDate(s.pickInt, wd, archiveStart, truncateDay(s.now()).AddDate(0, 0, 1))
	if !ok {
		jsonError(w, "no archive date for that weekday", http.StatusNotFound)
		return
	}
	date := FormatFeedDate(day)
	s.logger.Info("fetching random puzzle", zap.Stringer("weekday", wd), zap.String("date", date))

	blob, err := s.source.Fetch(r.Context(), date)
	if err != nil {
		s.writeError(w, err)
		return
	}
	raw, err := ParseResponse(blob)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := CheckWeekday(raw.Metadata, wd); err != nil {
		s.writeError(w, err)
		return
	}
	p, err := Build(raw)
	if err != nil {
		s.writeError(w, err)
		return
	}
	p.ID = date
	s.store.SavePuzzle(p)

	writeJSON(w, http.StatusOK, newPuzzleResponse(p))
}

// --- Stored puzzle handlers ---

type puzzleSummary struct {
	ID        string         `json:"id"`
	Source    Source         `json:"source"`
	Metadata  PuzzleMetadata `json:"metadata"`
	Entries   int            `json:"entries"`
	CreatedAt time.Time      `json:"created_at"`
}

// GET /api/puzzles: list built puzzles.
func (s *Server) handleListPuzzles(w http.ResponseWriter, _ *http.Request) {
	puzzles := s.store.ListPuzzles()
	list := make([]puzzleSummary, len(puzzles))
	for i, p := range puzzles {
		list[i] = puzzleSummary{
			ID:        p.ID,
			Source:    p.Source,
			Metadata:  p.Metadata,
			Entries:   len(p.Entries),
			CreatedAt: p.CreatedAt,
		}
	}
	writeJSON(w, http.StatusOK, list)
}

// GET /api/puzzles/{id}: one built puzzle.
func (s *Server) handleGetPuzzle(w http.ResponseWriter, r *http.Request) {
	p := s.store.GetPuzzle(r.PathValue("id"))
	if p == nil {
		jsonError(w, "puzzle not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, newPuzzleResponse(p))
}

// POST /api/imports: transcribe a crossword photo and build it.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if !s.importRL.allow(clientIP(r)) {
		jsonError(w, "too many requests, try again later", http.StatusTooManyRequests)
		return
	}

	if s.importer == nil {
		jsonError(w, "image import is not configured", http.StatusServiceUnavailable)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		jsonError(w, "image too large (max 10 MiB)", http.StatusRequestEntityTooLarge)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		jsonError(w, "field 'image' is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	mimeType := header.Header.Get("Content-Type")
	if !allowedMIME[mimeType] {
		jsonError(w, "accepted formats: JPEG or PNG", http.StatusBadRequest)
		return
	}

	imageData, err := io.ReadAll(file)
	if err != nil {
		jsonError(w, "could not read image", http.StatusInternalServerError)
		return
	}

	raw, err := s.importer.ImportImage(r.Context(), imageData, mimeType)
	if err != nil {
		s.writeImportError(w, err)
		return
	}
	p, err := Build(raw)
	if err != nil {
		s.writeImportError(w, err)
		return
	}
	p.ID = ""
	p.Source = SourceImport
	s.store.SavePuzzle(p)

	s.logger.Info("puzzle imported", zap.String("id", p.ID), zap.Int("entries", len(p.Entries)))
	writeJSON(w, http.StatusCreated, newPuzzleResponse(p))
}

func (s *Server) writeImportError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrMalformedResponse) || errors.Is(err, ErrGridIntegrity) {
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	s.logger.Error("image import failed", zap.Error(err))
	jsonError(w, "could not analyse the grid", http.StatusInternalServerError)
}

// --- Export handlers ---

// POST /api/exports: start a CSV export over a date range.
func (s *Server) handleCreateExport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		From string `json:"from"`
		To   string `json:"to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.From == "" || req.To == "" {
		jsonError(w, "fields 'from' and 'to' are required", http.StatusBadRequest)
		return
	}

	job, err := s.store.CreateExport(req.From, req.To)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.jobs.Add(1)
	go func() {
		defer s.jobs.Done()
		err := s.exporter.Run(s.ctx, job, func(evt ExportEvent) {
			if err := s.events.Publish(job.ID, evt); err != nil {
				s.logger.Warn("publish export event", zap.Error(err))
			}
		})
		if err != nil {
			s.logger.Warn("export interrupted", zap.String("export", job.ID), zap.Error(err))
		}
	}()

	writeJSON(w, http.StatusAccepted, job.Snapshot())
}

// GET /api/exports/{id}: export progress.
func (s *Server) handleGetExport(w http.ResponseWriter, r *http.Request) {
	job, err := s.store.GetExport(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

// GET /api/exports/{id}/events: SSE progress stream.
func (s *Server) handleExportEvents(w http.ResponseWriter, r *http.Request) {
	job, err := s.store.GetExport(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.events.ServeSSE(w, r, job.ID, func() (any, bool) {
		snap := job.Snapshot()
		return ExportEvent{Type: "export_state", Progress: &snap}, job.Finished()
	}, func(msg string) bool {
		return strings.Contains(msg, `"type":"export_done"`)
	})
}

// GET /api/exports/{id}/csv: download a finished export.
func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	job, err := s.store.GetExport(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !job.Finished() {
		jsonError(w, "export still running", http.StatusConflict)
		return
	}

	snap := job.Snapshot()
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="crosswords-%s-%s.csv"`, snap.From, snap.To))
	if err := job.WriteCSV(w); err != nil {
		s.logger.Error("write export csv", zap.String("export", job.ID), zap.Error(err))
	}
}

// GET /healthz: liveness, including Redis when the cache is enabled.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.cache != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.cache.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "redis": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- Helpers ---

// statusFor maps pipeline and client errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrInvalidDate), errors.Is(err, ErrInvalidWeekday):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound), IsStatus(err, http.StatusNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDateMismatch):
		return http.StatusConflict
	case errors.Is(err, ErrFetch), errors.Is(err, ErrMalformedResponse), errors.Is(err, ErrGridIntegrity):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Int("status", code), zap.Error(err))
	}
	if code == http.StatusInternalServerError {
		jsonError(w, "internal error", code)
		return
	}
	jsonError(w, err.Error(), code)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
