package http

import (
	"container/list"
	"context"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"orcamento/internal/core"
	applog "orcamento/internal/log"
	"orcamento/internal/stream"
	appweb "orcamento/web"
)

// Ledger is the application port the HTTP layer renders and mutates through.
type Ledger interface {
	ListEntries(ctx context.Context) ([]core.EntryWithCategory, error)
	ListEntriesInRange(ctx context.Context, from, to core.Date) ([]core.EntryWithCategory, error)
	ListCategories(ctx context.Context) ([]core.Category, error)
	Summarize(ctx context.Context, from, to core.Date) (core.PeriodSummary, error)
	CreateEntry(ctx context.Context, e core.Entry) (core.Entry, error)
	UpdateEntry(ctx context.Context, e core.Entry) error
	DeleteEntry(ctx context.Context, id int64) error
	CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
	UpdateCategory(ctx context.Context, c core.Category) error
	DeleteCategory(ctx context.Context, id int64) error
}

// LRU cache with TTL and size-based eviction
type lruCache[T any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	items   map[string]*list.Element
	lru     *list.List
}

type cacheItem[T any] struct {
	key       string
	data      T
	expiresAt time.Time
}

func newLRUCache[T any](maxSize int, ttl time.Duration) *lruCache[T] {
	return &lruCache[T]{
		maxSize: maxSize,
		ttl:     ttl,
		items:   make(map[string]*list.Element),
		lru:     list.New(),
	}
}

func (c *lruCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	elem, exists := c.items[key]
	if !exists {
		return zero, false
	}

	item := elem.Value.(*cacheItem[T])

	if time.Now().After(item.expiresAt) {
		c.removeElement(elem)
		return zero, false
	}

	c.lru.MoveToFront(elem)
	return item.data, true
}

func (c *lruCache[T]) Set(key string, data T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item := &cacheItem[T]{
		key:       key,
		data:      data,
		expiresAt: time.Now().Add(c.ttl),
	}

	if elem, exists := c.items[key]; exists {
		elem.Value = item
		c.lru.MoveToFront(elem)
		return
	}

	elem := c.lru.PushFront(item)
	c.items[key] = elem

	if c.lru.Len() > c.maxSize {
		if oldest := c.lru.Back(); oldest != nil {
			c.removeElement(oldest)
		}
	}
}

// Purge drops every cached entry. Any ledger change invalidates every
// cached period, so the caches are cleared wholesale on change signals.
func (c *lruCache[T]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.lru.Init()
}

func (c *lruCache[T]) removeElement(elem *list.Element) {
	item := elem.Value.(*cacheItem[T])
	delete(c.items, item.key)
	c.lru.Remove(elem)
}

// CleanExpired removes all expired entries
func (c *lruCache[T]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	var toRemove []*list.Element

	for elem := c.lru.Front(); elem != nil; elem = elem.Next() {
		item := elem.Value.(*cacheItem[T])
		if now.After(item.expiresAt) {
			toRemove = append(toRemove, elem)
		}
	}

	for _, elem := range toRemove {
		c.removeElement(elem)
	}

	return len(toRemove)
}

type Server struct {
	http.Server
	templates   *template.Template
	ledger      Ledger
	hub         *stream.Hub
	rateLimiter *rateLimiter
	metrics     *securityMetrics
	structured  *applog.StructuredLogger

	// Caches for period summaries and entry lists, purged on ledger changes
	summaryCache *lruCache[core.PeriodSummary]
	entriesCache *lruCache[[]core.EntryWithCategory]

	stopCacheCleanup chan struct{}
	shutdownCancel   context.CancelFunc
	shutdownOnce     sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, ledger Ledger, hub *stream.Hub, cacheTTL time.Duration) *Server {
	mux := http.NewServeMux()

	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())

	httpLogger := applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentHTTP)

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: applog.Middleware(httpLogger)(mux),
		},
		ledger:           ledger,
		hub:              hub,
		rateLimiter:      newRateLimiter(),
		metrics:          &securityMetrics{},
		structured:       applog.NewStructuredLogger(httpLogger),
		summaryCache:     newLRUCache[core.PeriodSummary](100, cacheTTL),
		entriesCache:     newLRUCache[[]core.EntryWithCategory](100, cacheTTL),
		stopCacheCleanup: make(chan struct{}),
		shutdownCancel:   cancel,
	}

	go s.startCacheCleanup()
	if hub != nil {
		go s.watchForChanges(ctx)
	}

	// Parse embedded templates at startup.
	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		slog.Warn("Failed parsing templates", "error", err)
	}
	s.templates = t

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600, immutable")
			static.ServeHTTP(w, r)
		}))
	} else {
		slog.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.HandleFunc("/", s.withSecurityHeaders(s.handleIndex))
	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)
	mux.HandleFunc("/entries", s.withSecurityHeaders(s.handleCreateEntry))
	mux.HandleFunc("/entries/update", s.withSecurityHeaders(s.handleUpdateEntry))
	mux.HandleFunc("/entries/delete", s.withSecurityHeaders(s.handleDeleteEntry))
	mux.HandleFunc("/totals", s.withSecurityHeaders(s.handleTotals))
	mux.HandleFunc("/categories", s.withSecurityHeaders(s.handleCategories))
	mux.HandleFunc("/categories/update", s.withSecurityHeaders(s.handleUpdateCategory))
	mux.HandleFunc("/categories/delete", s.withSecurityHeaders(s.handleDeleteCategory))
	mux.HandleFunc("/api/summary", s.withSecurityHeaders(s.handleSummaryAPI))
	mux.HandleFunc("/events", s.handleEvents)

	return s
}

// watchForChanges purges the read caches whenever the ledger changes, so
// pages rendered after a write never serve stale totals.
func (s *Server) watchForChanges(ctx context.Context) {
	sub := s.hub.Subscribe()
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-sub.C:
			if !ok {
				return
			}
			s.summaryCache.Purge()
			s.entriesCache.Purge()
		}
	}
}

// startCacheCleanup runs periodic cleanup for both caches
func (s *Server) startCacheCleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			summariesCleaned := s.summaryCache.CleanExpired()
			entriesCleaned := s.entriesCache.CleanExpired()
			if summariesCleaned > 0 || entriesCleaned > 0 {
				slog.Debug("Cache cleanup completed",
					"summary_entries_removed", summariesCleaned,
					"entry_lists_removed", entriesCleaned)
			}
		case <-s.stopCacheCleanup:
			return
		}
	}
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.stopCacheCleanup != nil {
			close(s.stopCacheCleanup)
		}
		if s.shutdownCancel != nil {
			s.shutdownCancel()
		}
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		if hits := atomic.LoadInt64(&s.metrics.rateLimitHits); hits > 0 {
			slog.Info("Rate limit hits during run", "count", hits)
		}

		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// withSecurityHeaders adds security headers, rate limiting, and request logging to responses
func (s *Server) withSecurityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := extractClientIP(r)
		requestID := generateRequestID()

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		s.structured.LogHTTPStart(ctx, r, clientIP)

		// Rate limit writes only; page loads stay unthrottled
		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP, s.metrics) {
			slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; connect-src 'self'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		s.structured.LogHTTPEnd(ctx, r, rw.statusCode, time.Since(start).Milliseconds(), clientIP)
	}
}

type contextKey string

const requestIDKey contextKey = "request_id"

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// getSummary returns the aggregated summary for [from, to], cached until the
// next ledger change or TTL expiry.
func (s *Server) getSummary(ctx context.Context, from, to core.Date) (core.PeriodSummary, error) {
	key := from.String() + "_" + to.String()

	if data, found := s.summaryCache.Get(key); found {
		slog.DebugContext(ctx, "Summary cache hit", "from", from.String(), "to", to.String())
		return data, nil
	}

	cctx, cancel := context.WithTimeout(ctx, 7*time.Second)
	defer cancel()
	data, err := s.ledger.Summarize(cctx, from, to)
	if err != nil {
		return core.PeriodSummary{}, err
	}

	s.summaryCache.Set(key, data)
	slog.DebugContext(ctx, "Summary cached",
		"from", from.String(), "to", to.String(),
		"income_cents", data.Totals.Income.Cents,
		"expense_cents", data.Totals.Expense.Cents,
		"categories", len(data.ByCategory))
	return data, nil
}

// getEntries returns the full entry list, newest first, cached until the
// next ledger change or TTL expiry.
func (s *Server) getEntries(ctx context.Context) ([]core.EntryWithCategory, error) {
	const key = "all"

	if items, found := s.entriesCache.Get(key); found {
		slog.DebugContext(ctx, "Entries cache hit", "count", len(items))
		result := make([]core.EntryWithCategory, len(items))
		copy(result, items)
		return result, nil
	}

	cctx, cancel := context.WithTimeout(ctx, 7*time.Second)
	defer cancel()
	items, err := s.ledger.ListEntries(cctx)
	if err != nil {
		return nil, err
	}

	s.entriesCache.Set(key, items)
	return items, nil
}
