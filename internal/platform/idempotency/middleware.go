package idempotency

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dishpatch/api/internal/platform/auth"
	"github.com/dishpatch/api/internal/platform/httpx"
)

const (
	defaultHeader = "Idempotency-Key"
	// ReplayHeader marks a response that was served from a stored record.
	ReplayHeader = "X-Idempotent-Replay"
)

type middlewareOptions struct {
	header  string
	ttl     time.Duration
	methods map[string]struct{}
	clock   func() time.Time
	logger  *zap.Logger
}

// Option customises the middleware.
type Option func(*middlewareOptions)

// WithHeader overrides the request header the key is read from.
func WithHeader(name string) Option {
	return func(o *middlewareOptions) {
		if name = strings.TrimSpace(name); name != "" {
			o.header = name
		}
	}
}

// WithTTL sets how long completed records stay replayable.
func WithTTL(ttl time.Duration) Option {
	return func(o *middlewareOptions) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithMethods restricts the HTTP methods the middleware guards.
func WithMethods(methods ...string) Option {
	return func(o *middlewareOptions) {
		if len(methods) == 0 {
			return
		}
		o.methods = make(map[string]struct{}, len(methods))
		for _, method := range methods {
			if method = strings.ToUpper(strings.TrimSpace(method)); method != "" {
				o.methods[method] = struct{}{}
			}
		}
	}
}

// WithLogger reports background persistence failures.
func WithLogger(logger *zap.Logger) Option {
	return func(o *middlewareOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock overrides the time source for tests.
func WithClock(clock func() time.Time) Option {
	return func(o *middlewareOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

func mutatingMethods() map[string]struct{} {
	return map[string]struct{}{
		http.MethodPost:   {},
		http.MethodPut:    {},
		http.MethodPatch:  {},
		http.MethodDelete: {},
	}
}

// Middleware enforces idempotency for mutating requests: the first request
// under a key runs and has its response stored, retries replay the stored
// response, and a key reused for a different request is rejected.
func Middleware(store Store, opts ...Option) func(http.Handler) http.Handler {
	if store == nil {
		return func(next http.Handler) http.Handler { return next }
	}

	options := middlewareOptions{
		header:  defaultHeader,
		ttl:     DefaultTTL,
		methods: mutatingMethods(),
		clock:   time.Now,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	if len(options.methods) == 0 {
		options.methods = mutatingMethods()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if _, guarded := options.methods[r.Method]; !guarded {
				next.ServeHTTP(w, r)
				return
			}

			key := strings.TrimSpace(r.Header.Get(options.header))
			if key == "" {
				httpx.WriteError(ctx, w, httpx.NewError("idempotency_key_required", options.header+" header is required", http.StatusBadRequest))
				return
			}

			body, err := bufferBody(r)
			if err != nil {
				httpx.WriteError(ctx, w, httpx.NewError("idempotency_body_unreadable", "unable to read request body", http.StatusInternalServerError))
				return
			}

			scope := requestScope(ctx)
			fingerprint := fingerprintRequest(r, body, scope)
			scoped := key + "|" + scope
			now := options.clock().UTC()

			reservation, err := store.Reserve(ctx, scoped, fingerprint, now, options.ttl)
			if err != nil {
				writeReserveError(ctx, w, options.logger, err)
				return
			}

			switch reservation.Outcome {
			case OutcomeReplay:
				replayResponse(w, reservation.Stored)
				return
			case OutcomeInFlight:
				httpx.WriteError(ctx, w, httpx.NewError("idempotency_in_progress", "another request holds this idempotency key", http.StatusConflict))
				return
			}

			buffered := newCapture()
			next.ServeHTTP(buffered, r)

			saveErr := store.SaveResponse(ctx, scoped, fingerprint, Response{
				Status:  buffered.statusCode(),
				Headers: buffered.header.Clone(),
				Body:    buffered.body.Bytes(),
			}, options.clock().UTC(), options.ttl)
			if saveErr != nil {
				options.logger.Warn("idempotency record not persisted",
					zap.String("key", key),
					zap.Error(saveErr))
				if releaseErr := store.Release(ctx, scoped, fingerprint); releaseErr != nil {
					options.logger.Warn("idempotency key not released",
						zap.String("key", key),
						zap.Error(releaseErr))
				}
				httpx.WriteError(ctx, w, httpx.NewError("idempotency_store_error", "unable to persist idempotency state", http.StatusInternalServerError))
				return
			}

			buffered.flush(w)
		})
	}
}

// bufferBody drains the request body and replaces it with a replayable
// reader so the wrapped handler still sees it.
func bufferBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	if err := r.Body.Close(); err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(data))
	return data, nil
}

// requestScope ties keys to the caller so one user's key cannot replay
// another's response.
func requestScope(ctx context.Context) string {
	if identity, ok := auth.IdentityFromContext(ctx); ok && identity != nil && identity.UID != "" {
		return identity.UID
	}
	return "anonymous"
}

func fingerprintRequest(r *http.Request, body []byte, scope string) string {
	parts := []string{
		strings.ToUpper(r.Method),
		r.URL.Path,
		r.URL.RawQuery,
		r.Host,
		r.Header.Get("Content-Type"),
		scope,
	}
	if len(body) > 0 {
		parts = append(parts, sha256Hex(body))
	}
	return sha256Hex([]byte(strings.Join(parts, "|")))
}

func writeReserveError(ctx context.Context, w http.ResponseWriter, logger *zap.Logger, err error) {
	if errors.Is(err, ErrFingerprintMismatch) {
		httpx.WriteError(ctx, w, httpx.NewError("idempotency_key_conflict", "idempotency key already used for a different request", http.StatusConflict))
		return
	}
	logger.Warn("idempotency reserve failed", zap.Error(err))
	httpx.WriteError(ctx, w, httpx.NewError("idempotency_store_error", "unable to process idempotency key", http.StatusInternalServerError))
}

func replayResponse(w http.ResponseWriter, record Record) {
	header := w.Header()
	for name := range header {
		header.Del(name)
	}
	for name, values := range replayHeaderSet(record.ResponseHeaders) {
		for _, value := range values {
			header.Add(name, value)
		}
	}
	header.Set(ReplayHeader, "true")

	status := record.ResponseStatus
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if len(record.ResponseBody) > 0 {
		_, _ = w.Write(record.ResponseBody)
	}
}

// capture buffers the wrapped handler's response so it can be stored before
// anything reaches the client.
type capture struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newCapture() *capture {
	return &capture{header: make(http.Header)}
}

func (c *capture) Header() http.Header { return c.header }

func (c *capture) WriteHeader(status int) {
	if status > 0 && c.status == 0 {
		c.status = status
	}
}

func (c *capture) Write(data []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	return c.body.Write(data)
}

func (c *capture) statusCode() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}

func (c *capture) flush(w http.ResponseWriter) {
	dst := w.Header()
	for name := range dst {
		dst.Del(name)
	}
	for name, values := range c.header {
		for _, value := range values {
			dst.Add(name, value)
		}
	}
	w.WriteHeader(c.statusCode())
	if c.body.Len() > 0 {
		_, _ = w.Write(c.body.Bytes())
	}
}
