package logging

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

type requestIDKey struct{}

// RequestIDFromContext returns the id stamped by HTTPLogger, if any.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// ContextWithRequestID stores id on ctx the way HTTPLogger does.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// HTTPLogger logs one entry per HTTP request in the "http" category.
type HTTPLogger struct {
	logger *Logger
}

// NewHTTPLogger creates a new HTTP logger.
func NewHTTPLogger(logger *Logger) *HTTPLogger {
	return &HTTPLogger{logger: logger}
}

// responseRecorder captures the response status and size.
type responseRecorder struct {
	http.ResponseWriter
	status      int
	size        int
	wroteHeader bool
}

func (r *responseRecorder) WriteHeader(status int) {
	if !r.wroteHeader {
		r.status = status
		r.wroteHeader = true
		r.ResponseWriter.WriteHeader(status)
	}
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	n, err := r.ResponseWriter.Write(b)
	r.size += n
	return n, err
}

func (r *responseRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := r.ResponseWriter.(http.Hijacker); ok {
		return hijacker.Hijack()
	}
	return nil, nil, fmt.Errorf("responseRecorder does not support hijacking")
}

func (r *responseRecorder) Flush() {
	if flusher, ok := r.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Middleware stamps every request with an X-Request-ID, puts it on the
// request context and logs method, path, status and duration. Form values are
// never logged; only their field names, with secrets masked.
func (h *HTTPLogger) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		// Routers hand the handler a copy of r, so the form is parsed here
		// for its field names to reach the log entry.
		if isFormPost(r) {
			_ = r.ParseForm()
		}
		r = r.WithContext(ContextWithRequestID(r.Context(), requestID))

		recorder := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		recorder.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(recorder, r)

		duration := time.Since(start).Milliseconds()
		fields := map[string]any{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      recorder.status,
			"size":        recorder.size,
			"remote_addr": stripHostPort(r.RemoteAddr),
			"user_agent":  r.UserAgent(),
		}
		if q := redactQuery(r); q != "" {
			fields["query"] = q
		}
		if len(r.PostForm) > 0 {
			fields["form_fields"] = formFieldNames(r)
		}

		headers := make(map[string]string)
		for name, values := range r.Header {
			if !isSensitiveHeader(name) {
				headers[name] = strings.Join(values, ", ")
			}
		}
		if len(headers) > 0 {
			fields["request_headers"] = headers
		}

		level := INFO
		switch {
		case recorder.status >= 500:
			level = ERROR
		case recorder.status >= 400:
			level = WARN
		}
		if !h.logger.Enabled(level) {
			return
		}
		h.logger.write(Entry{
			Level:     level.String(),
			Category:  "http",
			Message:   fmt.Sprintf("%s %s %d", r.Method, r.URL.Path, recorder.status),
			Fields:    fields,
			RequestID: requestID,
			Duration:  &duration,
		})
	})
}

func isFormPost(r *http.Request) bool {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
	default:
		return false
	}
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded")
}

func isSensitiveHeader(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "auth") ||
		strings.Contains(lower, "token") ||
		strings.Contains(lower, "cookie") ||
		strings.Contains(lower, "key") ||
		strings.Contains(lower, "secret")
}

// IsSensitiveField reports whether a form or query field must never be logged.
func IsSensitiveField(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "password") ||
		strings.Contains(lower, "token") ||
		strings.Contains(lower, "secret")
}

func redactQuery(r *http.Request) string {
	if r.URL.RawQuery == "" {
		return ""
	}
	values := r.URL.Query()
	for name := range values {
		if IsSensitiveField(name) {
			values.Set(name, "[redacted]")
		}
	}
	return values.Encode()
}

func formFieldNames(r *http.Request) []string {
	names := make([]string, 0, len(r.PostForm))
	for name := range r.PostForm {
		if IsSensitiveField(name) {
			name += "=[redacted]"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func stripHostPort(value string) string {
	host, _, err := net.SplitHostPort(value)
	if err != nil {
		return value
	}
	return host
}
