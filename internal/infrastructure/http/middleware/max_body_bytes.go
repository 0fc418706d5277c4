package middleware

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/filingpulse/filingpulse/internal/infrastructure/http/response"
)

// MaxBodyBytes caps request body size at limit bytes, responding 413 when a
// body exceeds it. The declared Content-Length gives an early rejection;
// http.MaxBytesReader catches chunked or understated bodies during the read.
// Bodies within the limit are buffered and replaced so downstream decoders
// read them as usual.
func MaxBodyBytes(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > limit {
				response.Error(w, http.StatusRequestEntityTooLarge,
					"PAYLOAD_TOO_LARGE", "request body exceeds size limit")
				return
			}

			buf, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					slog.WarnContext(r.Context(), "request body size limit exceeded",
						"method", r.Method,
						"path", r.URL.Path,
						"limit", limit)
					response.Error(w, http.StatusRequestEntityTooLarge,
						"PAYLOAD_TOO_LARGE", "request body exceeds size limit")
					return
				}
				response.Error(w, http.StatusBadRequest,
					"INVALID_REQUEST", "failed to read request body")
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(buf))
			next.ServeHTTP(w, r)
		})
	}
}
