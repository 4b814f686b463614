package stub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/k-kazuya0926/deploy-agent-invoker/internal/deploy"
	"go.uber.org/zap"
)

// Function is anything that can answer a deploy-agent request.
type Function interface {
	Handle(ctx context.Context, req deploy.Request) (Response, error)
}

// invokeError is the payload Lambda returns alongside X-Amz-Function-Error.
type invokeError struct {
	ErrorMessage string `json:"errorMessage"`
	ErrorType    string `json:"errorType"`
}

// NewRouter serves the subset of the Lambda Invoke API the invoker uses,
// backed by fn under functionName.
func NewRouter(functionName string, fn Function, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))

	r.Post("/2015-03-31/functions/{name}/invocations", func(w http.ResponseWriter, req *http.Request) {
		name := chi.URLParam(req, "name")
		if name != functionName {
			w.Header().Set("X-Amzn-ErrorType", "ResourceNotFoundException")
			writeJSON(w, http.StatusNotFound, map[string]string{
				"Type":    "User",
				"message": fmt.Sprintf("Function not found: %s", name),
			})
			return
		}

		w.Header().Set("X-Amz-Executed-Version", "$LATEST")
		w.Header().Set("X-Amzn-RequestId", uuid.NewString())

		data, err := io.ReadAll(req.Body)
		if err != nil {
			functionError(w, "Runtime.ReadError", err)
			return
		}

		var event deploy.Request
		if err := json.Unmarshal(data, &event); err != nil {
			functionError(w, "Runtime.UnmarshalError", err)
			return
		}

		resp, err := fn.Handle(req.Context(), event)
		if err != nil {
			functionError(w, "Error", err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	})

	return r
}

func functionError(w http.ResponseWriter, errorType string, err error) {
	w.Header().Set("X-Amz-Function-Error", "Unhandled")
	writeJSON(w, http.StatusOK, invokeError{ErrorMessage: err.Error(), ErrorType: errorType})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
