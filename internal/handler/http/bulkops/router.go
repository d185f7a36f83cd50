package bulkops_http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"bulkops/internal/app/bulkops"
	"bulkops/internal/domain"
)

func NewRouter(s bulkops.BulkOperationService, l *zap.Logger) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(l))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"https://*", "http://*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type",
			domain.HeaderTenantID, domain.HeaderApplicationID, domain.HeaderAuthor, domain.HeaderAcceptLanguage},
		MaxAge: 300,
	}))
	RegisterRoutes(r, s, l)
	return r
}

func RegisterRoutes(r chi.Router, s bulkops.BulkOperationService, l *zap.Logger) {
	handler := NewBulkOperationHandler(s, l.With(zap.String("component", "BulkOperationHTTPHandler")))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Bulk operations service is healthy!"))
	})

	r.Route("/bulk-operations", func(r chi.Router) {
		r.Post("/", handler.CreateBulkOperationHandler)
	})
}

func requestLogger(l *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				l.Info("request",
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
