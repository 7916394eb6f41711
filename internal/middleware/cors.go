package middleware

import (
	"net/http"

	"github.com/go-chi/cors"

	"github.com/vinhpham24hdev/api-chrome-extension-sub000/internal/config"
)

// NewCORS разрешает запросы расширения браузера (origin chrome-extension://...)
func NewCORS(cfg config.CORSConfig) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   cfg.AllowedMethods,
		AllowedHeaders:   cfg.AllowedHeaders,
		ExposedHeaders:   cfg.ExposedHeaders,
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAge,
	})
}
