package httpapi

import (
	"net/http"

	"public-order-engine/internal/config"
	"public-order-engine/internal/http/handlers"
	"public-order-engine/internal/middleware"
	"public-order-engine/internal/ws"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// NewRouter serves the local API used by the ordering UI.
func NewRouter(cfg config.Config, h *handlers.Handler, wsServer *ws.Server) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	if h.Telemetry != nil {
		r.Use(h.Telemetry.Middleware)
	}

	if cfg.Env == "development" || len(cfg.CorsAllowedOrigins) > 0 {
		options := cors.Options{
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{
				"Accept",
				"Content-Type",
				"X-Requested-With",
				"X-Request-Id",
				"Cache-Control",
			},
			ExposedHeaders: []string{"X-Request-Id"},
			MaxAge:         300,
		}

		if cfg.Env == "development" {
			options.AllowOriginFunc = func(_ *http.Request, origin string) bool {
				return true
			}
		} else {
			options.AllowedOrigins = cfg.CorsAllowedOrigins
		}

		r.Use(cors.Handler(options))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(setResponseHeader("Cache-Control", "no-store"))

		r.Get("/state", h.State)
		r.Get("/telemetry", h.TelemetrySummary)

		r.Get("/menu", h.Menu)
		r.Post("/menu/products/{productId}/quote", h.Quote)

		r.Post("/cart/lines", h.AddLine)
		r.Patch("/cart/lines/{lineId}", h.UpdateLine)
		r.Post("/cart/lines/{lineId}/toggle", h.ToggleOption)
		r.Delete("/cart/lines/{lineId}", h.RemoveLine)
		r.Delete("/cart/unavailable", h.RemoveUnavailable)

		r.Put("/checkout", h.UpdateCheckout)
		r.Post("/checkout/submit", h.Submit)
		r.Post("/checkout/cancel", h.Cancel)
		r.Post("/checkout/dismiss", h.Dismiss)

		r.Post("/connectivity/online", h.ConnectivityOnline)
	})

	if wsServer != nil {
		r.Get("/ws/state", wsServer.StateWS)
	}

	return r
}

func setResponseHeader(name string, value string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set(name, value)
			next.ServeHTTP(w, r)
		})
	}
}
