package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/hanaro-shop/internal/metrics"
	custommiddleware "github.com/mmeshcher/hanaro-shop/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware магазина.
// metricsHandler может быть nil, тогда /metrics не публикуется.
func (h *Handler) SetupRouter(httpMetrics *metrics.HTTPMetrics, metricsHandler http.Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger, httpMetrics))

	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/signup", h.Signup)
		r.Post("/auth/login", h.Login)

		r.Get("/products", h.ListProducts)
		r.Get("/products/{id}", h.GetProduct)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Get("/cart", h.GetCart)
			r.Post("/cart/items", h.AddCartItem)
			r.Patch("/cart/items/{id}", h.UpdateCartItem)
			r.Delete("/cart/items/{id}", h.RemoveCartItem)

			r.Post("/orders", h.CreateOrder)
			r.Get("/orders/me", h.GetMyOrders)
			r.Get("/orders/{id}", h.GetOrder)
			r.Post("/orders/{id}/cancel", h.CancelOrder)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)
			r.Use(custommiddleware.RequireAdmin)

			r.Post("/products", h.CreateProduct)
			r.Put("/products/{id}", h.UpdateProduct)
			r.Patch("/products/{id}/stock", h.AdjustStock)
			r.Delete("/products/{id}", h.DeleteProduct)

			r.Get("/orders", h.SearchOrders)
			r.Get("/orders/{id}", h.GetOrderForAdmin)

			r.Get("/stats/daily", h.GetDailySales)
			r.Get("/stats/products", h.GetProductSales)
			r.Post("/stats/aggregate", h.AggregateSales)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", http.StatusText(http.StatusNotFound))
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", http.StatusText(http.StatusMethodNotAllowed))
	})

	return r
}
