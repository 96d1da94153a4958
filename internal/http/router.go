package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Handlers collects everything the router mounts.
type Handlers struct {
	Auth     *AuthHandler
	Session  *SessionHandler
	Products *ProductHandler
	Cart     *CartHandler
	Address  *AddressHandler
	Orders   *OrdersHandler
	Shipping *ShippingHandler
	Checkout *CheckoutHandler
}

func NewRouter(h Handlers, requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.Compress(5))
	r.Use(SessionMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/session/gate", h.Session.Gate)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", h.Auth.Login)
			r.Post("/register", h.Auth.Register)
			r.Post("/logout", h.Auth.Logout)
			r.Post("/forgot-password", h.Auth.ForgotPassword)
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.Products.List)
			r.Get("/{id}", h.Products.Detail)
		})

		r.Get("/shipping/destinations", h.Shipping.SearchDestinations)

		// Everything below needs a session.
		r.Group(func(r chi.Router) {
			r.Use(RequireSession)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", h.Cart.Get)
				r.Post("/items", h.Cart.AddItem)
				r.Put("/items/{item_id}", h.Cart.UpdateQuantity)
				r.Delete("/items/{item_id}", h.Cart.RemoveItem)
				r.Delete("/", h.Cart.Clear)
			})

			r.Route("/addresses", func(r chi.Router) {
				r.Get("/", h.Address.List)
				r.Post("/", h.Address.Create)
				r.Put("/{id}", h.Address.Update)
				r.Delete("/{id}", h.Address.Delete)
			})

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", h.Orders.List)
				r.Get("/{id}", h.Orders.Detail)
				r.Post("/{id}/cancel", h.Orders.Cancel)
			})

			r.Route("/checkout", func(r chi.Router) {
				r.Get("/", h.Checkout.State)
				r.Delete("/", h.Checkout.Cancel)
				r.Post("/begin", h.Checkout.Begin)
				r.Post("/address", h.Checkout.SelectAddress)
				r.Post("/shipping", h.Checkout.SelectShipping)
				r.Get("/methods", h.Checkout.Methods)
				r.Post("/payment", h.Checkout.SelectMethod)
				r.Post("/notes", h.Checkout.SetNotes)
				r.Post("/step", h.Checkout.GoToStep)
				r.Post("/retry-quote", h.Checkout.RetryQuote)
				r.Post("/submit", h.Checkout.Submit)
			})
		})
	})

	return r
}
