package http

import (
	"net/http"

	"github.com/atinyakov/FocusKeeper/internal/middleware"
	"go.uber.org/zap"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewRouter constructs and returns an HTTP handler that serves
// the FocusKeeper API. It applies JSON content-type enforcement,
// request logging, and bearer-token authentication, and mounts the
// registration, login, and document endpoints under /api.
//
// Routes:
//
//	POST  /api/register        → authHandler.Register
//	POST  /api/login           → authHandler.Login
//	POST  /api/logout          → authHandler.Logout   (token-protected)
//	GET   /api/document        → docHandler.Get       (token-protected)
//	PATCH /api/document        → docHandler.Merge     (token-protected)
//	PUT   /api/document        → docHandler.Replace   (token-protected)
//	GET   /api/document/watch  → docHandler.Watch     (token-protected, SSE)
func NewRouter(
	authHandler *AuthHandler,
	docHandler *DocumentHandler,
	resolver middleware.TokenResolver,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Only allow requests with Content-Type: application/json
	r.Use(chiMiddleware.AllowContentType("application/json"))

	// Log each request and its metadata
	r.Use(middleware.WithRequestLogging(logger))

	// Mount API routes
	r.Route("/api", func(r chi.Router) {
		// Public endpoints
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)

		// Protected group: requires a valid bearer token
		r.Group(func(r chi.Router) {
			r.Use(middleware.TokenAuth(resolver))
			r.Post("/logout", authHandler.Logout)
			r.Get("/document", docHandler.Get)
			r.Patch("/document", docHandler.Merge)
			r.Put("/document", docHandler.Replace)
			r.Get("/document/watch", docHandler.Watch)
		})
	})

	return r
}
