package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/tasklane/todo-api/internal/auth"
	"github.com/tasklane/todo-api/internal/config"
	"github.com/tasklane/todo-api/internal/ratelimit"
	"github.com/tasklane/todo-api/internal/respond"
	"github.com/tasklane/todo-api/internal/validation"
)

// Deps are the collaborators the API is built from
type Deps struct {
	Todos     TodoStore
	Auth      *auth.Service
	Tokens    *auth.TokenManager
	Validator *validation.Validator
	Counters  ratelimit.Store
}

type Api struct {
	Config    config.Config
	Router    *chi.Mux
	todos     TodoStore
	auth      *auth.Service
	tokens    *auth.TokenManager
	validator *validation.Validator
	limiter   *ratelimit.Limiter
	throttle  *ratelimit.Throttle
}

func NewApi(cfg config.Config, deps Deps) (*Api, error) {
	if cfg.APIPort == 0 {
		return nil, errors.New("Must have at least a port to start API")
	}
	if deps.Todos == nil || deps.Auth == nil || deps.Tokens == nil || deps.Validator == nil || deps.Counters == nil {
		return nil, errors.New("api: all dependencies are required")
	}

	api := &Api{
		Config:    cfg,
		Router:    chi.NewRouter(),
		todos:     deps.Todos,
		auth:      deps.Auth,
		tokens:    deps.Tokens,
		validator: deps.Validator,
		limiter:   ratelimit.NewLimiter(deps.Counters, cfg.RateLimit.Limit, cfg.RateLimit.Window),
		throttle:  ratelimit.NewThrottle(deps.Counters, cfg.RateLimit.MinInterval),
	}

	api.setupRoutes()
	return api, nil
}

func (api *Api) setupRoutes() {
	r := api.Router

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: api.Config.CORS.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		MaxAge:         300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	r.Use(middleware.NoCache)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respond.Message(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respond.Message(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/heartbeat", api.Heartbeat)

	r.Group(func(r chi.Router) {
		r.Use(api.throttle.Handler)
		r.Use(api.limiter.Handler)
		r.Use(RequireJSON)
		r.Use(TrimInput)
		r.Use(JSONResponse)

		// Public routes
		r.Post("/register", api.RegisterHandler)
		r.Post("/login", api.LoginHandler)

		// Only refresh tokens may mint new access tokens
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireToken(api.tokens, false))
			r.Post("/refresh", api.RefreshHandler)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireToken(api.tokens, true))
			r.Get("/todos", api.ListTodosHandler)
			r.Post("/todos", api.CreateTodoHandler)
			r.Get("/todos/{id}", api.GetTodoHandler)
			r.Put("/todos/{id}", api.UpdateTodoHandler)
			r.Delete("/todos/{id}", api.DeleteTodoHandler)
		})
	})
}

// Serve listens on the configured port until ctx is cancelled, then shuts
// down gracefully.
func (api *Api) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf("0.0.0.0:%d", api.Config.APIPort),
		Handler:           api.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting API server on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Printf("Shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (api *Api) Heartbeat(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
