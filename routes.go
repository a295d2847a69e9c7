package main

import (
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"quick-notes/handlers"
	appmw "quick-notes/middleware"
	"quick-notes/web"
)

type routerOptions struct {
	Origins []string
	Assets  fs.FS
	Logger  *logrus.Logger
}

func newRouter(h *handlers.Handler, sessions appmw.SessionResolver, opts routerOptions) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.RequestLogger(&chimw.DefaultLogFormatter{Logger: opts.Logger, NoColor: true}))
	r.Use(chimw.Recoverer)

	if len(opts.Origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   opts.Origins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(appmw.NoStore)

		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
		r.Get("/me", h.Me)

		r.Group(func(r chi.Router) {
			r.Use(appmw.RequireAuth(sessions))
			r.Get("/notes", h.GetNotes)
			r.Post("/notes", h.CreateNote)
			r.Put("/notes/{id}", h.UpdateNote)
			r.Delete("/notes/{id}", h.DeleteNote)
		})

		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"not found"}`))
		})
	})

	if opts.Assets != nil {
		r.Get("/*", web.Handler(opts.Assets).ServeHTTP)
	}

	return r
}
