/*
Package handler wires the relay's HTTP surface: the websocket endpoint, the blob
upload endpoint, static assets and the health probe.
*/
package handler

import (
	"net/http"
	"net/url"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"relaychat/internal/pkg/auth/jwt"
	"relaychat/internal/pkg/limiter"
	"relaychat/internal/pkg/logx"
)

const (
	ConnectRate  = 1
	ConnectBurst = 10
	UploadRate   = 0.5
	UploadBurst  = 5

	// UploadsPath is where locally stored blobs are served.
	UploadsPath = "/uploads"
)

// Router builds the chi routing table.
func Router(deps *AppDeps) http.Handler {
	connectLimiter := limiter.NewIPRateLimiter(rate.Limit(ConnectRate), ConnectBurst)
	uploadLimiter := limiter.NewIPRateLimiter(rate.Limit(UploadRate), UploadBurst)

	r := chi.NewRouter()

	corsAllowedOrigins := []string{}
	if deps.Config.IsDevelopment() {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", HandleHealth(deps.Manager))

	r.Get("/ws", HandleWebSocket(deps.Manager, newUpgrader(deps), connectLimiter))

	r.Group(func(up chi.Router) {
		up.Use(uploadLimiter.Middleware)
		up.Use(jwt.IdentityExtractorMiddleware(deps.Tokens))
		up.Post("/upload", HandleUpload(deps))
	})

	if deps.UploadDir != "" {
		// Uploaded blobs are untrusted: never sniffed, never rendered with script access.
		r.With(
			middleware.SetHeader("X-Content-Type-Options", "nosniff"),
			middleware.SetHeader("Content-Security-Policy", "sandbox"),
		).Handle(UploadsPath+"/*", http.StripPrefix(UploadsPath, noDirListing(http.FileServer(http.Dir(deps.UploadDir)))))
	}

	if dir := deps.Config.StaticDir; dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			r.Handle("/*", http.FileServer(http.Dir(dir)))
		} else {
			logx.Warn("Static directory not found, client assets will not be served.", "dir", dir)
		}
	}

	return r
}

func newUpgrader(deps *AppDeps) websocket.Upgrader {
	allowedOrigins := make(map[string]struct{}, len(deps.Config.AllowedOrigins))
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	return websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.IsDevelopment() {
				return true
			}

			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}
			if len(allowedOrigins) == 0 {
				if u, err := url.Parse(origin); err == nil && u.Host == r.Host {
					return true
				}
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}
}

// noDirListing hides directory indexes of the upload store.
func noDirListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || r.URL.Path[len(r.URL.Path)-1] == '/' {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
