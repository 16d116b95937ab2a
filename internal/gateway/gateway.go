package gateway

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"go.uber.org/zap"

	httpapi "github.com/radieske/match-escrow/internal/escrow/http"
)

// New monta o gateway público na frente do escrow-service:
// /api/escrow/* e /ws são repassados, com CORS e identidade do chamador.
func New(target *url.URL, allowedOrigins []string, log *zap.Logger) http.Handler {
	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Warn("upstream failed", zap.String("path", r.URL.Path), zap.Error(err))
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}

	mux := http.NewServeMux()
	mux.Handle("/api/escrow/", http.StripPrefix("/api/escrow", withCaller(proxy)))
	mux.Handle("/ws", proxy)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return withCORS(mux, allowedOrigins)
}

// withCaller descarta a identidade enviada pelo cliente e usa a do token Bearer.
// O escrow-service confia apenas no cabeçalho escrito aqui.
func withCaller(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Header.Del(httpapi.CallerHeader)
		if id := bearer(r.Header.Get("Authorization")); id != "" {
			r.Header.Set(httpapi.CallerHeader, id)
		}
		r.Header.Del("Authorization")
		h.ServeHTTP(w, r)
	})
}

func bearer(v string) string {
	const prefix = "Bearer "
	if len(v) <= len(prefix) || !strings.EqualFold(v[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(v[len(prefix):])
}

func withCORS(h http.Handler, origins []string) http.Handler {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case allowed["*"]:
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && allowed[origin]:
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.ServeHTTP(w, r)
	})
}

// AllowOrigin é a política de origem do upgrader websocket, com a mesma lista do CORS.
func AllowOrigin(origins []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		for _, o := range origins {
			if o == "*" || o == origin {
				return true
			}
		}
		return origin == ""
	}
}
