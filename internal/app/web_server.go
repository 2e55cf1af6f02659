package app

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"
)

// ==========================================
// ВЕБ-СЕРВЕР АДМИН-ПАНЕЛИ
// ==========================================

type WebServer struct {
	repo        Repository
	auth        *AuthService
	broadcaster *Broadcaster
	srv         *http.Server
	uploadDir   string
	startedAt   time.Time
}

func NewWebServer(addr string, repo Repository, auth *AuthService, broadcaster *Broadcaster) *WebServer {
	ws := &WebServer{
		repo:        repo,
		auth:        auth,
		broadcaster: broadcaster,
		uploadDir:   dirUploads,
		startedAt:   time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", ws.handleHealth)
	mux.Handle("/uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(dirUploads))))

	mux.HandleFunc("/admin/api/login", ws.handleLogin)
	mux.HandleFunc("/admin/api/dashboard", auth.requireAuth(ws.handleDashboard))
	mux.HandleFunc("/admin/api/dashboard/chart.png", auth.requireAuth(ws.handleChart))
	mux.HandleFunc("/admin/api/users", auth.requireAuth(ws.handleUsers))
	mux.HandleFunc("/admin/api/news", auth.requireAuth(ws.handleNews))
	mux.HandleFunc("/admin/api/news/", auth.requireAuth(ws.handleNewsItem))
	mux.HandleFunc("/admin/api/faq", auth.requireAuth(ws.handleFAQ))
	mux.HandleFunc("/admin/api/faq/", auth.requireAuth(ws.handleFAQItem))
	mux.HandleFunc("/admin/api/categories", auth.requireAuth(ws.handleCategories))
	mux.HandleFunc("/admin/api/categories/", auth.requireAuth(ws.handleCategoryItem))
	mux.HandleFunc("/admin/api/settings/", auth.requireAuth(ws.handleSettings))
	mux.HandleFunc("/admin/api/broadcast", auth.requireAuth(ws.handleBroadcast))
	mux.HandleFunc("/admin/api/upload", auth.requireAuth(ws.handleUpload))

	ws.srv = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	return ws
}

func (ws *WebServer) Start() {
	safeGo("web-server", func() {
		log.Printf("🌐 Веб-сервер запущен на %s", ws.srv.Addr)
		if err := ws.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("❌ Веб-сервер остановлен с ошибкой: %v", err)
		}
	})
}

func (ws *WebServer) Shutdown(ctx context.Context) error {
	return ws.srv.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("⚠️ Ошибка сериализации ответа: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
