package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wcharczuk/go-chart/v2"
)

// ==========================================
// JSON API АДМИН-ПАНЕЛИ
// ==========================================

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": formatDuration(time.Since(ws.startedAt)),
	})
}

func (ws *WebServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	token, err := ws.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			writeJSONError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		log.Printf("❌ Ошибка входа в панель: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (ws *WebServer) handleDashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := ws.repo.DashboardStats(r.Context())
	if err != nil {
		log.Printf("❌ Ошибка сбора статистики: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleChart отдает PNG с регистрациями за последние 7 дней.
func (ws *WebServer) handleChart(w http.ResponseWriter, r *http.Request) {
	stats, err := ws.repo.DashboardStats(r.Context())
	if err != nil {
		log.Printf("❌ Ошибка сбора статистики: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	var (
		xValues []time.Time
		yValues []float64
		maxY    float64
	)
	for i := 6; i >= 0; i-- {
		day := truncateToDay(time.Now().AddDate(0, 0, -i))
		count := float64(stats.DailyRegistrations[day.Format("2006-01-02")])
		xValues = append(xValues, day)
		yValues = append(yValues, count)
		if count > maxY {
			maxY = count
		}
	}
	// Плоская серия из нулей ломает автодиапазон оси Y.
	if maxY == 0 {
		maxY = 1
	}

	graph := chart.Chart{
		Title:  "Registrations, last 7 days",
		Width:  800,
		Height: 400,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeDateValueFormatter,
		},
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: 0, Max: maxY},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "registrations",
				XValues: xValues,
				YValues: yValues,
				Style: chart.Style{
					StrokeWidth: 2.5,
				},
			},
		},
	}

	w.Header().Set("Content-Type", "image/png")
	if err := graph.Render(chart.PNG, w); err != nil {
		log.Printf("❌ Ошибка рендера графика: %v", err)
	}
}

func (ws *WebServer) handleUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	users, err := ws.repo.ListUsers(r.Context())
	if err != nil {
		log.Printf("❌ Ошибка чтения пользователей: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (ws *WebServer) handleNews(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		news, err := ws.repo.ListNews(r.Context())
		if err != nil {
			log.Printf("❌ Ошибка чтения новостей: %v", err)
			writeJSONError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, news)
	case http.MethodPost:
		var n News
		if err := decodeJSON(r, &n); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if n.TitleLatin == "" && n.TitleCyrillic == "" {
			writeJSONError(w, http.StatusBadRequest, "title is required")
			return
		}
		if err := ws.repo.CreateNews(r.Context(), &n); err != nil {
			log.Printf("❌ Ошибка создания новости: %v", err)
			writeJSONError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusCreated, n)
	default:
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (ws *WebServer) handleNewsItem(w http.ResponseWriter, r *http.Request) {
	ws.deleteByPath(w, r, "/admin/api/news/", ws.repo.DeleteNews)
}

func (ws *WebServer) handleFAQ(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		faq, err := ws.repo.ListFAQ(r.Context())
		if err != nil {
			log.Printf("❌ Ошибка чтения FAQ: %v", err)
			writeJSONError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, faq)
	case http.MethodPost:
		var f FAQ
		if err := decodeJSON(r, &f); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if f.QuestionLatin == "" && f.QuestionCyrillic == "" {
			writeJSONError(w, http.StatusBadRequest, "question is required")
			return
		}
		if err := ws.repo.CreateFAQ(r.Context(), &f); err != nil {
			log.Printf("❌ Ошибка создания FAQ: %v", err)
			writeJSONError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusCreated, f)
	default:
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (ws *WebServer) handleFAQItem(w http.ResponseWriter, r *http.Request) {
	ws.deleteByPath(w, r, "/admin/api/faq/", ws.repo.DeleteFAQ)
}

func (ws *WebServer) handleCategories(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		cats, err := ws.repo.ListCategories(r.Context())
		if err != nil {
			log.Printf("❌ Ошибка чтения направлений: %v", err)
			writeJSONError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, cats)
	case http.MethodPost:
		var cat SubscriptionCategory
		if err := decodeJSON(r, &cat); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if cat.NameLatin == "" {
			writeJSONError(w, http.StatusBadRequest, "name_latin is required")
			return
		}
		if err := ws.repo.CreateCategory(r.Context(), &cat); err != nil {
			log.Printf("❌ Ошибка создания направления: %v", err)
			writeJSONError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusCreated, cat)
	default:
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (ws *WebServer) handleCategoryItem(w http.ResponseWriter, r *http.Request) {
	ws.deleteByPath(w, r, "/admin/api/categories/", ws.repo.DeleteCategory)
}

func (ws *WebServer) deleteByPath(w http.ResponseWriter, r *http.Request, prefix string, del func(ctx context.Context, id string) error) {
	if r.Method != http.MethodDelete {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, prefix)
	if id == "" || strings.Contains(id, "/") {
		writeJSONError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := del(r.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "not found")
			return
		}
		log.Printf("❌ Ошибка удаления %s%s: %v", prefix, id, err)
		writeJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

func (ws *WebServer) handleSettings(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/admin/api/settings/")
	if key == "" || strings.Contains(key, "/") {
		writeJSONError(w, http.StatusBadRequest, "invalid setting key")
		return
	}
	switch r.Method {
	case http.MethodGet:
		setting, err := ws.repo.GetSetting(r.Context(), key)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				writeJSONError(w, http.StatusNotFound, "not found")
				return
			}
			log.Printf("❌ Ошибка чтения настройки %s: %v", key, err)
			writeJSONError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, setting)
	case http.MethodPut:
		var req struct {
			ValueLatin    string `json:"value_latin"`
			ValueCyrillic string `json:"value_cyrillic"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := ws.repo.UpdateSetting(r.Context(), key, req.ValueLatin, req.ValueCyrillic); err != nil {
			log.Printf("❌ Ошибка обновления настройки %s: %v", key, err)
			writeJSONError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"updated": key})
	default:
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleBroadcast запускает рассылку в фоне и сразу отвечает 202.
func (ws *WebServer) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req struct {
		Audience        string `json:"audience"`
		MessageLatin    string `json:"message_latin"`
		MessageCyrillic string `json:"message_cyrillic"`
		ImageURL        string `json:"image_url"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.MessageLatin == "" && req.MessageCyrillic == "" {
		writeJSONError(w, http.StatusBadRequest, "message is required")
		return
	}
	if req.MessageLatin == "" {
		req.MessageLatin = req.MessageCyrillic
	}
	if req.MessageCyrillic == "" {
		req.MessageCyrillic = req.MessageLatin
	}

	runHeavy("broadcast", func() {
		if _, err := ws.broadcaster.Run(context.Background(), req.Audience, req.MessageLatin, req.MessageCyrillic, req.ImageURL); err != nil {
			log.Printf("❌ Ошибка рассылки: %v", err)
		}
	})
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

// Максимальный размер загружаемого изображения.
const maxUploadSize = 5 << 20

// handleUpload принимает изображение и сохраняет его в каталог публичной
// раздачи под случайным именем.
func (ws *WebServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeJSONError(w, http.StatusRequestEntityTooLarge, "file too large")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()
	if header.Size > maxUploadSize {
		writeJSONError(w, http.StatusRequestEntityTooLarge, "file too large")
		return
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
	default:
		writeJSONError(w, http.StatusBadRequest, "unsupported file type")
		return
	}

	name := uuid.NewString() + ext
	dstPath := filepath.Join(ws.uploadDir, name)
	dst, err := os.Create(dstPath)
	if err != nil {
		log.Printf("❌ Ошибка сохранения файла: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}
	defer dst.Close()
	if _, err := io.Copy(dst, file); err != nil {
		log.Printf("❌ Ошибка записи файла: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"url": fmt.Sprintf("/uploads/%s", name),
	})
}
