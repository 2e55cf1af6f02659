package app

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newUploadServer(t *testing.T) *WebServer {
	t.Helper()
	repo := newTestRepo(t)
	ws := NewWebServer(":0", repo, NewAuthService(repo, "test-secret"), nil)
	ws.uploadDir = t.TempDir()
	return ws
}

func multipartBody(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatal(err)
	}
	if err := writer.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, writer.FormDataContentType()
}

func TestUploadAccepted(t *testing.T) {
	ws := newUploadServer(t)

	body, contentType := multipartBody(t, "rasm.png", []byte("png-bytes"))
	req := httptest.NewRequest(http.MethodPost, "/admin/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	ws.handleUpload(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("код %d, тело %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "/uploads/") {
		t.Errorf("ответ без ссылки: %s", rec.Body.String())
	}
}

func TestUploadRejectsOversized(t *testing.T) {
	ws := newUploadServer(t)

	big := bytes.Repeat([]byte("x"), maxUploadSize+1)
	body, contentType := multipartBody(t, "katta.png", big)
	req := httptest.NewRequest(http.MethodPost, "/admin/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	ws.handleUpload(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("файл больше лимита принят: код %d", rec.Code)
	}
}

func TestUploadRejectsBadExtension(t *testing.T) {
	ws := newUploadServer(t)

	body, contentType := multipartBody(t, "script.sh", []byte("#!/bin/sh"))
	req := httptest.NewRequest(http.MethodPost, "/admin/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	ws.handleUpload(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("посторонний тип файла принят: код %d", rec.Code)
	}
}
