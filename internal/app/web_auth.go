package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// ==========================================
// АВТОРИЗАЦИЯ АДМИН-ПАНЕЛИ (JWT + bcrypt)
// ==========================================

const tokenTTL = 24 * time.Hour

var ErrInvalidCredentials = errors.New("auth: invalid credentials")

type AuthService struct {
	repo   Repository
	secret []byte
}

func NewAuthService(repo Repository, secret string) *AuthService {
	return &AuthService{repo: repo, secret: []byte(secret)}
}

// EnsureDefaultAdmin создает учетную запись администратора при первом
// запуске, чтобы в панель можно было войти сразу после деплоя.
func (a *AuthService) EnsureDefaultAdmin(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return nil
	}
	_, err := a.repo.GetAdminAccount(ctx, username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("хеширование пароля: %w", err)
	}
	if err := a.repo.CreateAdminAccount(ctx, &AdminAccount{Username: username, PasswordHash: string(hash)}); err != nil {
		return err
	}
	log.Printf("✅ Создан администратор панели: %s", username)
	return nil
}

func (a *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	acc, err := a.repo.GetAdminAccount(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   acc.Username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("подпись токена: %w", err)
	}
	return signed, nil
}

// VerifyToken возвращает имя администратора из валидного токена.
func (a *AuthService) VerifyToken(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("неожиданный метод подписи: %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid || claims.Subject == "" {
		return "", errors.New("auth: invalid token")
	}
	return claims.Subject, nil
}

// requireAuth пропускает запрос дальше только с валидным Bearer-токеном.
func (a *AuthService) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			writeJSONError(w, http.StatusUnauthorized, "authorization required")
			return
		}
		if _, err := a.VerifyToken(tokenString); err != nil {
			writeJSONError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next(w, r)
	}
}
