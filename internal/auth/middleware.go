package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	"beatstore-media-service/internal/logger"

	"go.uber.org/zap"
)

// AuthMiddleware создает middleware для проверки аутентификации
func AuthMiddleware(validator *TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Preflight CORS запросы не несут токен
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			// Получаем токен из заголовка Authorization
			authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
			if authHeader == "" {
				unauthorized(w, "Authorization header is required")
				return
			}

			// Убираем префикс "Bearer "
			token, found := cutBearer(authHeader)
			if !found || token == "" {
				unauthorized(w, "Bearer token is required")
				return
			}

			identity, err := validator.ValidateToken(token)
			if err != nil {
				logger.GetLoggerFromCtxSafe(r.Context()).Warn(r.Context(), "Token rejected", zap.Error(err))
				unauthorized(w, "Invalid token")
				return
			}

			// Добавляем пользователя в контекст запроса
			next.ServeHTTP(w, r.WithContext(CtxWithIdentity(r.Context(), identity)))
		})
	}
}

func cutBearer(header string) (string, bool) {
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="media"`)
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
