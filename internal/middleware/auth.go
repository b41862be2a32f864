package middleware

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/vulntracker/server/internal/models"
	"github.com/vulntracker/server/internal/token"
)

// Тип для ключа контекста.
type contextKey string

// Ключ для хранения claims пользователя в контексте.
const ClaimsKey contextKey = "claims"

// Authenticator проверяет JWT токен аутентификации и кладет
// типизированные claims в контекст запроса.
func Authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Получаем заголовок Authorization
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			log.Println("[AuthMiddleware] Заголовок Authorization отсутствует")
			http.Error(w, "Требуется аутентификация", http.StatusUnauthorized)
			return
		}

		// Проверяем формат "Bearer token"
		headerParts := strings.Split(authHeader, " ")
		if len(headerParts) != 2 || strings.ToLower(headerParts[0]) != "bearer" {
			log.Printf("[AuthMiddleware] Неверный формат заголовка Authorization: %s", authHeader)
			http.Error(w, "Неверный формат токена", http.StatusUnauthorized)
			return
		}

		// Парсим и валидируем токен (подпись, срок действия)
		claims, err := token.Parse(headerParts[1])
		if err != nil {
			log.Printf("[AuthMiddleware] Ошибка парсинга/валидации токена: %v", err)
			http.Error(w, "Невалидный токен", http.StatusUnauthorized)
			return
		}

		// Добавляем claims в контекст запроса
		ctx := context.WithValue(r.Context(), ClaimsKey, claims)

		log.Printf("[AuthMiddleware] Пользователь %d (роль %s) успешно аутентифицирован", claims.UserID, claims.Role)

		// Передаем управление следующему обработчику с обновленным контекстом
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin пропускает запрос дальше только при роли Admin в claims.
// Применяется после Authenticator.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := GetClaimsFromContext(r.Context())
		if !ok {
			log.Println("[AuthMiddleware] Claims отсутствуют в контексте при проверке роли")
			http.Error(w, "Требуется аутентификация", http.StatusUnauthorized)
			return
		}
		if claims.Role != models.RoleAdmin {
			log.Printf("[AuthMiddleware] Пользователь %d с ролью %s пытался выполнить административную операцию",
				claims.UserID, claims.Role)
			http.Error(w, "Доступ запрещен", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetClaimsFromContext извлекает claims из контекста запроса.
// Возвращает claims и true, если они найдены, иначе nil и false.
func GetClaimsFromContext(ctx context.Context) (*token.Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*token.Claims)
	return claims, ok
}
