// Package session реализует клиентскую часть работы с сессией:
// чтение claims из bearer-токена, проверку истечения срока действия
// и единственный именованный слот для хранения токена.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vulntracker/server/internal/token"
)

// Кастомные ошибки пакета.
var (
	// ErrInvalidToken возвращается, если токен отсутствует, поврежден
	// или его структуру невозможно декодировать.
	ErrInvalidToken = errors.New("невалидный токен сессии")
)

// ReadClaims извлекает типизированные claims из bearer-токена.
// Декодирование чистое: без проверки подписи (она выполняется на границе
// сервера), без сети и без побочных эффектов. Проверка истечения срока —
// отдельная обязанность вызывающего (см. Session.Expired), чтобы read-only
// сценарии могли разжаловать истекший токен в разлогин, а не в отказ чтения.
func ReadClaims(tokenString string) (*token.Claims, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}

	claims := &token.Claims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// Session — явно передаваемый объект сессии: claims, исходный токен
// и инжектируемые часы для проверки истечения (тестируемость).
type Session struct {
	Token  string
	Claims *token.Claims

	now func() time.Time
}

// New создает сессию из bearer-токена. Возвращает ErrInvalidToken,
// если claims извлечь невозможно.
func New(tokenString string) (*Session, error) {
	claims, err := ReadClaims(tokenString)
	if err != nil {
		return nil, err
	}
	return &Session{
		Token:  tokenString,
		Claims: claims,
		now:    time.Now,
	}, nil
}

// WithClock подменяет источник времени (для тестов).
func (s *Session) WithClock(now func() time.Time) *Session {
	s.now = now
	return s
}

// Expired сообщает, истек ли срок действия токена сессии.
// Токен без exp считается истекшим: продолжать с частичной
// идентичностью нельзя.
func (s *Session) Expired() bool {
	if s.Claims == nil || s.Claims.ExpiresAt == nil {
		return true
	}
	return s.Claims.ExpiresAt.Time.Before(s.now())
}

// IsAdmin сообщает, имеет ли сессия административную роль.
func (s *Session) IsAdmin() bool {
	return s.Claims != nil && s.Claims.Role == "Admin"
}

// TokenSlot — единственный именованный слот клиентского состояния,
// в котором хранится bearer-токен. Очищается при выходе или при
// обнаружении невалидности токена.
type TokenSlot struct {
	mu    sync.RWMutex
	token string
}

// Set сохраняет токен в слоте.
func (s *TokenSlot) Set(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// Get возвращает токен и признак его наличия.
func (s *TokenSlot) Get() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.token != ""
}

// Clear очищает слот (выход из системы).
func (s *TokenSlot) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
}
