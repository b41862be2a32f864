package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TODO: Вынести секретный ключ в конфигурацию/переменные окружения!
const jwtSecretKey = "your-very-secret-key"

// Время жизни токена - 24 часа.
const tokenTTL = time.Hour * 24

// Имя издателя в claims.
const issuer = "vulntracker-server"

// Claims представляет полезную нагрузку JWT: факты о личности и тенанте,
// на которых строится контроль доступа. Имена JSON-полей — часть контракта
// с потребителями токена.
type Claims struct {
	UserID    int64  `json:"userId"`
	CompanyID *int64 `json:"companyId,omitempty"` // может отсутствовать (пользователь без компании)
	Role      string `json:"role"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	jwt.RegisteredClaims
}

// Кастомные ошибки пакета.
var (
	ErrInvalidToken = errors.New("невалидный токен")
)

// Generate создает и подписывает JWT токен для пользователя.
func Generate(userID int64, companyID *int64, role, name, email string) (string, error) {
	claims := Claims{
		UserID:    userID,
		CompanyID: companyID,
		Role:      role,
		Name:      name,
		Email:     email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenTTL)), // Время истечения
			IssuedAt:  jwt.NewNumericDate(time.Now()),               // Время выдачи
			NotBefore: jwt.NewNumericDate(time.Now()),               // Время, с которого токен валиден
			Issuer:    issuer,                                       // Источник токена
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedToken, err := token.SignedString([]byte(jwtSecretKey))
	if err != nil {
		return "", fmt.Errorf("ошибка подписи JWT: %w", err)
	}

	return signedToken, nil
}

// Parse разбирает и проверяет подпись и сроки действия токена.
// Возвращает типизированные claims или ErrInvalidToken.
func Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// Убеждаемся, что метод подписи - HS256
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("неожиданный метод подписи: %v", token.Header["alg"])
		}
		return []byte(jwtSecretKey), nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
