package models

import "time"

// Роли пользователей. Значения совпадают с тем, что кладется в JWT.
const (
	RoleUser  = "User"
	RoleAdmin = "Admin"
)

// User представляет учетную запись пользователя системы.
// Тэги `db` используются для маппинга с полями БД с помощью sqlx.
// Тэги `json` используются для (де)сериализации JSON.
type User struct {
	ID           int64     `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	Role         string    `db:"role" json:"role"`
	CompanyID    *int64    `db:"company_id" json:"companyId,omitempty"` // может быть NULL (без компании)
	CompanyName  *string   `db:"company_name" json:"companyName,omitempty"`
	PasswordHash string    `db:"password_hash" json:"-"` // Не отправляем хеш пароля в JSON
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// Company представляет компанию-клиента (тенант), данные которой изолированы от других.
type Company struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// LoginRequest представляет тело запроса на вход.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse представляет тело ответа при успешном входе.
type LoginResponse struct {
	Token string `json:"token"`
}

// CreateUserRequest представляет тело запроса на создание пользователя.
type CreateUserRequest struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	Password  string `json:"password"`
	CompanyID *int64 `json:"companyId,omitempty"`
}

// UpdateUserRequest представляет тело запроса на обновление пользователя.
// Поле Password — указатель: nil или пустая строка означает "пароль не менять",
// в этом случае поле вообще не попадает в JSON (омission обязателен по контракту:
// пустой пароль никогда не должен затирать существующие учетные данные).
type UpdateUserRequest struct {
	Name      string  `json:"name"`
	Email     string  `json:"email"`
	Role      string  `json:"role"`
	Password  *string `json:"password,omitempty"`
	CompanyID *int64  `json:"companyId,omitempty"`
}
