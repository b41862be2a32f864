package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/vulntracker/server/internal/models"
)

// Коды ошибок PostgreSQL.
const (
	pgUniqueViolationCode = "23505"
)

// UserRepository определяет методы для работы с учетными записями в хранилище.
type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) (int64, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	// ListUsers возвращает всех пользователей вместе с именем компании (join).
	ListUsers(ctx context.Context) ([]models.User, error)
	// UpdateUser обновляет пользователя. passwordHash == nil означает
	// "учетные данные не трогать": колонка password_hash не попадает в запрос.
	UpdateUser(ctx context.Context, id int64, user *models.User, passwordHash *string) error
	DeleteUser(ctx context.Context, id int64) error
}

// postgresUserRepository реализует UserRepository для PostgreSQL.
type postgresUserRepository struct {
	db *sqlx.DB
}

// NewPostgresUserRepository создает новый экземпляр репозитория пользователей для PostgreSQL.
func NewPostgresUserRepository(db *sqlx.DB) UserRepository {
	return &postgresUserRepository{db: db}
}

// CreateUser создает нового пользователя в базе данных.
// Возвращает ID созданного пользователя или ошибку.
func (r *postgresUserRepository) CreateUser(ctx context.Context, user *models.User) (int64, error) {
	query := `INSERT INTO users (name, email, role, company_id, password_hash)
	          VALUES ($1, $2, $3, $4, $5) RETURNING id`
	var userID int64

	err := r.db.QueryRowxContext(ctx, query,
		user.Name, user.Email, user.Role, user.CompanyID, user.PasswordHash,
	).Scan(&userID)
	if err != nil {
		// Проверяем на ошибку нарушения уникальности (duplicate key)
		var pgErr *pq.Error
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolationCode {
			log.Printf("[UserRepo] Ошибка создания пользователя: email '%s' уже занят", user.Email)
			return 0, ErrEmailTaken
		}
		log.Printf("[UserRepo] Непредвиденная ошибка при создании пользователя '%s': %v", user.Email, err)
		return 0, fmt.Errorf("ошибка выполнения запроса на создание пользователя: %w", err)
	}

	log.Printf("[UserRepo] Пользователь '%s' успешно создан с ID %d", user.Email, userID)
	return userID, nil
}

// GetUserByEmail находит пользователя по email.
func (r *postgresUserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT id, name, email, role, company_id, password_hash, created_at, updated_at
	          FROM users WHERE email=$1`
	var user models.User

	err := r.db.GetContext(ctx, &user, query, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Printf("[UserRepo] Пользователь с email '%s' не найден", email)
			return nil, ErrUserNotFound
		}
		log.Printf("[UserRepo] Ошибка при поиске пользователя '%s': %v", email, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на получение пользователя: %w", err)
	}

	return &user, nil
}

// GetUserByID находит пользователя по ID.
func (r *postgresUserRepository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT id, name, email, role, company_id, password_hash, created_at, updated_at
	          FROM users WHERE id=$1`
	var user models.User

	err := r.db.GetContext(ctx, &user, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		log.Printf("[UserRepo] Ошибка при поиске пользователя ID %d: %v", id, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на получение пользователя: %w", err)
	}

	return &user, nil
}

// ListUsers возвращает всех пользователей с именем компании (LEFT JOIN:
// пользователь может быть без компании).
func (r *postgresUserRepository) ListUsers(ctx context.Context) ([]models.User, error) {
	query := `SELECT u.id, u.name, u.email, u.role, u.company_id, c.name AS company_name,
	                 u.created_at, u.updated_at
	          FROM users u
	          LEFT JOIN companies c ON c.id = u.company_id
	          ORDER BY u.id`

	users := make([]models.User, 0)
	err := r.db.SelectContext(ctx, &users, query)
	if err != nil {
		log.Printf("[UserRepo] Ошибка при получении списка пользователей: %v", err)
		return nil, fmt.Errorf("ошибка выполнения запроса на получение списка пользователей: %w", err)
	}

	return users, nil
}

// UpdateUser обновляет поля пользователя. Если passwordHash равен nil,
// колонка password_hash в запрос не включается — существующие учетные
// данные остаются без изменений.
func (r *postgresUserRepository) UpdateUser(
	ctx context.Context,
	id int64,
	user *models.User,
	passwordHash *string,
) error {
	var (
		result sql.Result
		err    error
	)

	if passwordHash != nil {
		query := `UPDATE users SET name=$1, email=$2, role=$3, company_id=$4,
		          password_hash=$5, updated_at=NOW() WHERE id=$6`
		result, err = r.db.ExecContext(ctx, query,
			user.Name, user.Email, user.Role, user.CompanyID, *passwordHash, id)
	} else {
		query := `UPDATE users SET name=$1, email=$2, role=$3, company_id=$4,
		          updated_at=NOW() WHERE id=$5`
		result, err = r.db.ExecContext(ctx, query,
			user.Name, user.Email, user.Role, user.CompanyID, id)
	}
	if err != nil {
		var pgErr *pq.Error
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolationCode {
			log.Printf("[UserRepo] Ошибка обновления пользователя ID %d: email '%s' уже занят", id, user.Email)
			return ErrEmailTaken
		}
		log.Printf("[UserRepo] Ошибка при обновлении пользователя ID %d: %v", id, err)
		return fmt.Errorf("ошибка выполнения запроса на обновление пользователя: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка получения количества обновленных строк: %w", err)
	}
	if rows == 0 {
		return ErrUserNotFound
	}

	log.Printf("[UserRepo] Пользователь ID %d успешно обновлен", id)
	return nil
}

// DeleteUser удаляет пользователя. Повторное удаление уже удаленного ID
// возвращает ErrUserNotFound.
func (r *postgresUserRepository) DeleteUser(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id=$1`, id)
	if err != nil {
		log.Printf("[UserRepo] Ошибка при удалении пользователя ID %d: %v", id, err)
		return fmt.Errorf("ошибка выполнения запроса на удаление пользователя: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка получения количества удаленных строк: %w", err)
	}
	if rows == 0 {
		log.Printf("[UserRepo] Пользователь ID %d не найден при удалении", id)
		return ErrUserNotFound
	}

	log.Printf("[UserRepo] Пользователь ID %d успешно удален", id)
	return nil
}

// Кастомные ошибки репозитория.
var (
	ErrUserNotFound = errors.New("пользователь не найден")
	ErrEmailTaken   = errors.New("email уже занят")
)
