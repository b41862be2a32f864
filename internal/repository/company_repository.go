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

// CompanyRepository определяет методы для работы с компаниями-клиентами.
type CompanyRepository interface {
	ListCompanies(ctx context.Context) ([]models.Company, error)
	GetCompanyByID(ctx context.Context, id int64) (*models.Company, error)
	GetCompanyByName(ctx context.Context, name string) (*models.Company, error)
	CreateCompany(ctx context.Context, name string) (int64, error)
}

// postgresCompanyRepository реализует CompanyRepository для PostgreSQL.
type postgresCompanyRepository struct {
	db *sqlx.DB
}

// NewPostgresCompanyRepository создает новый экземпляр репозитория компаний.
func NewPostgresCompanyRepository(db *sqlx.DB) CompanyRepository {
	return &postgresCompanyRepository{db: db}
}

// ListCompanies возвращает все компании.
func (r *postgresCompanyRepository) ListCompanies(ctx context.Context) ([]models.Company, error) {
	query := `SELECT id, name, created_at FROM companies ORDER BY id`

	companies := make([]models.Company, 0)
	err := r.db.SelectContext(ctx, &companies, query)
	if err != nil {
		log.Printf("[CompanyRepo] Ошибка при получении списка компаний: %v", err)
		return nil, fmt.Errorf("ошибка выполнения запроса на получение списка компаний: %w", err)
	}

	return companies, nil
}

// GetCompanyByID находит компанию по ID.
func (r *postgresCompanyRepository) GetCompanyByID(ctx context.Context, id int64) (*models.Company, error) {
	var company models.Company

	err := r.db.GetContext(ctx, &company, `SELECT id, name, created_at FROM companies WHERE id=$1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Printf("[CompanyRepo] Компания ID %d не найдена", id)
			return nil, ErrCompanyNotFound
		}
		log.Printf("[CompanyRepo] Ошибка при поиске компании ID %d: %v", id, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на получение компании: %w", err)
	}

	return &company, nil
}

// GetCompanyByName находит компанию по имени.
func (r *postgresCompanyRepository) GetCompanyByName(ctx context.Context, name string) (*models.Company, error) {
	var company models.Company

	err := r.db.GetContext(ctx, &company, `SELECT id, name, created_at FROM companies WHERE name=$1`, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCompanyNotFound
		}
		log.Printf("[CompanyRepo] Ошибка при поиске компании '%s': %v", name, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на получение компании: %w", err)
	}

	return &company, nil
}

// CreateCompany создает новую компанию и возвращает ее ID.
func (r *postgresCompanyRepository) CreateCompany(ctx context.Context, name string) (int64, error) {
	var companyID int64

	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO companies (name) VALUES ($1) RETURNING id`, name,
	).Scan(&companyID)
	if err != nil {
		var pgErr *pq.Error
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolationCode {
			log.Printf("[CompanyRepo] Ошибка создания компании: имя '%s' уже занято", name)
			return 0, ErrCompanyNameTaken
		}
		log.Printf("[CompanyRepo] Непредвиденная ошибка при создании компании '%s': %v", name, err)
		return 0, fmt.Errorf("ошибка выполнения запроса на создание компании: %w", err)
	}

	log.Printf("[CompanyRepo] Компания '%s' успешно создана с ID %d", name, companyID)
	return companyID, nil
}

// Кастомные ошибки репозитория.
var (
	ErrCompanyNotFound  = errors.New("компания не найдена")
	ErrCompanyNameTaken = errors.New("имя компании уже занято")
)
