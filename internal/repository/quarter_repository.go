package repository

import (
	"context"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
)

// QuarterRepository определяет методы для работы с каталогом отчетных кварталов.
type QuarterRepository interface {
	// ListLabelsByCompany возвращает метки кварталов компании в порядке
	// обнаружения (порядок первой загрузки, не хронологический).
	ListLabelsByCompany(ctx context.Context, companyID int64) ([]string, error)
	// EnsureQuarter регистрирует квартал для компании; повторная
	// регистрация той же метки - no-op. Кварталы никогда не удаляются.
	EnsureQuarter(ctx context.Context, companyID int64, label string) error
}

// postgresQuarterRepository реализует QuarterRepository для PostgreSQL.
type postgresQuarterRepository struct {
	db *sqlx.DB
}

// NewPostgresQuarterRepository создает новый экземпляр репозитория кварталов.
func NewPostgresQuarterRepository(db *sqlx.DB) QuarterRepository {
	return &postgresQuarterRepository{db: db}
}

// ListLabelsByCompany возвращает метки кварталов компании.
// Пустой список - валидный результат (новый тенант без загрузок).
func (r *postgresQuarterRepository) ListLabelsByCompany(ctx context.Context, companyID int64) ([]string, error) {
	query := `SELECT label FROM quarters WHERE company_id=$1 ORDER BY id`

	labels := make([]string, 0)
	err := r.db.SelectContext(ctx, &labels, query, companyID)
	if err != nil {
		log.Printf("[QuarterRepo] Ошибка при получении кварталов компании %d: %v", companyID, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на получение кварталов: %w", err)
	}

	return labels, nil
}

// EnsureQuarter регистрирует квартал, игнорируя дубликаты.
func (r *postgresQuarterRepository) EnsureQuarter(ctx context.Context, companyID int64, label string) error {
	query := `INSERT INTO quarters (company_id, label) VALUES ($1, $2)
	          ON CONFLICT (company_id, label) DO NOTHING`

	if _, err := r.db.ExecContext(ctx, query, companyID, label); err != nil {
		log.Printf("[QuarterRepo] Ошибка при регистрации квартала '%s' компании %d: %v", label, companyID, err)
		return fmt.Errorf("ошибка выполнения запроса на регистрацию квартала: %w", err)
	}

	return nil
}
