package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/vulntracker/server/internal/models"
)

// VulnerabilityFilter описывает условия выборки уязвимостей.
// CompanyID обязателен: все выборки изолированы по тенанту.
type VulnerabilityFilter struct {
	CompanyID    int64
	Search       string // подстрока по title/description без учета регистра; пусто = без фильтра
	Quarter      string // точное вхождение метки в quarters; пусто = без фильтра
	IsResolved   *bool  // nil = без фильтра по статусу
	CarryForward bool   // true = только уязвимости, наблюдавшиеся более чем в одном квартале
}

// VulnerabilityRepository определяет методы для работы с уязвимостями в хранилище.
type VulnerabilityRepository interface {
	ListVulnerabilities(ctx context.Context, filter VulnerabilityFilter, limit, offset int) ([]models.Vulnerability, error)
	CountVulnerabilities(ctx context.Context, filter VulnerabilityFilter) (int, error)
	// GetByIdentity находит уязвимость по ключу идентичности
	// (тенант + title + asset_ip + port), по которому пайплайн загрузки
	// распознает повторное появление.
	GetByIdentity(ctx context.Context, companyID int64, title, assetIP string, port int) (*models.Vulnerability, error)
	CreateVulnerability(ctx context.Context, v *models.Vulnerability) (int64, error)
	// AppendQuarter дописывает метку квартала к уязвимости, если ее там еще нет.
	AppendQuarter(ctx context.Context, id int64, label string) error
}

// postgresVulnerabilityRepository реализует VulnerabilityRepository для PostgreSQL.
type postgresVulnerabilityRepository struct {
	db *sqlx.DB
}

// NewPostgresVulnerabilityRepository создает новый экземпляр репозитория уязвимостей.
func NewPostgresVulnerabilityRepository(db *sqlx.DB) VulnerabilityRepository {
	return &postgresVulnerabilityRepository{db: db}
}

// buildWhere собирает WHERE-условие и аргументы по фильтру.
// Первое условие всегда company_id: изоляция тенантов не обходится
// никакой комбинацией фильтров.
func buildWhere(filter VulnerabilityFilter) (string, []interface{}) {
	conditions := []string{"company_id = $1"}
	args := []interface{}{filter.CompanyID}

	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := len(args)
		conditions = append(conditions, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d)", n, n))
	}
	if filter.Quarter != "" {
		args = append(args, filter.Quarter)
		conditions = append(conditions, fmt.Sprintf("$%d = ANY(quarters)", len(args)))
	}
	if filter.IsResolved != nil {
		args = append(args, *filter.IsResolved)
		conditions = append(conditions, fmt.Sprintf("is_resolved = $%d", len(args)))
	}
	if filter.CarryForward {
		// Классификация carry-forward выполняется на стороне БД, чтобы
		// totalPages считался по тому же множеству, что и страница.
		conditions = append(conditions, "cardinality(quarters) > 1")
	}

	return strings.Join(conditions, " AND "), args
}

// ListVulnerabilities возвращает страницу уязвимостей по фильтру.
// Порядок стабильный: по возрастанию ID.
func (r *postgresVulnerabilityRepository) ListVulnerabilities(
	ctx context.Context,
	filter VulnerabilityFilter,
	limit, offset int,
) ([]models.Vulnerability, error) {
	where, args := buildWhere(filter)
	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT id, company_id, title, asset_ip, port, risk_level, description,
	                 protocol, cve_ids, impact, is_resolved, age, quarters, created_at, updated_at
	          FROM vulnerabilities
	          WHERE %s
	          ORDER BY id
	          LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))

	vulns := make([]models.Vulnerability, 0, limit)
	err := r.db.SelectContext(ctx, &vulns, query, args...)
	if err != nil {
		log.Printf("[VulnRepo] Ошибка при получении списка уязвимостей компании %d: %v", filter.CompanyID, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на получение списка уязвимостей: %w", err)
	}

	return vulns, nil
}

// CountVulnerabilities возвращает общее число уязвимостей, подпадающих под фильтр.
func (r *postgresVulnerabilityRepository) CountVulnerabilities(
	ctx context.Context,
	filter VulnerabilityFilter,
) (int, error) {
	where, args := buildWhere(filter)
	query := fmt.Sprintf(`SELECT COUNT(*) FROM vulnerabilities WHERE %s`, where)

	var count int
	err := r.db.GetContext(ctx, &count, query, args...)
	if err != nil {
		log.Printf("[VulnRepo] Ошибка при подсчете уязвимостей компании %d: %v", filter.CompanyID, err)
		return 0, fmt.Errorf("ошибка выполнения запроса на подсчет уязвимостей: %w", err)
	}

	return count, nil
}

// GetByIdentity находит уязвимость по ключу идентичности.
func (r *postgresVulnerabilityRepository) GetByIdentity(
	ctx context.Context,
	companyID int64,
	title, assetIP string,
	port int,
) (*models.Vulnerability, error) {
	query := `SELECT id, company_id, title, asset_ip, port, risk_level, description,
	                 protocol, cve_ids, impact, is_resolved, age, quarters, created_at, updated_at
	          FROM vulnerabilities
	          WHERE company_id=$1 AND title=$2 AND asset_ip=$3 AND port=$4
	          LIMIT 1`
	var vuln models.Vulnerability

	err := r.db.GetContext(ctx, &vuln, query, companyID, title, assetIP, port)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrVulnerabilityNotFound
		}
		log.Printf("[VulnRepo] Ошибка при поиске уязвимости '%s' компании %d: %v", title, companyID, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на поиск уязвимости: %w", err)
	}

	return &vuln, nil
}

// CreateVulnerability создает новую запись об уязвимости.
func (r *postgresVulnerabilityRepository) CreateVulnerability(
	ctx context.Context,
	v *models.Vulnerability,
) (int64, error) {
	query := `INSERT INTO vulnerabilities
	          (company_id, title, asset_ip, port, risk_level, description, protocol,
	           cve_ids, impact, is_resolved, age, quarters)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	          RETURNING id`
	var vulnID int64

	err := r.db.QueryRowxContext(ctx, query,
		v.CompanyID, v.Title, v.AssetIP, v.Port, v.RiskLevel, v.Description, v.Protocol,
		pq.Array(v.CVEIDs), v.Impact, v.IsResolved, v.Age, pq.Array(v.Quarters),
	).Scan(&vulnID)
	if err != nil {
		log.Printf("[VulnRepo] Непредвиденная ошибка при создании уязвимости '%s': %v", v.Title, err)
		return 0, fmt.Errorf("ошибка выполнения запроса на создание уязвимости: %w", err)
	}

	log.Printf("[VulnRepo] Уязвимость '%s' компании %d создана с ID %d", v.Title, v.CompanyID, vulnID)
	return vulnID, nil
}

// AppendQuarter дописывает метку квартала в quarters, если ее там еще нет.
// Решенные уязвимости не трогаем: их жизненный цикл закрыт.
func (r *postgresVulnerabilityRepository) AppendQuarter(ctx context.Context, id int64, label string) error {
	query := `UPDATE vulnerabilities
	          SET quarters = array_append(quarters, $1), updated_at = NOW()
	          WHERE id = $2 AND NOT ($1 = ANY(quarters)) AND is_resolved = FALSE`

	if _, err := r.db.ExecContext(ctx, query, label, id); err != nil {
		log.Printf("[VulnRepo] Ошибка при дописывании квартала '%s' к уязвимости ID %d: %v", label, id, err)
		return fmt.Errorf("ошибка выполнения запроса на дописывание квартала: %w", err)
	}

	return nil
}

// Кастомные ошибки репозитория.
var (
	ErrVulnerabilityNotFound = errors.New("уязвимость не найдена")
)
