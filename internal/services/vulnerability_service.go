package services

import (
	"context"
	"errors"
	"log"

	"github.com/vulntracker/server/internal/models"
	"github.com/vulntracker/server/internal/repository"
)

// Размер страницы выборки уязвимостей. Фиксированная константа конфигурации.
const vulnerabilityPageSize = 10

// VulnerabilityService определяет интерфейс сервиса выборки уязвимостей
// и каталога кварталов.
type VulnerabilityService interface {
	// Query возвращает страницу уязвимостей по фильтру.
	// Номер страницы 1-based; page < 1 трактуется как 1; страница за
	// пределами totalPages - пустой список без ошибки.
	Query(ctx context.Context, filter repository.VulnerabilityFilter, page int) (*models.VulnerabilityPage, error)
	// ListQuarters возвращает метки кварталов компании в порядке обнаружения.
	ListQuarters(ctx context.Context, companyID int64) ([]string, error)
}

// Убедимся, что vulnerabilityService удовлетворяет интерфейсу.
var _ VulnerabilityService = (*vulnerabilityService)(nil)

type vulnerabilityService struct {
	vulnRepo    repository.VulnerabilityRepository
	quarterRepo repository.QuarterRepository
}

// NewVulnerabilityService создает новый экземпляр сервиса уязвимостей.
func NewVulnerabilityService(
	vulnRepo repository.VulnerabilityRepository,
	quarterRepo repository.QuarterRepository,
) VulnerabilityService {
	return &vulnerabilityService{vulnRepo: vulnRepo, quarterRepo: quarterRepo}
}

// Query выполняет постраничную выборку уязвимостей.
// totalPages считается по тому же отфильтрованному множеству, из которого
// режутся страницы (включая carry-forward условие), поэтому число строк на
// странице всегда согласовано с количеством страниц.
func (s *vulnerabilityService) Query(
	ctx context.Context,
	filter repository.VulnerabilityFilter,
	page int,
) (*models.VulnerabilityPage, error) {
	if filter.CompanyID <= 0 {
		return nil, ErrCompanyRequired
	}
	if page < 1 {
		page = 1
	}

	total, err := s.vulnRepo.CountVulnerabilities(ctx, filter)
	if err != nil {
		log.Printf("[VulnService] Ошибка подсчета уязвимостей компании %d: %v", filter.CompanyID, err)
		return nil, errors.New("внутренняя ошибка сервера при подсчете уязвимостей")
	}

	totalPages := (total + vulnerabilityPageSize - 1) / vulnerabilityPageSize

	// Запрос за пределами последней страницы - не ошибка:
	// возвращаем пустой список с запрошенным номером страницы.
	if totalPages == 0 || page > totalPages {
		return &models.VulnerabilityPage{
			Items:      []models.Vulnerability{},
			PageNumber: page,
			TotalPages: totalPages,
		}, nil
	}

	offset := (page - 1) * vulnerabilityPageSize
	items, err := s.vulnRepo.ListVulnerabilities(ctx, filter, vulnerabilityPageSize, offset)
	if err != nil {
		log.Printf("[VulnService] Ошибка выборки уязвимостей компании %d: %v", filter.CompanyID, err)
		return nil, errors.New("внутренняя ошибка сервера при выборке уязвимостей")
	}

	return &models.VulnerabilityPage{
		Items:      items,
		PageNumber: page,
		TotalPages: totalPages,
	}, nil
}

// ListQuarters возвращает каталог кварталов компании.
func (s *vulnerabilityService) ListQuarters(ctx context.Context, companyID int64) ([]string, error) {
	if companyID <= 0 {
		return nil, ErrCompanyRequired
	}

	labels, err := s.quarterRepo.ListLabelsByCompany(ctx, companyID)
	if err != nil {
		log.Printf("[VulnService] Ошибка получения кварталов компании %d: %v", companyID, err)
		return nil, errors.New("внутренняя ошибка сервера при получении кварталов")
	}

	return labels, nil
}

// Кастомные ошибки сервиса.
var (
	ErrCompanyRequired = errors.New("не указана компания")
)
