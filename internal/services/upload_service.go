package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/vulntracker/server/internal/models"
	"github.com/vulntracker/server/internal/repository"
	"github.com/vulntracker/server/internal/storage"
)

// UploadSummary — итоги обработки одного CSV-файла.
type UploadSummary struct {
	CompanyID int64  `json:"companyId"`
	Quarter   string `json:"quarter"`
	Rows      int    `json:"rows"`    // всего разобранных строк
	Created   int    `json:"created"` // новых уязвимостей
	Updated   int    `json:"updated"` // повторных появлений (дописан квартал)
}

// UploadService определяет интерфейс пайплайна загрузки сканов.
// Это единственный производитель нового состояния Vulnerability/Quarter.
type UploadService interface {
	ProcessUpload(ctx context.Context, companyName, quarter string, file io.Reader) (*UploadSummary, error)
}

// Убедимся, что uploadService удовлетворяет интерфейсу.
var _ UploadService = (*uploadService)(nil)

type uploadService struct {
	companyRepo repository.CompanyRepository
	quarterRepo repository.QuarterRepository
	vulnRepo    repository.VulnerabilityRepository
	fileStorage storage.FileStorage
}

// NewUploadService создает новый экземпляр сервиса загрузки.
func NewUploadService(
	companyRepo repository.CompanyRepository,
	quarterRepo repository.QuarterRepository,
	vulnRepo repository.VulnerabilityRepository,
	fileStorage storage.FileStorage,
) UploadService {
	return &uploadService{
		companyRepo: companyRepo,
		quarterRepo: quarterRepo,
		vulnRepo:    vulnRepo,
		fileStorage: fileStorage,
	}
}

// ProcessUpload обрабатывает CSV-файл со сканом за указанный квартал:
// находит или создает компанию, регистрирует квартал, разбирает строки и
// выполняет upsert по ключу идентичности (компания + title + asset_ip + port).
// Повторное появление уже известной уязвимости дописывает метку квартала
// вместо создания дубликата; решенные уязвимости не трогаются.
// Исходный файл архивируется в объектном хранилище.
func (s *uploadService) ProcessUpload(
	ctx context.Context,
	companyName, quarter string,
	file io.Reader,
) (*UploadSummary, error) {
	if companyName == "" || quarter == "" {
		return nil, fmt.Errorf("%w: компания и квартал обязательны", ErrValidation)
	}

	// Читаем файл целиком: он нужен дважды - для разбора и для архива
	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения загруженного файла: %w", err)
	}

	records, err := parseScanCSV(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err)
	}

	// Находим или создаем компанию по имени
	companyID, err := s.ensureCompany(ctx, companyName)
	if err != nil {
		return nil, err
	}

	// Регистрируем квартал (повторная регистрация - no-op)
	if err = s.quarterRepo.EnsureQuarter(ctx, companyID, quarter); err != nil {
		log.Printf("[UploadService] Ошибка регистрации квартала '%s': %v", quarter, err)
		return nil, errors.New("внутренняя ошибка сервера при регистрации квартала")
	}

	summary := &UploadSummary{CompanyID: companyID, Quarter: quarter, Rows: len(records)}

	for i := range records {
		v := &records[i]
		v.CompanyID = companyID
		v.Quarters = []string{quarter}

		existing, getErr := s.vulnRepo.GetByIdentity(ctx, companyID, v.Title, v.AssetIP, v.Port)
		switch {
		case getErr == nil:
			// Повторное появление: дописываем квартал (репозиторий сам
			// пропустит дубликат метки и закрытые уязвимости)
			if appendErr := s.vulnRepo.AppendQuarter(ctx, existing.ID, quarter); appendErr != nil {
				log.Printf("[UploadService] Ошибка дописывания квартала к уязвимости ID %d: %v", existing.ID, appendErr)
				return nil, errors.New("внутренняя ошибка сервера при обновлении уязвимости")
			}
			summary.Updated++
		case errors.Is(getErr, repository.ErrVulnerabilityNotFound):
			if _, createErr := s.vulnRepo.CreateVulnerability(ctx, v); createErr != nil {
				log.Printf("[UploadService] Ошибка создания уязвимости '%s': %v", v.Title, createErr)
				return nil, errors.New("внутренняя ошибка сервера при создании уязвимости")
			}
			summary.Created++
		default:
			log.Printf("[UploadService] Ошибка поиска уязвимости '%s': %v", v.Title, getErr)
			return nil, errors.New("внутренняя ошибка сервера при поиске уязвимости")
		}
	}

	// Архивируем исходный CSV в объектном хранилище
	objectKey := fmt.Sprintf("scans/%d/%s/%s.csv", companyID, quarter, uuid.New().String())
	if err = s.fileStorage.UploadFile(ctx, objectKey, bytes.NewReader(raw), int64(len(raw)), "text/csv"); err != nil {
		// Данные уже в БД; отсутствие архива не отменяет загрузку
		log.Printf("[UploadService] Предупреждение: не удалось заархивировать файл '%s': %v", objectKey, err)
	}

	log.Printf("[UploadService] Загрузка обработана: компания %d, квартал '%s', строк %d (новых %d, повторных %d)",
		companyID, quarter, summary.Rows, summary.Created, summary.Updated)
	return summary, nil
}

// ensureCompany находит компанию по имени или создает новую.
func (s *uploadService) ensureCompany(ctx context.Context, name string) (int64, error) {
	company, err := s.companyRepo.GetCompanyByName(ctx, name)
	if err == nil {
		return company.ID, nil
	}
	if !errors.Is(err, repository.ErrCompanyNotFound) {
		log.Printf("[UploadService] Ошибка поиска компании '%s': %v", name, err)
		return 0, errors.New("внутренняя ошибка сервера при поиске компании")
	}

	companyID, err := s.companyRepo.CreateCompany(ctx, name)
	if err != nil {
		log.Printf("[UploadService] Ошибка создания компании '%s': %v", name, err)
		return 0, errors.New("внутренняя ошибка сервера при создании компании")
	}
	return companyID, nil
}

// parseScanCSV разбирает CSV со строками скана. Первая строка - заголовок;
// имена колонок сопоставляются без учета регистра, пробелов и подчеркиваний.
func parseScanCSV(r io.Reader) ([]models.Vulnerability, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, errors.New("пустой или нечитаемый CSV")
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[normalizeHeader(name)] = i
	}
	if _, ok := index["title"]; !ok {
		return nil, errors.New("в CSV отсутствует обязательная колонка title")
	}

	field := func(row []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var records []models.Vulnerability
	for {
		row, readErr := reader.Read()
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return nil, fmt.Errorf("ошибка разбора CSV: %w", readErr)
		}

		title := field(row, "title")
		if title == "" {
			// Строки без title пропускаем
			continue
		}

		port, _ := strconv.Atoi(field(row, "port"))
		age, _ := strconv.Atoi(field(row, "age"))

		records = append(records, models.Vulnerability{
			Title:       title,
			AssetIP:     field(row, "assetip"),
			Port:        port,
			RiskLevel:   field(row, "risklevel"),
			Description: field(row, "description"),
			Protocol:    field(row, "protocol"),
			CVEIDs:      splitCVEIDs(field(row, "cveids")),
			Impact:      field(row, "impact"),
			Age:         age,
		})
	}

	return records, nil
}

// normalizeHeader приводит имя колонки к канонической форме.
func normalizeHeader(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, "_", "")
	name = strings.ReplaceAll(name, " ", "")
	return name
}

// splitCVEIDs разбирает список CVE, разделенных ';' или ','.
func splitCVEIDs(raw string) []string {
	if raw == "" {
		return []string{}
	}
	raw = strings.ReplaceAll(raw, ";", ",")
	parts := strings.Split(raw, ",")
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			ids = append(ids, p)
		}
	}
	return ids
}
