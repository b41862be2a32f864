package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/vulntracker/server/internal/middleware"
	"github.com/vulntracker/server/internal/models"
	"github.com/vulntracker/server/internal/repository"
	"github.com/vulntracker/server/internal/services"
	"github.com/vulntracker/server/internal/token"
)

// VulnerabilityHandler обрабатывает HTTP-запросы выборки уязвимостей
// и каталога кварталов.
type VulnerabilityHandler struct {
	vulnService services.VulnerabilityService
}

// NewVulnerabilityHandler создает новый экземпляр VulnerabilityHandler.
func NewVulnerabilityHandler(vs services.VulnerabilityService) *VulnerabilityHandler {
	return &VulnerabilityHandler{vulnService: vs}
}

// resolveCompanyID определяет тенанта запроса. Не-администраторы всегда
// привязаны к компании из собственных claims: параметр companyId для них
// игнорируется, изоляция тенантов не обходится. Администраторы могут
// указать любую компанию.
func resolveCompanyID(claims *token.Claims, r *http.Request) (int64, bool) {
	if claims.Role == models.RoleAdmin {
		if raw := r.URL.Query().Get("companyId"); raw != "" {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err == nil && id > 0 {
				return id, true
			}
			return 0, false
		}
	}
	if claims.CompanyID == nil {
		return 0, false
	}
	return *claims.CompanyID, true
}

// GetVulnerabilities обрабатывает GET запрос постраничной выборки уязвимостей.
// Параметры: page, search, quarter, isResolved, carryForward, companyId.
func (h *VulnerabilityHandler) GetVulnerabilities(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaimsFromContext(r.Context())
	if !ok {
		log.Printf("[VulnHandler:GetVulnerabilities] Не удалось получить claims из контекста")
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	companyID, ok := resolveCompanyID(claims, r)
	if !ok {
		log.Printf("[VulnHandler:GetVulnerabilities] Не удалось определить компанию для пользователя %d", claims.UserID)
		http.Error(w, "Не указана компания", http.StatusBadRequest)
		return
	}

	query := r.URL.Query()

	page, _ := strconv.Atoi(query.Get("page"))
	if page < 1 {
		page = 1
	}

	filter := repository.VulnerabilityFilter{
		CompanyID: companyID,
		Search:    query.Get("search"),
		Quarter:   query.Get("quarter"),
	}
	if raw := query.Get("isResolved"); raw != "" {
		resolved, err := strconv.ParseBool(raw)
		if err != nil {
			http.Error(w, "Неверное значение isResolved", http.StatusBadRequest)
			return
		}
		filter.IsResolved = &resolved
	}
	if raw := query.Get("carryForward"); raw != "" {
		carryForward, err := strconv.ParseBool(raw)
		if err != nil {
			http.Error(w, "Неверное значение carryForward", http.StatusBadRequest)
			return
		}
		filter.CarryForward = carryForward
	}

	log.Printf("[VulnHandler:GetVulnerabilities] Запрос от пользователя %d: компания %d, страница %d",
		claims.UserID, companyID, page)

	result, err := h.vulnService.Query(r.Context(), filter, page)
	if err != nil {
		log.Printf("[VulnHandler:GetVulnerabilities] Внутренняя ошибка выборки для компании %d: %v", companyID, err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err = json.NewEncoder(w).Encode(result); err != nil {
		log.Printf("[VulnHandler:GetVulnerabilities] Ошибка кодирования ответа: %v", err)
	}
}

// GetQuarters обрабатывает GET запрос каталога кварталов компании.
func (h *VulnerabilityHandler) GetQuarters(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaimsFromContext(r.Context())
	if !ok {
		log.Printf("[VulnHandler:GetQuarters] Не удалось получить claims из контекста")
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	companyID, ok := resolveCompanyID(claims, r)
	if !ok {
		log.Printf("[VulnHandler:GetQuarters] Не удалось определить компанию для пользователя %d", claims.UserID)
		http.Error(w, "Не указана компания", http.StatusBadRequest)
		return
	}

	labels, err := h.vulnService.ListQuarters(r.Context(), companyID)
	if err != nil {
		log.Printf("[VulnHandler:GetQuarters] Внутренняя ошибка для компании %d: %v", companyID, err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err = json.NewEncoder(w).Encode(labels); err != nil {
		log.Printf("[VulnHandler:GetQuarters] Ошибка кодирования ответа: %v", err)
	}
}
