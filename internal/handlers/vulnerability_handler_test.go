package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vulntracker/server/internal/handlers"
	"github.com/vulntracker/server/internal/middleware"
	"github.com/vulntracker/server/internal/models"
	"github.com/vulntracker/server/internal/repository"
	"github.com/vulntracker/server/internal/token"
)

// MockVulnerabilityService - мок сервиса уязвимостей.
type MockVulnerabilityService struct {
	mock.Mock
}

func (m *MockVulnerabilityService) Query(
	ctx context.Context,
	filter repository.VulnerabilityFilter,
	page int,
) (*models.VulnerabilityPage, error) {
	args := m.Called(ctx, filter, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.VulnerabilityPage), args.Error(1) //nolint:errcheck // Допустимо для моков
}

func (m *MockVulnerabilityService) ListQuarters(ctx context.Context, companyID int64) ([]string, error) {
	args := m.Called(ctx, companyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1) //nolint:errcheck // Допустимо для моков
}

// claimsFor собирает claims для подстановки в контекст запроса.
func claimsFor(userID int64, companyID *int64, role string) *token.Claims {
	return &token.Claims{UserID: userID, CompanyID: companyID, Role: role}
}

// serveWithClaims выполняет запрос через роутер с claims в контексте.
func serveWithClaims(
	handlerFunc http.HandlerFunc,
	pattern, target string,
	claims *token.Claims,
) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	ctx := context.WithValue(req.Context(), middleware.ClaimsKey, claims)
	req = req.WithContext(ctx)

	rr := httptest.NewRecorder()
	router := chi.NewRouter()
	router.Get(pattern, handlerFunc)
	router.ServeHTTP(rr, req)
	return rr
}

func TestVulnerabilityHandler_GetVulnerabilities(t *testing.T) {
	ownCompany := int64(1)
	otherCompany := int64(2)
	emptyPage := &models.VulnerabilityPage{Items: []models.Vulnerability{}, PageNumber: 1, TotalPages: 0}

	t.Run("Не-администратор всегда привязан к своей компании", func(t *testing.T) {
		mockService := new(MockVulnerabilityService)
		handler := handlers.NewVulnerabilityHandler(mockService)

		// Параметр companyId=2 игнорируется: фильтр уходит с компанией из claims
		mockService.On("Query", mock.Anything,
			repository.VulnerabilityFilter{CompanyID: ownCompany}, 1).Return(emptyPage, nil)

		rr := serveWithClaims(handler.GetVulnerabilities,
			"/api/vulnerabilities", "/api/vulnerabilities?companyId=2",
			claimsFor(10, &ownCompany, models.RoleUser))

		assert.Equal(t, http.StatusOK, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("Администратор может выбрать компанию", func(t *testing.T) {
		mockService := new(MockVulnerabilityService)
		handler := handlers.NewVulnerabilityHandler(mockService)

		mockService.On("Query", mock.Anything,
			repository.VulnerabilityFilter{CompanyID: otherCompany}, 1).Return(emptyPage, nil)

		rr := serveWithClaims(handler.GetVulnerabilities,
			"/api/vulnerabilities", "/api/vulnerabilities?companyId=2",
			claimsFor(1, nil, models.RoleAdmin))

		assert.Equal(t, http.StatusOK, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("Фильтры запроса передаются в сервис", func(t *testing.T) {
		mockService := new(MockVulnerabilityService)
		handler := handlers.NewVulnerabilityHandler(mockService)

		resolved := false
		expected := repository.VulnerabilityFilter{
			CompanyID:    ownCompany,
			Search:       "ssh",
			IsResolved:   &resolved,
			CarryForward: true,
		}
		mockService.On("Query", mock.Anything, mock.MatchedBy(func(f repository.VulnerabilityFilter) bool {
			return f.CompanyID == expected.CompanyID &&
				f.Search == expected.Search &&
				f.IsResolved != nil && !*f.IsResolved &&
				f.CarryForward
		}), 3).Return(emptyPage, nil)

		rr := serveWithClaims(handler.GetVulnerabilities,
			"/api/vulnerabilities",
			"/api/vulnerabilities?page=3&search=ssh&isResolved=false&carryForward=true",
			claimsFor(10, &ownCompany, models.RoleUser))

		assert.Equal(t, http.StatusOK, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("Пользователь без компании получает 400", func(t *testing.T) {
		mockService := new(MockVulnerabilityService)
		handler := handlers.NewVulnerabilityHandler(mockService)

		rr := serveWithClaims(handler.GetVulnerabilities,
			"/api/vulnerabilities", "/api/vulnerabilities",
			claimsFor(10, nil, models.RoleUser))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockService.AssertNotCalled(t, "Query")
	})

	t.Run("Неверное значение isResolved - 400", func(t *testing.T) {
		mockService := new(MockVulnerabilityService)
		handler := handlers.NewVulnerabilityHandler(mockService)

		rr := serveWithClaims(handler.GetVulnerabilities,
			"/api/vulnerabilities", "/api/vulnerabilities?isResolved=banana",
			claimsFor(10, &ownCompany, models.RoleUser))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockService.AssertNotCalled(t, "Query")
	})
}

func TestVulnerabilityHandler_GetQuarters(t *testing.T) {
	ownCompany := int64(1)

	t.Run("Каталог кварталов компании сессии", func(t *testing.T) {
		mockService := new(MockVulnerabilityService)
		handler := handlers.NewVulnerabilityHandler(mockService)

		mockService.On("ListQuarters", mock.Anything, ownCompany).
			Return([]string{"Q1 2025", "Q2 2025"}, nil)

		rr := serveWithClaims(handler.GetQuarters,
			"/api/quarters", "/api/quarters",
			claimsFor(10, &ownCompany, models.RoleUser))

		require.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `["Q1 2025","Q2 2025"]`, rr.Body.String())
		mockService.AssertExpectations(t)
	})

	t.Run("Без компании - 400", func(t *testing.T) {
		mockService := new(MockVulnerabilityService)
		handler := handlers.NewVulnerabilityHandler(mockService)

		rr := serveWithClaims(handler.GetQuarters,
			"/api/quarters", "/api/quarters",
			claimsFor(10, nil, models.RoleUser))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockService.AssertNotCalled(t, "ListQuarters")
	})
}
