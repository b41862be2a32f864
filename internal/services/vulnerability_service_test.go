package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vulntracker/server/internal/models"
	"github.com/vulntracker/server/internal/repository"
	"github.com/vulntracker/server/internal/services"
)

func TestVulnerabilityService_Query(t *testing.T) {
	filter := repository.VulnerabilityFilter{CompanyID: 1}

	t.Run("Первая страница", func(t *testing.T) {
		mockVulns := new(MockVulnerabilityRepository)
		service := services.NewVulnerabilityService(mockVulns, new(MockQuarterRepository))

		items := make([]models.Vulnerability, 10)
		mockVulns.On("CountVulnerabilities", context.Background(), filter).Return(25, nil)
		mockVulns.On("ListVulnerabilities", context.Background(), filter, 10, 0).Return(items, nil)

		page, err := service.Query(context.Background(), filter, 1)

		require.NoError(t, err)
		assert.Equal(t, 1, page.PageNumber)
		assert.Equal(t, 3, page.TotalPages) // 25 строк / 10 на страницу
		assert.Len(t, page.Items, 10)
		mockVulns.AssertExpectations(t)
	})

	t.Run("Последняя неполная страница", func(t *testing.T) {
		mockVulns := new(MockVulnerabilityRepository)
		service := services.NewVulnerabilityService(mockVulns, new(MockQuarterRepository))

		items := make([]models.Vulnerability, 5)
		mockVulns.On("CountVulnerabilities", context.Background(), filter).Return(25, nil)
		mockVulns.On("ListVulnerabilities", context.Background(), filter, 10, 20).Return(items, nil)

		page, err := service.Query(context.Background(), filter, 3)

		require.NoError(t, err)
		assert.Equal(t, 3, page.PageNumber)
		assert.Len(t, page.Items, 5)
		mockVulns.AssertExpectations(t)
	})

	t.Run("Страница меньше 1 трактуется как первая", func(t *testing.T) {
		mockVulns := new(MockVulnerabilityRepository)
		service := services.NewVulnerabilityService(mockVulns, new(MockQuarterRepository))

		mockVulns.On("CountVulnerabilities", context.Background(), filter).Return(25, nil)
		mockVulns.On("ListVulnerabilities", context.Background(), filter, 10, 0).
			Return(make([]models.Vulnerability, 10), nil)

		page, err := service.Query(context.Background(), filter, -3)

		require.NoError(t, err)
		assert.Equal(t, 1, page.PageNumber)
		mockVulns.AssertExpectations(t)
	})

	t.Run("Страница за пределами - пустой список без ошибки", func(t *testing.T) {
		mockVulns := new(MockVulnerabilityRepository)
		service := services.NewVulnerabilityService(mockVulns, new(MockQuarterRepository))

		mockVulns.On("CountVulnerabilities", context.Background(), filter).Return(25, nil)
		// ListVulnerabilities не вызывается вовсе

		page, err := service.Query(context.Background(), filter, 9)

		require.NoError(t, err)
		assert.Equal(t, 9, page.PageNumber)
		assert.Equal(t, 3, page.TotalPages)
		assert.Empty(t, page.Items)
		assert.NotNil(t, page.Items)
		mockVulns.AssertExpectations(t)
	})

	t.Run("Пустое множество результатов", func(t *testing.T) {
		mockVulns := new(MockVulnerabilityRepository)
		service := services.NewVulnerabilityService(mockVulns, new(MockQuarterRepository))

		mockVulns.On("CountVulnerabilities", context.Background(), filter).Return(0, nil)

		page, err := service.Query(context.Background(), filter, 1)

		require.NoError(t, err)
		assert.Equal(t, 0, page.TotalPages)
		assert.Empty(t, page.Items)
		mockVulns.AssertExpectations(t)
	})

	t.Run("Компания обязательна", func(t *testing.T) {
		service := services.NewVulnerabilityService(new(MockVulnerabilityRepository), new(MockQuarterRepository))

		page, err := service.Query(context.Background(), repository.VulnerabilityFilter{}, 1)

		assert.Nil(t, page)
		assert.ErrorIs(t, err, services.ErrCompanyRequired)
	})

	t.Run("Ошибка подсчета", func(t *testing.T) {
		mockVulns := new(MockVulnerabilityRepository)
		service := services.NewVulnerabilityService(mockVulns, new(MockQuarterRepository))

		mockVulns.On("CountVulnerabilities", context.Background(), filter).
			Return(0, errors.New("database error"))

		page, err := service.Query(context.Background(), filter, 1)

		assert.Nil(t, page)
		require.Error(t, err)
		mockVulns.AssertExpectations(t)
	})
}

func TestVulnerabilityService_ListQuarters(t *testing.T) {
	t.Run("Каталог в порядке обнаружения", func(t *testing.T) {
		mockQuarters := new(MockQuarterRepository)
		service := services.NewVulnerabilityService(new(MockVulnerabilityRepository), mockQuarters)

		mockQuarters.On("ListLabelsByCompany", context.Background(), int64(1)).
			Return([]string{"Q3 2024", "Q1 2025"}, nil)

		labels, err := service.ListQuarters(context.Background(), 1)

		require.NoError(t, err)
		assert.Equal(t, []string{"Q3 2024", "Q1 2025"}, labels)
		mockQuarters.AssertExpectations(t)
	})

	t.Run("Компания обязательна", func(t *testing.T) {
		service := services.NewVulnerabilityService(new(MockVulnerabilityRepository), new(MockQuarterRepository))

		labels, err := service.ListQuarters(context.Background(), 0)

		assert.Nil(t, labels)
		assert.ErrorIs(t, err, services.ErrCompanyRequired)
	})
}
