package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/vulntracker/server/internal/models"
	"github.com/vulntracker/server/internal/repository"
	"github.com/vulntracker/server/internal/services"
	"github.com/vulntracker/server/internal/token"
)

func TestAuthService_Login(t *testing.T) {
	password := "correct-password"
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	require.NoError(t, err)

	companyID := int64(5)
	testUser := &models.User{
		ID:           7,
		Name:         "Анна",
		Email:        "anna@example.com",
		Role:         "User",
		CompanyID:    &companyID,
		PasswordHash: string(hash),
	}

	t.Run("Успешный вход", func(t *testing.T) {
		mockRepo := new(MockUserRepository)
		mockRepo.On("GetUserByEmail", context.Background(), testUser.Email).Return(testUser, nil)

		service := services.NewAuthService(mockRepo)
		signed, loginErr := service.Login(context.Background(), testUser.Email, password)

		require.NoError(t, loginErr)
		require.NotEmpty(t, signed)

		// Токен должен содержать факты о тенанте и роли
		claims, parseErr := token.Parse(signed)
		require.NoError(t, parseErr)
		assert.Equal(t, testUser.ID, claims.UserID)
		require.NotNil(t, claims.CompanyID)
		assert.Equal(t, companyID, *claims.CompanyID)
		assert.Equal(t, "User", claims.Role)
		assert.Equal(t, testUser.Email, claims.Email)

		mockRepo.AssertExpectations(t)
	})

	t.Run("Неверный пароль", func(t *testing.T) {
		mockRepo := new(MockUserRepository)
		mockRepo.On("GetUserByEmail", context.Background(), testUser.Email).Return(testUser, nil)

		service := services.NewAuthService(mockRepo)
		signed, loginErr := service.Login(context.Background(), testUser.Email, "wrong-password")

		assert.Empty(t, signed)
		assert.ErrorIs(t, loginErr, services.ErrInvalidCredentials)
		mockRepo.AssertExpectations(t)
	})

	t.Run("Пользователь не существует - та же ошибка, что и при неверном пароле", func(t *testing.T) {
		mockRepo := new(MockUserRepository)
		mockRepo.On("GetUserByEmail", context.Background(), "ghost@example.com").
			Return(nil, repository.ErrUserNotFound)

		service := services.NewAuthService(mockRepo)
		signed, loginErr := service.Login(context.Background(), "ghost@example.com", password)

		assert.Empty(t, signed)
		assert.ErrorIs(t, loginErr, services.ErrInvalidCredentials)
		mockRepo.AssertExpectations(t)
	})

	t.Run("Ошибка репозитория", func(t *testing.T) {
		mockRepo := new(MockUserRepository)
		mockRepo.On("GetUserByEmail", context.Background(), testUser.Email).
			Return(nil, errors.New("database error"))

		service := services.NewAuthService(mockRepo)
		signed, loginErr := service.Login(context.Background(), testUser.Email, password)

		assert.Empty(t, signed)
		require.Error(t, loginErr)
		assert.NotErrorIs(t, loginErr, services.ErrInvalidCredentials)
		mockRepo.AssertExpectations(t)
	})
}
