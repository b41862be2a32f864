package services_test

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"github.com/vulntracker/server/internal/models"
	"github.com/vulntracker/server/internal/repository"
)

// MockUserRepository - мок репозитория пользователей.
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) CreateUser(ctx context.Context, user *models.User) (int64, error) {
	args := m.Called(ctx, user)
	return args.Get(0).(int64), args.Error(1) //nolint:errcheck // Допустимо для моков
}

func (m *MockUserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1) //nolint:errcheck // Допустимо для моков
}

func (m *MockUserRepository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1) //nolint:errcheck // Допустимо для моков
}

func (m *MockUserRepository) ListUsers(ctx context.Context) ([]models.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1) //nolint:errcheck // Допустимо для моков
}

func (m *MockUserRepository) UpdateUser(
	ctx context.Context,
	id int64,
	user *models.User,
	passwordHash *string,
) error {
	args := m.Called(ctx, id, user, passwordHash)
	return args.Error(0)
}

func (m *MockUserRepository) DeleteUser(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockCompanyRepository - мок репозитория компаний.
type MockCompanyRepository struct {
	mock.Mock
}

func (m *MockCompanyRepository) ListCompanies(ctx context.Context) ([]models.Company, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Company), args.Error(1) //nolint:errcheck // Допустимо для моков
}

func (m *MockCompanyRepository) GetCompanyByID(ctx context.Context, id int64) (*models.Company, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Company), args.Error(1) //nolint:errcheck // Допустимо для моков
}

func (m *MockCompanyRepository) GetCompanyByName(ctx context.Context, name string) (*models.Company, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Company), args.Error(1) //nolint:errcheck // Допустимо для моков
}

func (m *MockCompanyRepository) CreateCompany(ctx context.Context, name string) (int64, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(int64), args.Error(1) //nolint:errcheck // Допустимо для моков
}

// MockQuarterRepository - мок репозитория кварталов.
type MockQuarterRepository struct {
	mock.Mock
}

func (m *MockQuarterRepository) ListLabelsByCompany(ctx context.Context, companyID int64) ([]string, error) {
	args := m.Called(ctx, companyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1) //nolint:errcheck // Допустимо для моков
}

func (m *MockQuarterRepository) EnsureQuarter(ctx context.Context, companyID int64, label string) error {
	args := m.Called(ctx, companyID, label)
	return args.Error(0)
}

// MockVulnerabilityRepository - мок репозитория уязвимостей.
type MockVulnerabilityRepository struct {
	mock.Mock
}

func (m *MockVulnerabilityRepository) ListVulnerabilities(
	ctx context.Context,
	filter repository.VulnerabilityFilter,
	limit, offset int,
) ([]models.Vulnerability, error) {
	args := m.Called(ctx, filter, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Vulnerability), args.Error(1) //nolint:errcheck // Допустимо для моков
}

func (m *MockVulnerabilityRepository) CountVulnerabilities(
	ctx context.Context,
	filter repository.VulnerabilityFilter,
) (int, error) {
	args := m.Called(ctx, filter)
	return args.Int(0), args.Error(1)
}

func (m *MockVulnerabilityRepository) GetByIdentity(
	ctx context.Context,
	companyID int64,
	title, assetIP string,
	port int,
) (*models.Vulnerability, error) {
	args := m.Called(ctx, companyID, title, assetIP, port)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Vulnerability), args.Error(1) //nolint:errcheck // Допустимо для моков
}

func (m *MockVulnerabilityRepository) CreateVulnerability(
	ctx context.Context,
	v *models.Vulnerability,
) (int64, error) {
	args := m.Called(ctx, v)
	return args.Get(0).(int64), args.Error(1) //nolint:errcheck // Допустимо для моков
}

func (m *MockVulnerabilityRepository) AppendQuarter(ctx context.Context, id int64, label string) error {
	args := m.Called(ctx, id, label)
	return args.Error(0)
}

// MockFileStorage - мок объектного хранилища.
type MockFileStorage struct {
	mock.Mock
}

func (m *MockFileStorage) UploadFile(
	ctx context.Context,
	objectKey string,
	reader io.Reader,
	size int64,
	contentType string,
) error {
	args := m.Called(ctx, objectKey, reader, size, contentType)
	return args.Error(0)
}

func (m *MockFileStorage) DownloadFile(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	args := m.Called(ctx, objectKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1) //nolint:errcheck // Допустимо для моков
}
