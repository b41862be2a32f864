package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"golang.org/x/crypto/bcrypt"

	"github.com/vulntracker/server/internal/models"
	"github.com/vulntracker/server/internal/repository"
)

// UserService определяет интерфейс административного сервиса учетных записей.
// Проверка роли Admin выполняется на границе HTTP (middleware.RequireAdmin).
type UserService interface {
	ListUsers(ctx context.Context) ([]models.User, error)
	CreateUser(ctx context.Context, req models.CreateUserRequest) (*models.User, error)
	// UpdateUser обновляет пользователя. Пустой или отсутствующий пароль
	// не изменяет существующие учетные данные.
	UpdateUser(ctx context.Context, id int64, req models.UpdateUserRequest) (*models.User, error)
	DeleteUser(ctx context.Context, id int64) error
	ListCompanies(ctx context.Context) ([]models.Company, error)
	GetCompany(ctx context.Context, id int64) (*models.Company, error)
}

// Убедимся, что userService удовлетворяет интерфейсу.
var _ UserService = (*userService)(nil)

type userService struct {
	userRepo    repository.UserRepository
	companyRepo repository.CompanyRepository
}

// NewUserService создает новый экземпляр административного сервиса.
func NewUserService(userRepo repository.UserRepository, companyRepo repository.CompanyRepository) UserService {
	return &userService{userRepo: userRepo, companyRepo: companyRepo}
}

// ListUsers возвращает всех пользователей с именами компаний.
func (s *userService) ListUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.userRepo.ListUsers(ctx)
	if err != nil {
		log.Printf("[UserService] Ошибка получения списка пользователей: %v", err)
		return nil, errors.New("внутренняя ошибка сервера при получении списка пользователей")
	}
	return users, nil
}

// CreateUser создает нового пользователя. Пароль передается дальше только
// в виде bcrypt-хеша.
func (s *userService) CreateUser(ctx context.Context, req models.CreateUserRequest) (*models.User, error) {
	if req.Name == "" || req.Email == "" || req.Password == "" {
		return nil, fmt.Errorf("%w: имя, email и пароль обязательны", ErrValidation)
	}
	if req.Role != models.RoleUser && req.Role != models.RoleAdmin {
		return nil, fmt.Errorf("%w: неизвестная роль '%s'", ErrValidation, req.Role)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("[UserService] Ошибка хеширования пароля для '%s': %v", req.Email, err)
		return nil, errors.New("внутренняя ошибка сервера при хешировании пароля")
	}

	user := &models.User{
		Name:         req.Name,
		Email:        req.Email,
		Role:         req.Role,
		CompanyID:    req.CompanyID,
		PasswordHash: string(hashedPassword),
	}

	userID, err := s.userRepo.CreateUser(ctx, user)
	if err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, fmt.Errorf("%w: email уже занят", ErrValidation)
		}
		log.Printf("[UserService] Непредвиденная ошибка репозитория при создании '%s': %v", req.Email, err)
		return nil, errors.New("внутренняя ошибка сервера при создании пользователя")
	}

	created, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		log.Printf("[UserService] Ошибка чтения созданного пользователя ID %d: %v", userID, err)
		return nil, errors.New("внутренняя ошибка сервера при чтении пользователя")
	}

	log.Printf("[UserService] Пользователь '%s' (ID %d) успешно создан", req.Email, userID)
	return created, nil
}

// UpdateUser обновляет поля пользователя. Пустой пароль в запросе означает
// "учетные данные не менять": хеш в этом случае вообще не попадает в UPDATE.
func (s *userService) UpdateUser(
	ctx context.Context,
	id int64,
	req models.UpdateUserRequest,
) (*models.User, error) {
	if req.Name == "" || req.Email == "" {
		return nil, fmt.Errorf("%w: имя и email обязательны", ErrValidation)
	}
	if req.Role != models.RoleUser && req.Role != models.RoleAdmin {
		return nil, fmt.Errorf("%w: неизвестная роль '%s'", ErrValidation, req.Role)
	}

	existing, err := s.userRepo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		log.Printf("[UserService] Ошибка поиска пользователя ID %d: %v", id, err)
		return nil, errors.New("внутренняя ошибка сервера при поиске пользователя")
	}

	updated := &models.User{
		Name:      req.Name,
		Email:     req.Email,
		Role:      req.Role,
		CompanyID: req.CompanyID,
	}

	// Пароль хешируем только если он явно передан и непуст
	var passwordHash *string
	if req.Password != nil && *req.Password != "" {
		hashed, hashErr := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if hashErr != nil {
			log.Printf("[UserService] Ошибка хеширования пароля для ID %d: %v", id, hashErr)
			return nil, errors.New("внутренняя ошибка сервера при хешировании пароля")
		}
		hashedStr := string(hashed)
		passwordHash = &hashedStr
	}

	if err = s.userRepo.UpdateUser(ctx, existing.ID, updated, passwordHash); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, fmt.Errorf("%w: email уже занят", ErrValidation)
		}
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		log.Printf("[UserService] Ошибка обновления пользователя ID %d: %v", id, err)
		return nil, errors.New("внутренняя ошибка сервера при обновлении пользователя")
	}

	fresh, err := s.userRepo.GetUserByID(ctx, id)
	if err != nil {
		log.Printf("[UserService] Ошибка чтения обновленного пользователя ID %d: %v", id, err)
		return nil, errors.New("внутренняя ошибка сервера при чтении пользователя")
	}

	log.Printf("[UserService] Пользователь ID %d успешно обновлен", id)
	return fresh, nil
}

// DeleteUser удаляет пользователя. Идемпотентность не гарантируется:
// повторное удаление возвращает ErrUserNotFound.
func (s *userService) DeleteUser(ctx context.Context, id int64) error {
	if err := s.userRepo.DeleteUser(ctx, id); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		log.Printf("[UserService] Ошибка удаления пользователя ID %d: %v", id, err)
		return errors.New("внутренняя ошибка сервера при удалении пользователя")
	}
	return nil
}

// ListCompanies возвращает все компании.
func (s *userService) ListCompanies(ctx context.Context) ([]models.Company, error) {
	companies, err := s.companyRepo.ListCompanies(ctx)
	if err != nil {
		log.Printf("[UserService] Ошибка получения списка компаний: %v", err)
		return nil, errors.New("внутренняя ошибка сервера при получении списка компаний")
	}
	return companies, nil
}

// GetCompany возвращает компанию по ID.
func (s *userService) GetCompany(ctx context.Context, id int64) (*models.Company, error) {
	company, err := s.companyRepo.GetCompanyByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrCompanyNotFound) {
			return nil, ErrCompanyNotFound
		}
		log.Printf("[UserService] Ошибка поиска компании ID %d: %v", id, err)
		return nil, errors.New("внутренняя ошибка сервера при поиске компании")
	}
	return company, nil
}

// Кастомные ошибки сервиса.
var (
	ErrValidation      = errors.New("ошибка валидации")
	ErrUserNotFound    = errors.New("пользователь не найден")
	ErrCompanyNotFound = errors.New("компания не найдена")
)
