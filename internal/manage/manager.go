// Package manage реализует клиентский сервис администрирования
// учетных записей и компаний, защищенный ролью Admin из claims сессии.
package manage

import (
	"context"
	"errors"
	"log"

	"github.com/vulntracker/server/internal/models"
	"github.com/vulntracker/server/internal/session"
)

// Кастомные ошибки пакета.
var (
	// ErrUnauthorized: сессия отсутствует или истекла.
	ErrUnauthorized = errors.New("требуется аутентификация")
	// ErrForbidden: роль сессии не Admin; запрос к API не выполняется.
	ErrForbidden = errors.New("доступ запрещен")
	// ErrValidation: обязательные поля не заполнены.
	ErrValidation = errors.New("ошибка валидации")
)

// Directory — коллаборатор администрирования (подмножество api.Client).
type Directory interface {
	ListUsers(ctx context.Context) ([]models.User, error)
	CreateUser(ctx context.Context, req models.CreateUserRequest) (*models.User, error)
	UpdateUser(ctx context.Context, id int64, req models.UpdateUserRequest) (*models.User, error)
	DeleteUser(ctx context.Context, id int64) error
	ListCompanies(ctx context.Context) ([]models.Company, error)
}

// Manager выполняет административные операции от имени одной сессии.
// Все мутации завершаются повторной выборкой списка пользователей:
// локальное состояние никогда не патчится оптимистично, чтобы не
// расходиться с сервером.
type Manager struct {
	dir  Directory
	sess *session.Session
}

// NewManager создает Manager для указанной сессии.
func NewManager(dir Directory, sess *session.Session) *Manager {
	return &Manager{dir: dir, sess: sess}
}

// guard проверяет, что сессия жива и имеет роль Admin.
// При нарушении роли запрос к API не выполняется вовсе.
func (m *Manager) guard() error {
	if m.sess == nil || m.sess.Claims == nil || m.sess.Expired() {
		return ErrUnauthorized
	}
	if !m.sess.IsAdmin() {
		log.Printf("[Manage] Пользователь %d с ролью %s пытался выполнить административную операцию",
			m.sess.Claims.UserID, m.sess.Claims.Role)
		return ErrForbidden
	}
	return nil
}

// ListUsers возвращает список пользователей с именами компаний.
func (m *Manager) ListUsers(ctx context.Context) ([]models.User, error) {
	if err := m.guard(); err != nil {
		return nil, err
	}
	return m.dir.ListUsers(ctx)
}

// ListCompanies возвращает список компаний.
func (m *Manager) ListCompanies(ctx context.Context) ([]models.Company, error) {
	if err := m.guard(); err != nil {
		return nil, err
	}
	return m.dir.ListCompanies(ctx)
}

// CreateUser создает пользователя и возвращает свежий список пользователей.
func (m *Manager) CreateUser(ctx context.Context, req models.CreateUserRequest) ([]models.User, error) {
	if err := m.guard(); err != nil {
		return nil, err
	}
	if req.Name == "" || req.Email == "" || req.Password == "" {
		return nil, errors.New(ErrValidation.Error() + ": имя, email и пароль обязательны")
	}

	if _, err := m.dir.CreateUser(ctx, req); err != nil {
		return nil, err
	}

	return m.dir.ListUsers(ctx)
}

// UpdateUser обновляет пользователя и возвращает свежий список.
//
// Пустой пароль означает "учетные данные не менять" и полностью
// исключается из запроса. Если обновлен пользователь самой сессии,
// вторым значением возвращается true: запись прошла успешно, но
// claims сессии устарели (роль/компания могли измениться), и
// вызывающий обязан очистить слот токена и переаутентифицироваться.
func (m *Manager) UpdateUser(
	ctx context.Context,
	id int64,
	req models.UpdateUserRequest,
) ([]models.User, bool, error) {
	if err := m.guard(); err != nil {
		return nil, false, err
	}
	if req.Name == "" || req.Email == "" {
		return nil, false, errors.New(ErrValidation.Error() + ": имя и email обязательны")
	}

	// Пустой пароль никогда не должен перезаписывать учетные данные
	if req.Password != nil && *req.Password == "" {
		req.Password = nil
	}

	if _, err := m.dir.UpdateUser(ctx, id, req); err != nil {
		return nil, false, err
	}

	// Самообновление: мутация успешна, но локальная сессия больше не отражает
	// актуальные факты - сигнализируем о необходимости повторного входа
	if m.sess.Claims.UserID == id {
		log.Printf("[Manage] Пользователь %d обновил собственную учетную запись: требуется повторный вход", id)
		return nil, true, nil
	}

	users, err := m.dir.ListUsers(ctx)
	if err != nil {
		return nil, false, err
	}
	return users, false, nil
}

// DeleteUser удаляет пользователя и возвращает свежий список.
// Повторное удаление того же ID вернет ошибку "не найден" от коллаборатора.
func (m *Manager) DeleteUser(ctx context.Context, id int64) ([]models.User, error) {
	if err := m.guard(); err != nil {
		return nil, err
	}

	if err := m.dir.DeleteUser(ctx, id); err != nil {
		return nil, err
	}

	return m.dir.ListUsers(ctx)
}
