package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/vulntracker/server/internal/models"
	"github.com/vulntracker/server/internal/services"
)

// UserHandler обрабатывает HTTP-запросы администрирования учетных записей
// и компаний. Мутирующие маршруты защищены middleware.RequireAdmin.
type UserHandler struct {
	userService services.UserService
}

// NewUserHandler создает новый экземпляр UserHandler.
func NewUserHandler(us services.UserService) *UserHandler {
	return &UserHandler{userService: us}
}

// ListUsers обрабатывает GET запрос списка пользователей.
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.ListUsers(r.Context())
	if err != nil {
		log.Printf("[UserHandler:ListUsers] Внутренняя ошибка: %v", err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err = json.NewEncoder(w).Encode(users); err != nil {
		log.Printf("[UserHandler:ListUsers] Ошибка кодирования ответа: %v", err)
	}
}

// CreateUser обрабатывает POST запрос на создание пользователя.
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req models.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[UserHandler:CreateUser] Ошибка декодирования запроса: %v", err)
		http.Error(w, "Неверный формат запроса", http.StatusBadRequest)
		return
	}

	user, err := h.userService.CreateUser(r.Context(), req)
	if err != nil {
		if errors.Is(err, services.ErrValidation) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Printf("[UserHandler:CreateUser] Внутренняя ошибка при создании '%s': %v", req.Email, err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err = json.NewEncoder(w).Encode(user); err != nil {
		log.Printf("[UserHandler:CreateUser] Ошибка кодирования ответа: %v", err)
	}
}

// UpdateUser обрабатывает PUT запрос на обновление пользователя.
// Пустой или отсутствующий пароль в теле не изменяет учетные данные.
func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "Неверный ID пользователя", http.StatusBadRequest)
		return
	}

	var req models.UpdateUserRequest
	if err = json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[UserHandler:UpdateUser] Ошибка декодирования запроса: %v", err)
		http.Error(w, "Неверный формат запроса", http.StatusBadRequest)
		return
	}

	user, err := h.userService.UpdateUser(r.Context(), id, req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrValidation):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, services.ErrUserNotFound):
			http.Error(w, "Пользователь не найден", http.StatusNotFound)
		default:
			log.Printf("[UserHandler:UpdateUser] Внутренняя ошибка при обновлении ID %d: %v", id, err)
			http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err = json.NewEncoder(w).Encode(user); err != nil {
		log.Printf("[UserHandler:UpdateUser] Ошибка кодирования ответа: %v", err)
	}
}

// DeleteUser обрабатывает DELETE запрос на удаление пользователя.
// Повторное удаление уже удаленного ID возвращает 404.
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "Неверный ID пользователя", http.StatusBadRequest)
		return
	}

	if err = h.userService.DeleteUser(r.Context(), id); err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			http.Error(w, "Пользователь не найден", http.StatusNotFound)
			return
		}
		log.Printf("[UserHandler:DeleteUser] Внутренняя ошибка при удалении ID %d: %v", id, err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListCompanies обрабатывает GET запрос списка компаний.
func (h *UserHandler) ListCompanies(w http.ResponseWriter, r *http.Request) {
	companies, err := h.userService.ListCompanies(r.Context())
	if err != nil {
		log.Printf("[UserHandler:ListCompanies] Внутренняя ошибка: %v", err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err = json.NewEncoder(w).Encode(companies); err != nil {
		log.Printf("[UserHandler:ListCompanies] Ошибка кодирования ответа: %v", err)
	}
}

// GetCompany обрабатывает GET запрос одной компании по ID.
func (h *UserHandler) GetCompany(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "Неверный ID компании", http.StatusBadRequest)
		return
	}

	company, err := h.userService.GetCompany(r.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrCompanyNotFound) {
			http.Error(w, "Компания не найдена", http.StatusNotFound)
			return
		}
		log.Printf("[UserHandler:GetCompany] Внутренняя ошибка для ID %d: %v", id, err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err = json.NewEncoder(w).Encode(company); err != nil {
		log.Printf("[UserHandler:GetCompany] Ошибка кодирования ответа: %v", err)
	}
}
