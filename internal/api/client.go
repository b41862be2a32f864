// Package api реализует HTTP-клиент REST API трекера уязвимостей.
// Это "коллаборатор выборки" для клиентских компонентов browse и manage.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/vulntracker/server/internal/models"
)

// Кастомные ошибки клиента. Сетевые сбои и 5xx сервера сворачиваются
// в ErrUnavailable: это повторяемая (retryable) ошибка, а не фатальная.
var (
	ErrAuthorization = errors.New("ошибка авторизации")
	ErrForbidden     = errors.New("доступ запрещен")
	ErrNotFound      = errors.New("объект не найден")
	ErrValidation    = errors.New("ошибка валидации")
	ErrUnavailable   = errors.New("сервер недоступен")
)

// Таймаут HTTP-запросов по умолчанию.
const defaultRequestTimeout = 15 * time.Second

// VulnerabilityParams — параметры выборки уязвимостей.
type VulnerabilityParams struct {
	CompanyID    int64
	Page         int
	Search       string
	Quarter      string
	IsResolved   *bool
	CarryForward bool
}

// Client определяет интерфейс для взаимодействия с API сервера.
type Client interface {
	// Login аутентифицирует пользователя и возвращает JWT токен.
	Login(ctx context.Context, email, password string) (string, error)
	// ListQuarters получает каталог кварталов компании.
	ListQuarters(ctx context.Context, companyID int64) ([]string, error)
	// ListVulnerabilities получает страницу уязвимостей по фильтрам.
	ListVulnerabilities(ctx context.Context, params VulnerabilityParams) (*models.VulnerabilityPage, error)
	// ListUsers получает список пользователей (администрирование).
	ListUsers(ctx context.Context) ([]models.User, error)
	// CreateUser создает нового пользователя.
	CreateUser(ctx context.Context, req models.CreateUserRequest) (*models.User, error)
	// UpdateUser обновляет пользователя. Пустой пароль опускается из тела.
	UpdateUser(ctx context.Context, id int64, req models.UpdateUserRequest) (*models.User, error)
	// DeleteUser удаляет пользователя.
	DeleteUser(ctx context.Context, id int64) error
	// ListCompanies получает список компаний.
	ListCompanies(ctx context.Context) ([]models.Company, error)
	// GetCompany получает компанию по ID.
	GetCompany(ctx context.Context, id int64) (*models.Company, error)
	// UploadScan загружает CSV-файл скана (multipart: file, quarter, companyName).
	UploadScan(ctx context.Context, companyName, quarter, filename string, file io.Reader) error
	// SetAuthToken устанавливает JWT токен для аутентифицированных запросов.
	SetAuthToken(token string)
}

// httpClient реализует интерфейс Client для взаимодействия с сервером по HTTP.
type httpClient struct {
	baseURL    string       // Базовый URL сервера, например "https://localhost:8443"
	httpClient *http.Client // HTTP клиент для выполнения запросов
	authToken  string       // JWT токен для аутентифицированных запросов
}

// NewHTTPClient создает новый экземпляр API клиента.
func NewHTTPClient(baseURL string) Client {
	return &httpClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
	}
}

// SetAuthToken устанавливает токен аутентификации для клиента.
func (c *httpClient) SetAuthToken(token string) {
	c.authToken = token
}

// setAuthHeader добавляет заголовок авторизации к запросу.
func (c *httpClient) setAuthHeader(req *http.Request) error {
	if c.authToken == "" {
		return ErrAuthorization
	}
	req.Header.Set("Authorization", "Bearer "+c.authToken)
	return nil
}

// statusError переводит неуспешный HTTP-статус в ошибку клиента.
func statusError(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrAuthorization
	case resp.StatusCode == http.StatusForbidden:
		return ErrForbidden
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusBadRequest:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%w: %s", ErrValidation, bytes.TrimSpace(body))
	case resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%w: статус %d", ErrUnavailable, resp.StatusCode)
	default:
		return fmt.Errorf("неожиданный статус ответа: %d", resp.StatusCode)
	}
}

// do выполняет запрос, сворачивая сетевые ошибки в ErrUnavailable.
func (c *httpClient) do(req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return resp, nil
}

// Login отправляет запрос на вход и сохраняет полученный токен в клиенте.
func (c *httpClient) Login(ctx context.Context, email, password string) (string, error) {
	loginURL, err := url.JoinPath(c.baseURL, "/api/auth/login")
	if err != nil {
		return "", fmt.Errorf("ошибка формирования URL для входа: %w", err)
	}

	jsonData, err := json.Marshal(models.LoginRequest{Email: email, Password: password})
	if err != nil {
		return "", fmt.Errorf("ошибка кодирования данных для входа: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, loginURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("ошибка создания запроса на вход: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", statusError(resp)
	}

	var loginResponse models.LoginResponse
	if err = json.NewDecoder(resp.Body).Decode(&loginResponse); err != nil {
		return "", fmt.Errorf("ошибка декодирования ответа на вход: %w", err)
	}
	if loginResponse.Token == "" {
		return "", errors.New("сервер вернул пустой токен")
	}

	// Сохраняем токен в клиенте для последующих запросов
	c.authToken = loginResponse.Token

	return loginResponse.Token, nil
}

// getJSON выполняет аутентифицированный GET и декодирует JSON-ответ в out.
func (c *httpClient) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	fullURL, err := url.JoinPath(c.baseURL, path)
	if err != nil {
		return fmt.Errorf("ошибка формирования URL '%s': %w", path, err)
	}
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("ошибка создания запроса '%s': %w", path, err)
	}
	if err = c.setAuthHeader(req); err != nil {
		return err
	}

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}

	if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("ошибка декодирования ответа '%s': %w", path, err)
	}
	return nil
}

// ListQuarters получает каталог кварталов компании.
func (c *httpClient) ListQuarters(ctx context.Context, companyID int64) ([]string, error) {
	query := url.Values{}
	query.Set("companyId", strconv.FormatInt(companyID, 10))

	labels := make([]string, 0)
	if err := c.getJSON(ctx, "/api/quarters", query, &labels); err != nil {
		return nil, err
	}
	return labels, nil
}

// ListVulnerabilities получает страницу уязвимостей по фильтрам.
func (c *httpClient) ListVulnerabilities(
	ctx context.Context,
	params VulnerabilityParams,
) (*models.VulnerabilityPage, error) {
	query := url.Values{}
	query.Set("companyId", strconv.FormatInt(params.CompanyID, 10))
	if params.Page > 0 {
		query.Set("page", strconv.Itoa(params.Page))
	}
	if params.Search != "" {
		query.Set("search", params.Search)
	}
	if params.Quarter != "" {
		query.Set("quarter", params.Quarter)
	}
	if params.IsResolved != nil {
		query.Set("isResolved", strconv.FormatBool(*params.IsResolved))
	}
	if params.CarryForward {
		query.Set("carryForward", "true")
	}

	var page models.VulnerabilityPage
	if err := c.getJSON(ctx, "/api/vulnerabilities", query, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// ListUsers получает список пользователей.
func (c *httpClient) ListUsers(ctx context.Context) ([]models.User, error) {
	users := make([]models.User, 0)
	if err := c.getJSON(ctx, "/api/users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// sendJSON выполняет аутентифицированный запрос с JSON-телом.
// При непустом out декодирует в него ответ.
func (c *httpClient) sendJSON(
	ctx context.Context,
	method, path string,
	body interface{},
	wantStatus int,
	out interface{},
) error {
	fullURL, err := url.JoinPath(c.baseURL, path)
	if err != nil {
		return fmt.Errorf("ошибка формирования URL '%s': %w", path, err)
	}

	var reader io.Reader
	if body != nil {
		jsonData, marshalErr := json.Marshal(body)
		if marshalErr != nil {
			return fmt.Errorf("ошибка кодирования тела запроса '%s': %w", path, marshalErr)
		}
		reader = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return fmt.Errorf("ошибка создания запроса '%s': %w", path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if err = c.setAuthHeader(req); err != nil {
		return err
	}

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return statusError(resp)
	}

	if out != nil {
		if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("ошибка декодирования ответа '%s': %w", path, err)
		}
	}
	return nil
}

// CreateUser создает нового пользователя.
func (c *httpClient) CreateUser(ctx context.Context, req models.CreateUserRequest) (*models.User, error) {
	var user models.User
	if err := c.sendJSON(ctx, http.MethodPost, "/api/users", req, http.StatusCreated, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateUser обновляет пользователя. Пустой пароль не попадает в JSON
// (указатель nil + omitempty), поэтому существующие учетные данные
// не перезаписываются.
func (c *httpClient) UpdateUser(ctx context.Context, id int64, req models.UpdateUserRequest) (*models.User, error) {
	// Страховка от пустой строки: контракт требует полного отсутствия поля
	if req.Password != nil && *req.Password == "" {
		req.Password = nil
	}

	var user models.User
	path := "/api/users/" + strconv.FormatInt(id, 10)
	if err := c.sendJSON(ctx, http.MethodPut, path, req, http.StatusOK, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// DeleteUser удаляет пользователя.
func (c *httpClient) DeleteUser(ctx context.Context, id int64) error {
	path := "/api/users/" + strconv.FormatInt(id, 10)
	return c.sendJSON(ctx, http.MethodDelete, path, nil, http.StatusNoContent, nil)
}

// ListCompanies получает список компаний.
func (c *httpClient) ListCompanies(ctx context.Context) ([]models.Company, error) {
	companies := make([]models.Company, 0)
	if err := c.getJSON(ctx, "/api/companies", nil, &companies); err != nil {
		return nil, err
	}
	return companies, nil
}

// GetCompany получает компанию по ID.
func (c *httpClient) GetCompany(ctx context.Context, id int64) (*models.Company, error) {
	var company models.Company
	if err := c.getJSON(ctx, "/api/companies/"+strconv.FormatInt(id, 10), nil, &company); err != nil {
		return nil, err
	}
	return &company, nil
}

// UploadScan загружает CSV-файл скана multipart-формой.
func (c *httpClient) UploadScan(
	ctx context.Context,
	companyName, quarter, filename string,
	file io.Reader,
) error {
	uploadURL, err := url.JoinPath(c.baseURL, "/api/upload")
	if err != nil {
		return fmt.Errorf("ошибка формирования URL для загрузки: %w", err)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if err = writer.WriteField("companyName", companyName); err != nil {
		return fmt.Errorf("ошибка формирования multipart-формы: %w", err)
	}
	if err = writer.WriteField("quarter", quarter); err != nil {
		return fmt.Errorf("ошибка формирования multipart-формы: %w", err)
	}

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("ошибка формирования multipart-формы: %w", err)
	}
	if _, err = io.Copy(part, file); err != nil {
		return fmt.Errorf("ошибка копирования файла в форму: %w", err)
	}
	if err = writer.Close(); err != nil {
		return fmt.Errorf("ошибка закрытия multipart-формы: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, &buf)
	if err != nil {
		return fmt.Errorf("ошибка создания запроса на загрузку: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if err = c.setAuthHeader(req); err != nil {
		return err
	}

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}

	return nil
}
