package main

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // Драйвер PostgreSQL

	"github.com/vulntracker/server/internal/handlers"
	appmiddleware "github.com/vulntracker/server/internal/middleware"
	"github.com/vulntracker/server/internal/repository"
	"github.com/vulntracker/server/internal/services"
	"github.com/vulntracker/server/internal/storage"
)

const (
	defaultReadTimeout  = 10 * time.Second
	defaultWriteTimeout = 30 * time.Second // загрузка CSV может быть долгой
	defaultIdleTimeout  = 30 * time.Second

	// Переменные окружения для MinIO (значения по умолчанию из docker-compose).
	envMinioEndpoint     = "MINIO_ENDPOINT"
	envMinioUser         = "MINIO_USER"
	envMinioPassword     = "MINIO_PASSWORD"
	envMinioBucket       = "MINIO_BUCKET"
	defaultMinioEndpoint = "localhost:9000"
	defaultMinioUser     = "minioadmin"
	defaultMinioPassword = "minioadmin"
	defaultMinioBucket   = "vulntracker-scans"
	minioUseSSL          = false // Для локальной разработки
)

// Структура для хранения инициализированных зависимостей.
type dependencies struct {
	db          *sqlx.DB
	fileStorage storage.FileStorage
	authHandler *handlers.AuthHandler
	vulnHandler *handlers.VulnerabilityHandler
	userHandler *handlers.UserHandler
	uplHandler  *handlers.UploadHandler
}

// main - точка входа. Вызывает run и обрабатывает ошибку.
func main() {
	if err := run(); err != nil {
		log.Printf("Ошибка выполнения сервера: %v", err)
		os.Exit(1)
	}
}

// run содержит основную логику запуска сервера и возвращает ошибку.
func run() error {
	log.Println("Запуск сервера VulnTracker...")

	cfg, err := parseFlags()
	if err != nil {
		return fmt.Errorf("ошибка разбора конфигурации: %w", err)
	}

	// Инициализация зависимостей
	deps, err := setupDependencies(cfg)
	if err != nil {
		return fmt.Errorf("ошибка инициализации зависимостей: %w", err)
	}
	// Отложенное закрытие соединения с БД
	defer func() {
		if deps.db != nil {
			if closeErr := deps.db.Close(); closeErr != nil {
				log.Printf("Ошибка закрытия соединения с БД: %v", closeErr)
			}
		}
	}()

	// Настройка роутера
	r := setupRouter(deps)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
		IdleTimeout:  defaultIdleTimeout,
	}

	log.Printf("Запуск HTTPS-сервера на порту %s...", cfg.Port)
	log.Printf("Используется сертификат: %s", cfg.CertFile)
	log.Printf("Используется ключ: %s", cfg.KeyFile)

	// Запускаем сервер с TLS
	if err = server.ListenAndServeTLS(cfg.CertFile, cfg.KeyFile); err != nil &&
		!errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("ошибка запуска HTTPS-сервера: %w", err)
	}
	return nil
}

// setupDependencies инициализирует и возвращает все необходимые зависимости сервера.
func setupDependencies(cfg *config) (*dependencies, error) {
	deps := &dependencies{}
	var err error

	// 1. Подключение к БД
	deps.db, err = repository.NewPostgresDB(cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации БД: %w", err)
	}
	log.Println("Соединение с БД успешно установлено.")

	// 2. Применение миграций
	if err = repository.RunMigrations(deps.db, cfg.MigrationsDir); err != nil {
		if dbCloseErr := deps.db.Close(); dbCloseErr != nil {
			log.Printf("Ошибка закрытия соединения с БД при ошибке миграций: %v", dbCloseErr)
		}
		return nil, fmt.Errorf("ошибка применения миграций: %w", err)
	}

	// 3. Инициализация клиента MinIO для архива загруженных сканов
	minioCfg := storage.MinioConfig{
		Endpoint:        getEnv(envMinioEndpoint, defaultMinioEndpoint),
		AccessKeyID:     getEnv(envMinioUser, defaultMinioUser),
		SecretAccessKey: getEnv(envMinioPassword, defaultMinioPassword),
		UseSSL:          minioUseSSL,
		BucketName:      getEnv(envMinioBucket, defaultMinioBucket),
	}
	deps.fileStorage, err = storage.NewMinioClient(minioCfg)
	if err != nil {
		if dbCloseErr := deps.db.Close(); dbCloseErr != nil {
			log.Printf("Ошибка закрытия соединения с БД при ошибке MinIO: %v", dbCloseErr)
		}
		return nil, fmt.Errorf("ошибка инициализации клиента MinIO: %w", err)
	}

	// 4. Создание репозиториев
	userRepo := repository.NewPostgresUserRepository(deps.db)
	companyRepo := repository.NewPostgresCompanyRepository(deps.db)
	quarterRepo := repository.NewPostgresQuarterRepository(deps.db)
	vulnRepo := repository.NewPostgresVulnerabilityRepository(deps.db)

	// 5. Создание сервисов
	authService := services.NewAuthService(userRepo)
	vulnService := services.NewVulnerabilityService(vulnRepo, quarterRepo)
	userService := services.NewUserService(userRepo, companyRepo)
	uploadService := services.NewUploadService(companyRepo, quarterRepo, vulnRepo, deps.fileStorage)

	// 6. Создание обработчиков
	deps.authHandler = handlers.NewAuthHandler(authService)
	deps.vulnHandler = handlers.NewVulnerabilityHandler(vulnService)
	deps.userHandler = handlers.NewUserHandler(userService)
	deps.uplHandler = handlers.NewUploadHandler(uploadService)

	return deps, nil
}

// setupRouter настраивает и возвращает роутер chi.
func setupRouter(deps *dependencies) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// --- Маршруты --- //
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("pong\n"))
	})

	r.Route("/api", func(r chi.Router) {
		// Публичные маршруты
		r.Post("/auth/login", deps.authHandler.Login)

		// Приватные маршруты (требуют аутентификации)
		r.Group(func(r chi.Router) {
			r.Use(appmiddleware.Authenticator)

			r.Get("/vulnerabilities", deps.vulnHandler.GetVulnerabilities)
			r.Get("/quarters", deps.vulnHandler.GetQuarters)
			r.Get("/companies", deps.userHandler.ListCompanies)
			r.Get("/companies/{id}", deps.userHandler.GetCompany)

			// Административные маршруты
			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.RequireAdmin)

				r.Route("/users", func(r chi.Router) {
					r.Get("/", deps.userHandler.ListUsers)
					r.Post("/", deps.userHandler.CreateUser)
					r.Put("/{id}", deps.userHandler.UpdateUser)
					r.Delete("/{id}", deps.userHandler.DeleteUser)
				})
				r.Post("/upload", deps.uplHandler.Upload)
			})
		})
	})
	return r
}

// getEnv получает значение переменной окружения или возвращает значение по умолчанию.
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	log.Printf("Переменная окружения '%s' не установлена, используется значение по умолчанию: '%s'", key, fallback)
	return fallback
}
