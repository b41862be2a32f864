package repository

import (
	"errors"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file" // Источник миграций - файлы на диске
	"github.com/jmoiron/sqlx"
)

// RunMigrations применяет SQL-миграции из каталога migrationsDir
// к уже открытому соединению с БД.
func RunMigrations(db *sqlx.DB, migrationsDir string) error {
	log.Printf("Применение миграций из каталога '%s'...", migrationsDir)

	driver, err := postgres.WithInstance(db.DB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("ошибка инициализации драйвера миграций: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsDir, "postgres", driver)
	if err != nil {
		return fmt.Errorf("ошибка инициализации мигратора: %w", err)
	}

	if err = m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Println("Миграции не требуются: схема актуальна.")
			return nil
		}
		return fmt.Errorf("ошибка применения миграций: %w", err)
	}

	log.Println("Миграции успешно применены.")
	return nil
}
