package repository_test

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vulntracker/server/internal/models"
	"github.com/vulntracker/server/internal/repository"
)

// Вспомогательная функция для создания мока БД и репозитория уязвимостей.
func setupVulnRepoMock(t *testing.T) (repository.VulnerabilityRepository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "sqlmock")
	repo := repository.NewPostgresVulnerabilityRepository(sqlxDB)
	return repo, mock
}

// vulnColumns — список колонок выборки уязвимостей.
var vulnColumns = []string{
	"id", "company_id", "title", "asset_ip", "port", "risk_level", "description",
	"protocol", "cve_ids", "impact", "is_resolved", "age", "quarters", "created_at", "updated_at",
}

// vulnRow формирует строку мока для одной уязвимости.
func vulnRow(id int64, title string, resolved bool, quarters []string) []driver.Value {
	now := time.Now()
	return []driver.Value{
		id, int64(1), title, "10.0.0.1", 443, "High", "описание",
		"tcp", pq.StringArray{"CVE-2024-0001"}, "impact", resolved, 30,
		pq.StringArray(quarters), now, now,
	}
}

func boolPtr(b bool) *bool { return &b }

func TestCountVulnerabilities(t *testing.T) {
	tests := []struct {
		name         string
		filter       repository.VulnerabilityFilter
		expectedSQL  string
		expectedArgs []driver.Value
	}{
		{
			name:         "Только изоляция тенанта",
			filter:       repository.VulnerabilityFilter{CompanyID: 1},
			expectedSQL:  `SELECT COUNT(*) FROM vulnerabilities WHERE company_id = $1`,
			expectedArgs: []driver.Value{int64(1)},
		},
		{
			name:         "Поиск по подстроке",
			filter:       repository.VulnerabilityFilter{CompanyID: 1, Search: "ssl"},
			expectedSQL:  `WHERE company_id = $1 AND (title ILIKE $2 OR description ILIKE $2)`,
			expectedArgs: []driver.Value{int64(1), "%ssl%"},
		},
		{
			name:         "Фильтр по кварталу",
			filter:       repository.VulnerabilityFilter{CompanyID: 1, Quarter: "Q1 2025"},
			expectedSQL:  `WHERE company_id = $1 AND $2 = ANY(quarters)`,
			expectedArgs: []driver.Value{int64(1), "Q1 2025"},
		},
		{
			name: "Переходящие нерешенные",
			filter: repository.VulnerabilityFilter{
				CompanyID:    1,
				IsResolved:   boolPtr(false),
				CarryForward: true,
			},
			expectedSQL:  `WHERE company_id = $1 AND is_resolved = $2 AND cardinality(quarters) > 1`,
			expectedArgs: []driver.Value{int64(1), false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := setupVulnRepoMock(t)

			rows := sqlmock.NewRows([]string{"count"}).AddRow(7)
			mock.ExpectQuery(regexp.QuoteMeta(tt.expectedSQL)).
				WithArgs(tt.expectedArgs...).
				WillReturnRows(rows)

			count, err := repo.CountVulnerabilities(context.Background(), tt.filter)

			require.NoError(t, err)
			assert.Equal(t, 7, count)
			assert.NoError(t, mock.ExpectationsWereMet(), "Не все ожидания мока были выполнены")
		})
	}
}

func TestListVulnerabilities(t *testing.T) {
	repo, mock := setupVulnRepoMock(t)

	rows := sqlmock.NewRows(vulnColumns).
		AddRow(vulnRow(1, "Открытый SSH", false, []string{"Q1 2025", "Q2 2025"})...).
		AddRow(vulnRow(2, "Устаревший TLS", false, []string{"Q2 2025"})...)

	query := regexp.QuoteMeta(`FROM vulnerabilities WHERE company_id = $1 ORDER BY id LIMIT $2 OFFSET $3`)
	mock.ExpectQuery(query).WithArgs(int64(1), int64(10), int64(20)).WillReturnRows(rows)

	vulns, err := repo.ListVulnerabilities(
		context.Background(),
		repository.VulnerabilityFilter{CompanyID: 1},
		10, 20,
	)

	require.NoError(t, err)
	require.Len(t, vulns, 2)
	assert.Equal(t, "Открытый SSH", vulns[0].Title)
	assert.Equal(t, pq.StringArray{"Q1 2025", "Q2 2025"}, vulns[0].Quarters)
	assert.NoError(t, mock.ExpectationsWereMet(), "Не все ожидания мока были выполнены")
}

func TestGetByIdentity(t *testing.T) {
	t.Run("Уязвимость найдена", func(t *testing.T) {
		repo, mock := setupVulnRepoMock(t)

		rows := sqlmock.NewRows(vulnColumns).
			AddRow(vulnRow(3, "Открытый SSH", false, []string{"Q1 2025"})...)
		query := regexp.QuoteMeta(`WHERE company_id=$1 AND title=$2 AND asset_ip=$3 AND port=$4 LIMIT 1`)
		mock.ExpectQuery(query).
			WithArgs(int64(1), "Открытый SSH", "10.0.0.1", int64(443)).
			WillReturnRows(rows)

		vuln, err := repo.GetByIdentity(context.Background(), 1, "Открытый SSH", "10.0.0.1", 443)

		require.NoError(t, err)
		assert.Equal(t, int64(3), vuln.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Уязвимость не найдена", func(t *testing.T) {
		repo, mock := setupVulnRepoMock(t)

		query := regexp.QuoteMeta(`WHERE company_id=$1 AND title=$2 AND asset_ip=$3 AND port=$4 LIMIT 1`)
		mock.ExpectQuery(query).
			WithArgs(int64(1), "Неизвестная", "10.0.0.2", int64(80)).
			WillReturnError(sql.ErrNoRows)

		vuln, err := repo.GetByIdentity(context.Background(), 1, "Неизвестная", "10.0.0.2", 80)

		assert.Nil(t, vuln)
		assert.ErrorIs(t, err, repository.ErrVulnerabilityNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCreateVulnerability(t *testing.T) {
	repo, mock := setupVulnRepoMock(t)

	v := &models.Vulnerability{
		CompanyID: 1, Title: "Открытый SSH", AssetIP: "10.0.0.1", Port: 22,
		RiskLevel: "High", Description: "описание", Protocol: "tcp",
		CVEIDs: []string{"CVE-2024-0001"}, Impact: "impact",
		Age: 30, Quarters: []string{"Q1 2025"},
	}

	rows := sqlmock.NewRows([]string{"id"}).AddRow(int64(11))
	query := regexp.QuoteMeta(`INSERT INTO vulnerabilities`)
	mock.ExpectQuery(query).
		WithArgs(v.CompanyID, v.Title, v.AssetIP, int64(22), v.RiskLevel, v.Description, v.Protocol,
			pq.Array(v.CVEIDs), v.Impact, v.IsResolved, int64(30), pq.Array(v.Quarters)).
		WillReturnRows(rows)

	id, err := repo.CreateVulnerability(context.Background(), v)

	require.NoError(t, err)
	assert.Equal(t, int64(11), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendQuarter(t *testing.T) {
	repo, mock := setupVulnRepoMock(t)

	// Условие запроса пропускает дубликаты меток и решенные уязвимости
	query := regexp.QuoteMeta(
		`SET quarters = array_append(quarters, $1), updated_at = NOW() WHERE id = $2 AND NOT ($1 = ANY(quarters)) AND is_resolved = FALSE`,
	)
	mock.ExpectExec(query).WithArgs("Q2 2025", int64(3)).WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.AppendQuarter(context.Background(), 3, "Q2 2025")

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
