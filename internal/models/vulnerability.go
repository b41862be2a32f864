package models

import (
	"time"

	"github.com/lib/pq"
)

// Vulnerability представляет одну логическую уязвимость клиента.
// Запись создается пайплайном загрузки при первом появлении в скане и
// обновляется при повторном появлении в новом квартале: метка квартала
// дописывается в Quarters вместо создания дубликата.
// Инварианты: Quarters непустой; IsResolved=true закрывает жизненный цикл
// (новые кварталы больше не дописываются).
type Vulnerability struct {
	ID          int64          `db:"id" json:"id"`
	CompanyID   int64          `db:"company_id" json:"companyId"`
	Title       string         `db:"title" json:"title"`
	AssetIP     string         `db:"asset_ip" json:"assetIp"`
	Port        int            `db:"port" json:"port"`
	RiskLevel   string         `db:"risk_level" json:"riskLevel"`
	Description string         `db:"description" json:"description"`
	Protocol    string         `db:"protocol" json:"protocol"`
	CVEIDs      pq.StringArray `db:"cve_ids" json:"cveIds"`
	Impact      string         `db:"impact" json:"impact"`
	IsResolved  bool           `db:"is_resolved" json:"isResolved"`
	Age         int            `db:"age" json:"age"`
	Quarters    pq.StringArray `db:"quarters" json:"quarters"`
	CreatedAt   time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updatedAt"`
}

// Quarter представляет отчетный квартал, под которым была загружена партия
// данных сканирования для конкретной компании.
type Quarter struct {
	ID        int64     `db:"id" json:"id"`
	CompanyID int64     `db:"company_id" json:"companyId"`
	Label     string    `db:"label" json:"label"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// VulnerabilityPage представляет одну страницу результатов выборки уязвимостей.
// Значение временное, никогда не сохраняется.
type VulnerabilityPage struct {
	Items      []Vulnerability `json:"data"`
	PageNumber int             `json:"page"`
	TotalPages int             `json:"totalPages"`
}

// IsCarryForward сообщает, переходит ли уязвимость из квартала в квартал:
// true тогда и только тогда, когда она наблюдалась более чем в одном квартале.
// Статус IsResolved здесь намеренно не учитывается: фильтр по нерешенным
// применяется отдельно на этапе выборки, классификатор отвечает только на
// вопрос "повторялась ли уязвимость".
func IsCarryForward(v *Vulnerability) bool {
	return len(v.Quarters) > 1
}
