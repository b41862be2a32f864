package models_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vulntracker/server/internal/models"
)

func TestIsCarryForward(t *testing.T) {
	tests := []struct {
		name     string
		vuln     models.Vulnerability
		expected bool
	}{
		{
			name:     "Два квартала - переходящая",
			vuln:     models.Vulnerability{Quarters: []string{"Q1 2025", "Q2 2025"}},
			expected: true,
		},
		{
			name:     "Один квартал - не переходящая",
			vuln:     models.Vulnerability{Quarters: []string{"Q1 2025"}},
			expected: false,
		},
		{
			name:     "Три квартала - переходящая",
			vuln:     models.Vulnerability{Quarters: []string{"Q1 2025", "Q2 2025", "Q3 2025"}},
			expected: true,
		},
		{
			name:     "Пустой список кварталов",
			vuln:     models.Vulnerability{Quarters: []string{}},
			expected: false,
		},
		{
			name: "Решенная уязвимость с двумя кварталами - классификатор статус не учитывает",
			vuln: models.Vulnerability{
				Quarters:   []string{"Q1 2025", "Q2 2025"},
				IsResolved: true,
			},
			expected: true,
		},
		{
			name: "Нерешенная с одним кварталом - все равно не переходящая",
			vuln: models.Vulnerability{
				Quarters:   []string{"Q1 2025"},
				IsResolved: false,
			},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, models.IsCarryForward(&tt.vuln))
		})
	}
}
