package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSortOrder(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"asc", "ASC"},
		{" ASC ", "ASC"},
		{"desc", "DESC"},
		{"", "DESC"},
		{"ASC; DROP TABLE sales", "DESC"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ValidateSortOrder(tt.input))
		})
	}
}

func TestValidateSortField(t *testing.T) {
	assert.Equal(t, "invoice_no", ValidateSortField("invoice_no", SaleSortFields, "created_at"))
	assert.Equal(t, "created_at", ValidateSortField("invoice_no; --", SaleSortFields, "created_at"))
	assert.Equal(t, "created_at", ValidateSortField("", SaleSortFields, "created_at"))
	assert.Equal(t, "grand_total DESC", orderClause("grand_total", "desc", SaleSortFields, "created_at"))
}

func TestLikePattern(t *testing.T) {
	assert.Equal(t, "%inv-00%", likePattern("  INV-00 "))
}
