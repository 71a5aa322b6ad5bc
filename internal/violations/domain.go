package violations

import (
	"time"

	"github.com/shopspring/decimal"
)

// Violation is a catalog entry describing an offense and its base fine.
type Violation struct {
	ID          int64           `json:"id"`
	Type        string          `json:"type"`
	Name        string          `json:"name"`
	Fine        decimal.Decimal `json:"fine"`
	OrdinanceNo *string         `json:"ordinance_no"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
