package model

import (
	"database/sql/driver"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

type Milestone struct {
	Name        string     `json:"name" validate:"required,max=200"`
	Description string     `json:"description,omitempty" validate:"max=2000"`
	Amount      float64    `json:"amount" validate:"gte=0"`
	Duration    string     `json:"duration,omitempty"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Milestones is an ordered milestone list persisted as a single JSON column.
// Each owner keeps its own copy; use Clone before handing a list to another record.
type Milestones []Milestone

func (m Milestones) Value() (driver.Value, error) {
	if m == nil {
		return "[]", nil
	}
	return jsonValue([]Milestone(m))
}

func (m *Milestones) Scan(src any) error {
	var out []Milestone
	if err := jsonScan(src, &out); err != nil {
		return err
	}
	*m = out
	return nil
}

func (Milestones) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	return jsonDBDataType(db, field)
}

func (m Milestones) Clone() Milestones {
	if m == nil {
		return nil
	}
	out := make(Milestones, len(m))
	for i, ms := range m {
		if ms.CompletedAt != nil {
			at := *ms.CompletedAt
			ms.CompletedAt = &at
		}
		out[i] = ms
	}
	return out
}

func (m Milestones) CompletedCount() int {
	count := 0
	for _, ms := range m {
		if ms.Completed {
			count++
		}
	}
	return count
}

func (m Milestones) TotalAmount() float64 {
	total := 0.0
	for _, ms := range m {
		total += ms.Amount
	}
	return total
}
