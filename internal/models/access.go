package models

import "time"

type Entitlement struct {
	ID          string
	UserID      string
	ProductID   string
	PurchasedAt time.Time
}

// EntitlementView is an entitlement joined with the names shown in the back office.
type EntitlementView struct {
	Entitlement
	ProductName string
	UserName    *string
}

type Progress struct {
	ID          string
	UserID      string
	LessonID    string
	Completed   bool
	CompletedAt *time.Time
	CreatedAt   time.Time
}

// ProgressActivity is a progress row annotated with the product its lesson
// belongs to.
type ProgressActivity struct {
	Progress
	ProductID string
}

type Completion struct {
	Completed int
	Total     int
}

// Percent is Completed/Total scaled to [0, 100]; a product without lessons is 0%.
func (c Completion) Percent() float64 {
	if c.Total <= 0 || c.Completed <= 0 {
		return 0
	}
	if c.Completed >= c.Total {
		return 100
	}
	return float64(c.Completed) * 100 / float64(c.Total)
}

func (c Completion) Done() bool {
	return c.Total > 0 && c.Completed >= c.Total
}
