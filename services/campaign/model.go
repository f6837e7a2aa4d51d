package campaign

import (
	"time"

	"gorm.io/datatypes"
)

type Status string
type PaymentStatus string

const (
	StatusDraft      Status = "draft"
	StatusActive     Status = "active"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"

	PaymentPending  PaymentStatus = "pending"
	PaymentEscrowed PaymentStatus = "escrowed"
	PaymentReleased PaymentStatus = "released"
	PaymentRefunded PaymentStatus = "refunded"
	PaymentFailed   PaymentStatus = "failed"
)

// Campaign represents a brand campaign whose budget is escrowed until a
// creator payout releases it. Payout fields are written only by the payout
// service; everything else here is read-mostly collaborator state.
type Campaign struct {
	ID          string `gorm:"column:id;primaryKey"`
	Code        string `gorm:"column:code"`
	BrandID     string `gorm:"column:brand_id;index;not null"`
	CreatorID   string `gorm:"column:creator_id;index"`
	Title       string `gorm:"column:title;type:varchar(255);not null"`
	Description string `gorm:"column:description;type:text"`

	// Budget is the gross amount, immutable once escrowed.
	Budget   float64 `gorm:"column:budget;not null"`
	Currency string  `gorm:"column:currency;type:varchar(3);not null;default:'ETB'"`

	Status        Status        `gorm:"column:status;type:varchar(20);not null;default:'draft'"`
	PaymentStatus PaymentStatus `gorm:"column:payment_status;type:varchar(20);not null;default:'pending'"`

	PayoutTransactionID string  `gorm:"column:payout_transaction_id"`
	PayoutAmount        float64 `gorm:"column:payout_amount"`
	PlatformFee         float64 `gorm:"column:platform_fee"`
	PayoutProvider      string  `gorm:"column:payout_provider"`
	PaymentError        string  `gorm:"column:payment_error"`

	Metadata  datatypes.JSON `gorm:"column:metadata"`
	EndsAt    *time.Time     `gorm:"column:ends_at;index"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (Campaign) TableName() string {
	return "campaigns"
}

var statusTransitions = map[Status][]Status{
	StatusDraft:      {StatusActive, StatusCancelled},
	StatusActive:     {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
	StatusCompleted:  {},
	StatusCancelled:  {},
}

// CanTransitionTo reports whether the lifecycle allows moving to next.
func (c *Campaign) CanTransitionTo(next Status) bool {
	for _, allowed := range statusTransitions[c.Status] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Payable reports whether a payout may be released against this campaign:
// the campaign finished and the money was never released before.
func (c *Campaign) Payable() bool {
	if c.Status != StatusCompleted {
		return false
	}
	return c.PaymentStatus == PaymentPending || c.PaymentStatus == PaymentEscrowed
}
