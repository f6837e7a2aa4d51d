package creator

import (
	"time"
)

// PaymentProfile records a creator's payout destination for one provider.
// A creator carries at most one profile per provider; verification marks
// the account as confirmed by the provider itself.
type PaymentProfile struct {
	ID          string     `gorm:"column:id;primaryKey"`
	CreatorID   string     `gorm:"column:creator_id;uniqueIndex:uq_profile_creator_provider;not null"`
	Provider    string     `gorm:"column:provider;type:varchar(32);uniqueIndex:uq_profile_creator_provider;not null"`
	AccountID   string     `gorm:"column:account_id;not null"`
	DisplayName string     `gorm:"column:display_name"`
	IsVerified  bool       `gorm:"column:is_verified;not null;default:false"`
	VerifiedAt  *time.Time `gorm:"column:verified_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (PaymentProfile) TableName() string {
	return "creator_payment_profiles"
}

// Stats accumulates lifetime earnings per creator. Rows are upserted inside
// the payout completion transaction so the counters never drift from the
// payout ledger.
type Stats struct {
	ID                 string    `gorm:"column:id;primaryKey"`
	CreatorID          string    `gorm:"column:creator_id;uniqueIndex;not null"`
	TotalEarnings      float64   `gorm:"column:total_earnings;not null;default:0"`
	CompletedCampaigns int64     `gorm:"column:completed_campaigns;not null;default:0"`
	CreatedAt          time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Stats) TableName() string {
	return "creator_stats"
}
