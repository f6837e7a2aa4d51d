package payout

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// PayoutRecord is the ledger row for one campaign/creator payout. The unique
// index on (campaign_id, creator_id) is the idempotency key: a campaign pays
// a creator at most once, and every retry reuses the same row.
type PayoutRecord struct {
	ID         string `gorm:"column:id;primaryKey"`
	Code       string `gorm:"column:code"`
	CampaignID string `gorm:"column:campaign_id;uniqueIndex:uq_payout_campaign_creator;not null"`
	CreatorID  string `gorm:"column:creator_id;uniqueIndex:uq_payout_campaign_creator;not null"`
	BrandID    string `gorm:"column:brand_id;index;not null"`

	GrossAmount float64 `gorm:"column:gross_amount;not null"`
	PlatformFee float64 `gorm:"column:platform_fee;not null"`
	NetAmount   float64 `gorm:"column:net_amount;not null"`
	Currency    string  `gorm:"column:currency;type:varchar(3);not null"`

	Provider     string `gorm:"column:provider;type:varchar(32);not null"`
	Recipient    string `gorm:"column:recipient;not null"`
	ProviderTxID string `gorm:"column:provider_tx_id"`

	Status        Status `gorm:"column:status;type:varchar(20);not null;default:'pending'"`
	FailureReason string `gorm:"column:failure_reason"`
	Attempts      int    `gorm:"column:attempts;not null;default:0"`

	Metadata    datatypes.JSON `gorm:"column:metadata"`
	CompletedAt *time.Time     `gorm:"column:completed_at"`
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (PayoutRecord) TableName() string {
	return "payout_records"
}

const transferReferencePrefix = "PR-"

// TransferReference is the deterministic reference sent to the provider. It
// is derived from the record's identity alone, so retries of the same payout
// always present the same reference and cannot double-pay.
func (p *PayoutRecord) TransferReference() string {
	return transferReferencePrefix + p.ID
}

// ParseTransferReference recovers the payout record id from a provider-side
// reference. It rejects anything that does not carry the expected prefix.
func ParseTransferReference(ref string) (string, error) {
	if !strings.HasPrefix(ref, transferReferencePrefix) {
		return "", fmt.Errorf("malformed transfer reference: %q", ref)
	}
	id := strings.TrimPrefix(ref, transferReferencePrefix)
	if id == "" {
		return "", fmt.Errorf("malformed transfer reference: %q", ref)
	}
	return id, nil
}

// Retryable reports whether a new processing attempt may start on this
// record. Completed payouts are terminal; a record already in flight must
// not be raced by a second attempt.
func (p *PayoutRecord) Retryable() bool {
	return p.Status == StatusPending || p.Status == StatusFailed
}
