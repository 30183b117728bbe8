package model

import "time"

// Outbox event types.
const (
	EventWalletProvisioned   = "wallet.provisioned"
	EventWalletCredited      = "wallet.credited"
	EventWalletDebited       = "wallet.debited"
	EventRedemptionSubmitted = "redemption.submitted"
	EventRedemptionApproved  = "redemption.approved"
	EventRedemptionRejected  = "redemption.rejected"
)

// AggregateWallet is the only aggregate the ledger emits events for.
const AggregateWallet = "wallet"

type OutboxEvent struct {
	ID          uint64    `gorm:"primaryKey"`
	Aggregate   string    `gorm:"size:64;not null"`
	AggregateID string    `gorm:"size:64;not null"`
	EventType   string    `gorm:"size:64;not null"`
	Payload     string    `gorm:"type:text;not null"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	Processed   bool      `gorm:"not null;default:false;index"`
	ProcessedAt *time.Time
}

func (OutboxEvent) TableName() string { return "event_outbox" }
