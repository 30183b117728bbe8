package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction types.
const (
	TxCredit = "credit"
	TxDebit  = "debit"
	TxRedeem = "redeem"
)

// Redemption statuses. Only redeem entries carry a status.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Transaction is an entry of the append-only HealCoin log.
type Transaction struct {
	ID             uint64          `gorm:"primaryKey" json:"id"`
	UserID         string          `gorm:"size:64;not null;index;uniqueIndex:idx_tx_idem,priority:1" json:"userId"`
	Type           string          `gorm:"size:16;not null;uniqueIndex:idx_tx_idem,priority:3" json:"type"`
	Amount         decimal.Decimal `gorm:"type:numeric(38,8);not null" json:"amount"`
	Description    string          `gorm:"size:255" json:"description"`
	Status         *string         `gorm:"size:16;index" json:"status,omitempty"`
	UpiID          *string         `gorm:"size:128" json:"upiId,omitempty"`
	BalanceAfter   decimal.Decimal `gorm:"type:numeric(38,8);not null" json:"-"`
	IdempotencyKey *string         `gorm:"size:64;uniqueIndex:idx_tx_idem,priority:2" json:"-"`
	CreatedAt      time.Time       `gorm:"autoCreateTime;index" json:"createdAt"`
	ResolvedAt     *time.Time      `json:"resolvedAt,omitempty"`
}

func (Transaction) TableName() string { return "wallet_transactions" }

// IsPending reports whether t is a redemption awaiting an admin decision.
func (t Transaction) IsPending() bool {
	return t.Type == TxRedeem && t.Status != nil && *t.Status == StatusPending
}

// ValidStatus reports whether s is a redemption status.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}
