package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet holds the HealCoin balance of one user.
type Wallet struct {
	UserID      string          `gorm:"primaryKey;size:64" json:"userId"`
	Balance     decimal.Decimal `gorm:"type:numeric(38,8);not null;default:0" json:"balance"`
	Version     uint64          `gorm:"not null;default:0" json:"-"`
	LastUpdated time.Time       `gorm:"not null" json:"lastUpdated"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"createdAt"`
}

func (Wallet) TableName() string { return "wallets" }
