package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Event is a persisted ledger event. Rows with a nil RelayedAt are still waiting for the relay.
// An event with a CounterpartyConcession is listed under both concessions.
type Event struct {
	ID                     snowflake.ID      `gorm:"primaryKey" json:"id"`
	Kind                   string            `gorm:"column:kind;size:48;not null" json:"kind"`
	ConcessionID           string            `gorm:"column:concession_id;size:32;not null;index" json:"concession_id"`
	CounterpartyConcession string            `gorm:"column:counterparty_concession;size:32;not null;default:'';index" json:"counterparty_concession,omitempty"`
	Holder                 string            `gorm:"column:holder;size:64;not null" json:"holder"`
	Actor                  string            `gorm:"column:actor;size:64;not null" json:"actor"`
	Payload                datatypes.JSONMap `gorm:"column:payload" json:"payload"`
	OccurredAt             time.Time         `gorm:"column:occurred_at;not null" json:"occurred_at"`
	RelayedAt              *time.Time        `gorm:"column:relayed_at;index" json:"relayed_at,omitempty"`
}

func (Event) TableName() string { return "quota_events" }

type ListFilter struct {
	ConcessionID string
	Kind         string
	BeforeID     snowflake.ID
	Limit        int
}
