package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type ActorRole string

const (
	ActorRoleRegulator ActorRole = "regulator"
	ActorRoleHolder    ActorRole = "holder"
	ActorRoleSystem    ActorRole = "system"
)

type Outcome string

const (
	OutcomeAccepted Outcome = "accepted"
	// OutcomeDenied marks calls refused because the caller lacked the required identity.
	OutcomeDenied Outcome = "denied"
	// OutcomeRejected marks every other failed call.
	OutcomeRejected Outcome = "rejected"
)

// AuditLog is one append-only trail entry for a mutating ledger call.
type AuditLog struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	ActorRole  string            `gorm:"column:actor_role;size:16;not null" json:"actor_role"`
	ActorID    string            `gorm:"column:actor_id;size:64;not null;index" json:"actor_id"`
	Action     string            `gorm:"column:action;size:64;not null;index" json:"action"`
	TargetType string            `gorm:"column:target_type;size:32;not null" json:"target_type"`
	TargetID   string            `gorm:"column:target_id;size:128;not null;index" json:"target_id"`
	Outcome    string            `gorm:"column:outcome;size:16;not null" json:"outcome"`
	ErrorCode  string            `gorm:"column:error_code;size:64;not null" json:"error_code,omitempty"`
	RequestID  string            `gorm:"column:request_id;size:64;not null" json:"request_id,omitempty"`
	Metadata   datatypes.JSONMap `gorm:"column:metadata" json:"metadata,omitempty"`
	CreatedAt  time.Time         `gorm:"column:created_at;not null;index;autoCreateTime:false" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }

// Entry is what callers hand to Service.Record.
type Entry struct {
	ActorRole  ActorRole
	ActorID    string
	Action     string
	TargetType string
	TargetID   string
	Outcome    Outcome
	ErrorCode  string
	Metadata   map[string]any
}

type AuditCursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

type ListFilter struct {
	Action     string
	ActorID    string
	TargetType string
	TargetID   string
	Outcome    string
	StartAt    *time.Time
	EndAt      *time.Time
	Cursor     *AuditCursor
	Limit      int
}
