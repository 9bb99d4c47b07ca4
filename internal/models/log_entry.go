package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Severity classifies the importance of a log entry. The ordering
// DEBUG < INFO < WARNING < ERROR < CRITICAL is defined by severityRank,
// not by declaration order.
type Severity string

const (
	SeverityDebug    Severity = "DEBUG"
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityError    Severity = "ERROR"
	SeverityCritical Severity = "CRITICAL"
)

var severityRank = map[Severity]int{
	SeverityDebug:    0,
	SeverityInfo:     1,
	SeverityWarning:  2,
	SeverityError:    3,
	SeverityCritical: 4,
}

// Severities lists all severities from least to most severe.
func Severities() []Severity {
	return []Severity{SeverityDebug, SeverityInfo, SeverityWarning, SeverityError, SeverityCritical}
}

// Valid reports whether s is a recognised severity value.
func (s Severity) Valid() bool {
	_, ok := severityRank[s]
	return ok
}

// Rank returns the ordinal position of the severity, -1 for unknown values.
func (s Severity) Rank() int {
	rank, ok := severityRank[s]
	if !ok {
		return -1
	}
	return rank
}

// AtOrAbove returns every severity at least as severe as s, in ascending order.
func (s Severity) AtOrAbove() []Severity {
	min, ok := severityRank[s]
	if !ok {
		return nil
	}

	var out []Severity
	for _, candidate := range Severities() {
		if severityRank[candidate] >= min {
			out = append(out, candidate)
		}
	}
	return out
}

// LogEntry is an immutable audit record: who did what, where, when.
// Entries are append-only; there is no update path and no updated_at column.
type LogEntry struct {
	ID string `gorm:"primaryKey;type:uuid" json:"id"`

	// Tenant scoping. Every entry belongs to exactly one tenant and all
	// reads are constrained by it.
	TenantID string  `gorm:"type:uuid;not null;index:idx_log_entries_tenant_created,priority:1;index:idx_log_entries_tenant_client_created,priority:1;index:idx_log_entries_tenant_module_action,priority:1;index:idx_log_entries_tenant_actor,priority:1;index:idx_log_entries_tenant_severity_created,priority:1" json:"tenant_id"`
	ClientID *string `gorm:"type:uuid;index:idx_log_entries_tenant_client_created,priority:2" json:"client_id"`

	// Actor snapshot, denormalised at write time so the record stays
	// meaningful after the identity store changes. Nil for system actions.
	ActorID    *string `gorm:"type:uuid;index:idx_log_entries_tenant_actor,priority:2" json:"actor_id"`
	ActorEmail *string `gorm:"type:varchar(255)" json:"actor_email"`
	ActorName  *string `gorm:"type:varchar(255)" json:"actor_name"`

	Module   string   `gorm:"type:varchar(100);not null;index;index:idx_log_entries_tenant_module_action,priority:2" json:"module"`
	Action   string   `gorm:"type:varchar(255);not null;index:idx_log_entries_tenant_module_action,priority:3" json:"action"`
	Severity Severity `gorm:"type:varchar(16);not null;default:'INFO';index:idx_log_entries_tenant_severity_created,priority:2" json:"severity"`

	// Optional pointer to the affected domain object, not enforced referentially.
	ResourceType *string `gorm:"type:varchar(100)" json:"resource_type"`
	ResourceID   *string `gorm:"type:uuid" json:"resource_id"`

	Data datatypes.JSON `json:"data"`

	// Request metadata for correlation and tracing.
	IPAddress *string `gorm:"type:varchar(45)" json:"ip_address"`
	UserAgent *string `gorm:"type:text" json:"user_agent"`
	RequestID *string `gorm:"type:uuid;index:idx_log_entries_request_id,where:request_id IS NOT NULL" json:"request_id"`

	CreatedAt time.Time `gorm:"not null;index:idx_log_entries_tenant_created,priority:2,sort:desc;index:idx_log_entries_tenant_client_created,priority:3,sort:desc;index:idx_log_entries_tenant_severity_created,priority:3,sort:desc" json:"created_at"`
}

// BeforeCreate ensures UUID identifiers are generated automatically.
func (e *LogEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Severity == "" {
		e.Severity = SeverityInfo
	}
	return nil
}
