package services

import (
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/trailworks/trail/internal/models"
)

// LogFilter encapsulates optional filters when querying log entries.
// Zero-valued fields impose no constraint; set fields are combined with AND.
type LogFilter struct {
	StartDate *time.Time
	EndDate   *time.Time

	ActorID string

	Module string
	// Action matches exactly, or by prefix when it carries a trailing
	// ".*" wildcard ("users.*" matches "users.login" but not "users").
	Action string

	Severity    models.Severity
	MinSeverity models.Severity

	ResourceType string
	ResourceID   string

	ClientID string

	// Search is a case-insensitive substring match against the serialised
	// form of the data payload.
	Search string
}

// applyLogFilters appends the filter conditions to a log entry query.
func applyLogFilters(query *gorm.DB, filter LogFilter) *gorm.DB {
	if filter.StartDate != nil {
		query = query.Where("created_at >= ?", *filter.StartDate)
	}
	if filter.EndDate != nil {
		query = query.Where("created_at <= ?", *filter.EndDate)
	}

	if filter.ActorID != "" {
		query = query.Where("actor_id = ?", filter.ActorID)
	}

	if filter.Module != "" {
		query = query.Where("module = ?", filter.Module)
	}
	if filter.Action != "" {
		if strings.HasSuffix(filter.Action, ".*") {
			prefix := strings.TrimSuffix(filter.Action, "*")
			query = query.Where("action LIKE ?", prefix+"%")
		} else {
			query = query.Where("action = ?", filter.Action)
		}
	}

	if filter.Severity != "" {
		query = query.Where("severity = ?", filter.Severity)
	}
	if filter.MinSeverity != "" {
		if expanded := filter.MinSeverity.AtOrAbove(); len(expanded) > 0 {
			query = query.Where("severity IN ?", expanded)
		}
	}

	if filter.ResourceType != "" {
		query = query.Where("resource_type = ?", filter.ResourceType)
	}
	if filter.ResourceID != "" {
		query = query.Where("resource_id = ?", filter.ResourceID)
	}

	if filter.ClientID != "" {
		query = query.Where("client_id = ?", filter.ClientID)
	}

	if filter.Search != "" {
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where(dataSearchClause(query), pattern)
	}

	return query
}

// dataSearchClause returns the dialect specific expression that casts the
// JSON payload column to text for substring matching.
func dataSearchClause(query *gorm.DB) string {
	var dialect string
	if query != nil && query.Dialector != nil {
		dialect = query.Dialector.Name()
	}

	switch dialect {
	case "postgres":
		return "data::text ILIKE ?"
	case "mysql":
		return "LOWER(CAST(data AS CHAR)) LIKE ?"
	default: // sqlite
		return "LOWER(CAST(data AS TEXT)) LIKE ?"
	}
}
