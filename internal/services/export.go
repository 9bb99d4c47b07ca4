package services

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"time"

	"github.com/trailworks/trail/internal/models"
)

// ExportFormat selects the export file format.
type ExportFormat string

const (
	ExportFormatCSV  ExportFormat = "csv"
	ExportFormatJSON ExportFormat = "json"
)

// Valid reports whether the format is supported.
func (f ExportFormat) Valid() bool {
	return f == ExportFormatCSV || f == ExportFormatJSON
}

// csvColumns is the fixed column order of CSV exports. The data payload is
// appended as a final column only when requested.
var csvColumns = []string{
	"id",
	"created_at",
	"module",
	"action",
	"severity",
	"actor_id",
	"actor_email",
	"actor_name",
	"tenant_id",
	"client_id",
	"resource_type",
	"resource_id",
	"ip_address",
}

// exportCSV encodes entries in the order received, one header row plus one
// row per entry. Absent optional fields render as empty strings.
func exportCSV(entries []models.LogEntry, includeData bool) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	header := csvColumns
	if includeData {
		header = append(append([]string(nil), csvColumns...), "data")
	}
	if err := writer.Write(header); err != nil {
		return nil, err
	}

	for _, entry := range entries {
		row := []string{
			entry.ID,
			entry.CreatedAt.UTC().Format(time.RFC3339),
			entry.Module,
			entry.Action,
			string(entry.Severity),
			deref(entry.ActorID),
			deref(entry.ActorEmail),
			deref(entry.ActorName),
			entry.TenantID,
			deref(entry.ClientID),
			deref(entry.ResourceType),
			deref(entry.ResourceID),
			deref(entry.IPAddress),
		}
		if includeData {
			row = append(row, string(entry.Data))
		}
		if err := writer.Write(row); err != nil {
			return nil, err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type exportedEntry struct {
	ID           string  `json:"id"`
	CreatedAt    string  `json:"created_at"`
	Module       string  `json:"module"`
	Action       string  `json:"action"`
	Severity     string  `json:"severity"`
	ActorID      *string `json:"actor_id"`
	ActorEmail   *string `json:"actor_email"`
	ActorName    *string `json:"actor_name"`
	TenantID     string  `json:"tenant_id"`
	ClientID     *string `json:"client_id"`
	ResourceType *string `json:"resource_type"`
	ResourceID   *string `json:"resource_id"`
	IPAddress    *string `json:"ip_address"`
}

type exportedEntryWithData struct {
	exportedEntry
	Data json.RawMessage `json:"data"`
}

type exportDocument struct {
	Logs  any `json:"logs"`
	Count int `json:"count"`
}

// exportJSON encodes entries as {"logs": [...], "count": N}. Optional fields
// render as null; the data payload appears only when requested, as a nested
// object or null.
func exportJSON(entries []models.LogEntry, includeData bool) ([]byte, error) {
	flatten := func(entry models.LogEntry) exportedEntry {
		return exportedEntry{
			ID:           entry.ID,
			CreatedAt:    entry.CreatedAt.UTC().Format(time.RFC3339),
			Module:       entry.Module,
			Action:       entry.Action,
			Severity:     string(entry.Severity),
			ActorID:      entry.ActorID,
			ActorEmail:   entry.ActorEmail,
			ActorName:    entry.ActorName,
			TenantID:     entry.TenantID,
			ClientID:     entry.ClientID,
			ResourceType: entry.ResourceType,
			ResourceID:   entry.ResourceID,
			IPAddress:    entry.IPAddress,
		}
	}

	var logs any
	if includeData {
		records := make([]exportedEntryWithData, 0, len(entries))
		for _, entry := range entries {
			record := exportedEntryWithData{exportedEntry: flatten(entry)}
			if len(entry.Data) > 0 {
				record.Data = json.RawMessage(entry.Data)
			}
			records = append(records, record)
		}
		logs = records
	} else {
		records := make([]exportedEntry, 0, len(entries))
		for _, entry := range entries {
			records = append(records, flatten(entry))
		}
		logs = records
	}

	return json.MarshalIndent(exportDocument{Logs: logs, Count: len(entries)}, "", "  ")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// exportFilename derives the download file name from a UTC timestamp.
func exportFilename(format ExportFormat, now time.Time) string {
	return fmt.Sprintf("logs_%s.%s", now.UTC().Format("20060102_150405"), format)
}
