package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/trailworks/trail/internal/models"
	"github.com/trailworks/trail/pkg/metrics"
)

// ErrLogEntryNotFound signals a lookup miss. A tenant mismatch is reported
// identically so callers cannot probe for entries owned by other tenants.
var ErrLogEntryNotFound = errors.New("log service: log entry not found")

// LogConfig carries the tunable limits for the log service. It is passed in
// at construction so the service holds no ambient global state.
type LogConfig struct {
	DefaultPageSize  int
	MaxPageSize      int
	MaxExportRecords int
	RetentionDays    int // 0 or negative disables retention cleanup
	BatchInsertSize  int
}

func (c LogConfig) withDefaults() LogConfig {
	if c.DefaultPageSize <= 0 {
		c.DefaultPageSize = 50
	}
	if c.MaxPageSize <= 0 {
		c.MaxPageSize = 100
	}
	if c.MaxExportRecords <= 0 {
		c.MaxExportRecords = 10000
	}
	if c.BatchInsertSize <= 0 {
		c.BatchInsertSize = 100
	}
	return c
}

// LogInput holds the fields accepted when recording a new log entry.
type LogInput struct {
	TenantID string
	ClientID *string

	ActorID    *string
	ActorEmail *string
	ActorName  *string

	Module   string
	Action   string
	Severity models.Severity

	ResourceType *string
	ResourceID   *string

	Data map[string]any

	IPAddress *string
	UserAgent *string
	RequestID *string
}

// LogPage is one page of a filtered, tenant-scoped listing.
type LogPage struct {
	Items    []models.LogEntry
	Total    int64
	Page     int
	PageSize int
	Pages    int
}

// LogStats aggregates per-tenant counters for dashboards.
type LogStats struct {
	TotalEntries      int64            `json:"total_entries"`
	EntriesBySeverity map[string]int64 `json:"entries_by_severity"`
	EntriesByModule   map[string]int64 `json:"entries_by_module"`
	EntriesToday      int64            `json:"entries_today"`
	EntriesThisWeek   int64            `json:"entries_this_week"`
}

// ExportResult carries the generated export document.
type ExportResult struct {
	Content     []byte
	Filename    string
	RecordCount int
}

// LogService persists and retrieves audit log entries.
type LogService struct {
	db  *gorm.DB
	cfg LogConfig
	now func() time.Time
}

// NewLogService constructs a LogService using the provided database handle
// and limits.
func NewLogService(db *gorm.DB, cfg LogConfig) (*LogService, error) {
	if db == nil {
		return nil, errors.New("log service: db is required")
	}
	return &LogService{db: db, cfg: cfg.withDefaults(), now: time.Now}, nil
}

// Log stores a single entry. Severity defaults to INFO when unspecified.
// The returned entry carries the generated id and creation timestamp.
func (s *LogService) Log(ctx context.Context, input LogInput) (*models.LogEntry, error) {
	entry, err := buildEntry(input)
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, fmt.Errorf("log service: create entry: %w", err)
	}

	metrics.EntriesLogged.WithLabelValues(entry.Module, string(entry.Severity)).Inc()
	return entry, nil
}

// LogMany stores a batch of entries in chunks of the configured batch size.
func (s *LogService) LogMany(ctx context.Context, inputs []LogInput) ([]models.LogEntry, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	entries := make([]models.LogEntry, 0, len(inputs))
	for i, input := range inputs {
		entry, err := buildEntry(input)
		if err != nil {
			return nil, fmt.Errorf("log service: entry %d: %w", i, err)
		}
		entries = append(entries, *entry)
	}

	if err := s.db.WithContext(ctx).CreateInBatches(&entries, s.cfg.BatchInsertSize).Error; err != nil {
		return nil, fmt.Errorf("log service: create entries: %w", err)
	}

	for _, entry := range entries {
		metrics.EntriesLogged.WithLabelValues(entry.Module, string(entry.Severity)).Inc()
	}
	return entries, nil
}

// Get returns a single entry scoped to the tenant.
func (s *LogService) Get(ctx context.Context, id, tenantID string) (*models.LogEntry, error) {
	var entry models.LogEntry
	err := s.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLogEntryNotFound
		}
		return nil, fmt.Errorf("log service: get entry: %w", err)
	}
	return &entry, nil
}

// List returns filtered entries ordered newest first, with a total count of
// all matching rows. The count and page fetch are two independent queries;
// a concurrent write between them may leave the total stale by one.
func (s *LogService) List(ctx context.Context, tenantID string, filter LogFilter, page, pageSize int) (*LogPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = s.cfg.DefaultPageSize
	}
	if pageSize > s.cfg.MaxPageSize {
		pageSize = s.cfg.MaxPageSize
	}

	query := s.db.WithContext(ctx).
		Model(&models.LogEntry{}).
		Where("tenant_id = ?", tenantID)
	query = applyLogFilters(query, filter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("log service: count entries: %w", err)
	}

	var items []models.LogEntry
	if err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("log service: list entries: %w", err)
	}

	pages := 0
	if total > 0 {
		pages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}

	return &LogPage{
		Items:    items,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		Pages:    pages,
	}, nil
}

// Stats returns per-tenant aggregates. The five counters are independent
// queries over a live table, so they carry no point-in-time guarantee
// relative to each other.
func (s *LogService) Stats(ctx context.Context, tenantID string) (*LogStats, error) {
	now := s.now().UTC()
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	// Week starts Monday (ISO weekday numbering).
	weekStart := todayStart.AddDate(0, 0, -((int(now.Weekday()) + 6) % 7))

	scoped := func() *gorm.DB {
		return s.db.WithContext(ctx).Model(&models.LogEntry{}).Where("tenant_id = ?", tenantID)
	}

	stats := &LogStats{
		EntriesBySeverity: map[string]int64{},
		EntriesByModule:   map[string]int64{},
	}

	if err := scoped().Count(&stats.TotalEntries).Error; err != nil {
		return nil, fmt.Errorf("log service: count total: %w", err)
	}

	type groupCount struct {
		Key   string
		Count int64
	}

	var bySeverity []groupCount
	if err := scoped().
		Select("severity AS key, COUNT(*) AS count").
		Group("severity").
		Scan(&bySeverity).Error; err != nil {
		return nil, fmt.Errorf("log service: count by severity: %w", err)
	}
	for _, row := range bySeverity {
		stats.EntriesBySeverity[row.Key] = row.Count
	}

	var byModule []groupCount
	if err := scoped().
		Select("module AS key, COUNT(*) AS count").
		Group("module").
		Scan(&byModule).Error; err != nil {
		return nil, fmt.Errorf("log service: count by module: %w", err)
	}
	for _, row := range byModule {
		stats.EntriesByModule[row.Key] = row.Count
	}

	if err := scoped().Where("created_at >= ?", todayStart).Count(&stats.EntriesToday).Error; err != nil {
		return nil, fmt.Errorf("log service: count today: %w", err)
	}

	if err := scoped().Where("created_at >= ?", weekStart).Count(&stats.EntriesThisWeek).Error; err != nil {
		return nil, fmt.Errorf("log service: count this week: %w", err)
	}

	return stats, nil
}

// Export fetches up to MaxExportRecords matching entries, newest first, and
// encodes them in the requested format. Truncation at the cap is silent;
// callers that need completeness should compare RecordCount against their
// expectations.
func (s *LogService) Export(ctx context.Context, tenantID string, filter LogFilter, format ExportFormat, includeData bool) (*ExportResult, error) {
	if !format.Valid() {
		return nil, fmt.Errorf("log service: unsupported export format %q", format)
	}

	query := s.db.WithContext(ctx).
		Model(&models.LogEntry{}).
		Where("tenant_id = ?", tenantID)
	query = applyLogFilters(query, filter)

	var entries []models.LogEntry
	if err := query.
		Order("created_at DESC").
		Limit(s.cfg.MaxExportRecords).
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("log service: fetch entries: %w", err)
	}

	var (
		content []byte
		err     error
	)
	switch format {
	case ExportFormatJSON:
		content, err = exportJSON(entries, includeData)
	default:
		content, err = exportCSV(entries, includeData)
	}
	if err != nil {
		return nil, fmt.Errorf("log service: encode export: %w", err)
	}

	metrics.EntriesExported.WithLabelValues(string(format)).Add(float64(len(entries)))

	return &ExportResult{
		Content:     content,
		Filename:    exportFilename(format, s.now()),
		RecordCount: len(entries),
	}, nil
}

// CleanupOldEntries deletes entries older than the retention window across
// all tenants. Retention is a shared policy, so unlike every other operation
// this one is deliberately not tenant-scoped. Returns the number of rows
// deleted; a disabled retention (days <= 0) is a no-op returning 0.
func (s *LogService) CleanupOldEntries(ctx context.Context) (int64, error) {
	if s.cfg.RetentionDays <= 0 {
		return 0, nil
	}

	cutoff := s.now().UTC().AddDate(0, 0, -s.cfg.RetentionDays)

	result := s.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&models.LogEntry{})
	if result.Error != nil {
		return 0, fmt.Errorf("log service: cleanup entries: %w", result.Error)
	}

	metrics.EntriesPurged.Add(float64(result.RowsAffected))
	return result.RowsAffected, nil
}

func buildEntry(input LogInput) (*models.LogEntry, error) {
	if strings.TrimSpace(input.TenantID) == "" {
		return nil, errors.New("log service: tenant id is required")
	}
	if strings.TrimSpace(input.Module) == "" {
		return nil, errors.New("log service: module is required")
	}
	if strings.TrimSpace(input.Action) == "" {
		return nil, errors.New("log service: action is required")
	}

	severity := input.Severity
	if severity == "" {
		severity = models.SeverityInfo
	}
	if !severity.Valid() {
		return nil, fmt.Errorf("log service: invalid severity %q", input.Severity)
	}

	var payload datatypes.JSON
	if input.Data != nil {
		encoded, err := json.Marshal(input.Data)
		if err != nil {
			return nil, fmt.Errorf("log service: marshal data payload: %w", err)
		}
		payload = datatypes.JSON(encoded)
	}

	return &models.LogEntry{
		TenantID:     strings.TrimSpace(input.TenantID),
		ClientID:     input.ClientID,
		ActorID:      input.ActorID,
		ActorEmail:   input.ActorEmail,
		ActorName:    input.ActorName,
		Module:       strings.TrimSpace(input.Module),
		Action:       strings.TrimSpace(input.Action),
		Severity:     severity,
		ResourceType: input.ResourceType,
		ResourceID:   input.ResourceID,
		Data:         payload,
		IPAddress:    input.IPAddress,
		UserAgent:    input.UserAgent,
		RequestID:    input.RequestID,
	}, nil
}
