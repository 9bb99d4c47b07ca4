package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/trailworks/trail/internal/database/testutil"
	"github.com/trailworks/trail/internal/models"
)

const (
	tenantA = "11111111-1111-1111-1111-111111111111"
	tenantB = "22222222-2222-2222-2222-222222222222"
)

func newTestLogService(t *testing.T, cfg LogConfig) (*LogService, *gorm.DB) {
	t.Helper()

	db := testutil.MustOpenTestDB(t)
	svc, err := NewLogService(db, cfg)
	require.NoError(t, err)
	return svc, db
}

func strPtr(s string) *string {
	return &s
}

func seedEntry(t *testing.T, db *gorm.DB, entry models.LogEntry) models.LogEntry {
	t.Helper()
	require.NoError(t, db.Create(&entry).Error)
	return entry
}

func TestLogServiceLogDefaultsSeverityAndGeneratesID(t *testing.T) {
	svc, _ := newTestLogService(t, LogConfig{})

	ctx := context.Background()
	entry, err := svc.Log(ctx, LogInput{
		TenantID: tenantA,
		Module:   "auth",
		Action:   "auth.login",
		Data:     map[string]any{"method": "password"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, entry.ID)
	require.Equal(t, models.SeverityInfo, entry.Severity)
	require.False(t, entry.CreatedAt.IsZero())

	var payload map[string]any
	require.NoError(t, json.Unmarshal(entry.Data, &payload))
	require.Equal(t, "password", payload["method"])
}

func TestLogServiceLogValidatesInput(t *testing.T) {
	svc, _ := newTestLogService(t, LogConfig{})
	ctx := context.Background()

	_, err := svc.Log(ctx, LogInput{Module: "auth", Action: "auth.login"})
	require.Error(t, err)

	_, err = svc.Log(ctx, LogInput{TenantID: tenantA, Action: "auth.login"})
	require.Error(t, err)

	_, err = svc.Log(ctx, LogInput{TenantID: tenantA, Module: "auth"})
	require.Error(t, err)

	_, err = svc.Log(ctx, LogInput{
		TenantID: tenantA,
		Module:   "auth",
		Action:   "auth.login",
		Severity: "NOISE",
	})
	require.Error(t, err)
}

func TestLogServiceLogManyBatches(t *testing.T) {
	svc, db := newTestLogService(t, LogConfig{BatchInsertSize: 2})
	ctx := context.Background()

	inputs := make([]LogInput, 5)
	for i := range inputs {
		inputs[i] = LogInput{
			TenantID: tenantA,
			Module:   "sessions",
			Action:   "sessions.open",
		}
	}

	entries, err := svc.LogMany(ctx, inputs)
	require.NoError(t, err)
	require.Len(t, entries, 5)
	for _, entry := range entries {
		require.NotEmpty(t, entry.ID)
	}

	var total int64
	require.NoError(t, db.Model(&models.LogEntry{}).Count(&total).Error)
	require.Equal(t, int64(5), total)

	empty, err := svc.LogMany(ctx, nil)
	require.NoError(t, err)
	require.Nil(t, empty)
}

func TestLogServiceGetScopedToTenant(t *testing.T) {
	svc, db := newTestLogService(t, LogConfig{})
	ctx := context.Background()

	entry := seedEntry(t, db, models.LogEntry{
		TenantID: tenantA,
		Module:   "auth",
		Action:   "auth.login",
		Severity: models.SeverityInfo,
	})

	found, err := svc.Get(ctx, entry.ID, tenantA)
	require.NoError(t, err)
	require.Equal(t, entry.ID, found.ID)

	_, err = svc.Get(ctx, entry.ID, tenantB)
	require.ErrorIs(t, err, ErrLogEntryNotFound)

	_, err = svc.Get(ctx, "missing", tenantA)
	require.ErrorIs(t, err, ErrLogEntryNotFound)
}

func TestLogServiceListPagination(t *testing.T) {
	svc, db := newTestLogService(t, LogConfig{DefaultPageSize: 3, MaxPageSize: 5})
	ctx := context.Background()

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		seedEntry(t, db, models.LogEntry{
			TenantID:  tenantA,
			Module:    "auth",
			Action:    "auth.login",
			Severity:  models.SeverityInfo,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}

	page, err := svc.List(ctx, tenantA, LogFilter{}, 1, 0)
	require.NoError(t, err)
	require.Equal(t, 1, page.Page)
	require.Equal(t, 3, page.PageSize)
	require.Equal(t, int64(7), page.Total)
	require.Equal(t, 3, page.Pages)
	require.Len(t, page.Items, 3)

	// Newest first.
	require.Equal(t, base.Add(6*time.Minute).Unix(), page.Items[0].CreatedAt.Unix())

	last, err := svc.List(ctx, tenantA, LogFilter{}, 3, 3)
	require.NoError(t, err)
	require.Len(t, last.Items, 1)

	clamped, err := svc.List(ctx, tenantA, LogFilter{}, 0, 500)
	require.NoError(t, err)
	require.Equal(t, 1, clamped.Page)
	require.Equal(t, 5, clamped.PageSize)
	require.Equal(t, 2, clamped.Pages)

	empty, err := svc.List(ctx, tenantB, LogFilter{}, 1, 10)
	require.NoError(t, err)
	require.Zero(t, empty.Total)
	require.Zero(t, empty.Pages)
	require.Empty(t, empty.Items)
}

func TestLogServiceListFilters(t *testing.T) {
	svc, db := newTestLogService(t, LogConfig{})
	ctx := context.Background()

	seedEntry(t, db, models.LogEntry{
		TenantID: tenantA,
		Module:   "users",
		Action:   "users.login",
		Severity: models.SeverityInfo,
		ActorID:  strPtr("actor-1"),
		Data:     []byte(`{"browser":"Firefox"}`),
	})
	seedEntry(t, db, models.LogEntry{
		TenantID: tenantA,
		Module:   "users",
		Action:   "users.logout",
		Severity: models.SeverityWarning,
		ActorID:  strPtr("actor-2"),
	})
	seedEntry(t, db, models.LogEntry{
		TenantID: tenantA,
		Module:   "billing",
		Action:   "billing.charge",
		Severity: models.SeverityCritical,
		ClientID: strPtr("client-1"),
	})
	seedEntry(t, db, models.LogEntry{
		TenantID: tenantA,
		Module:   "user",
		Action:   "user.login",
		Severity: models.SeverityDebug,
	})

	page, err := svc.List(ctx, tenantA, LogFilter{Module: "users"}, 1, 10)
	require.NoError(t, err)
	require.Equal(t, int64(2), page.Total)

	page, err = svc.List(ctx, tenantA, LogFilter{Action: "users.login"}, 1, 10)
	require.NoError(t, err)
	require.Equal(t, int64(1), page.Total)

	// Wildcard: prefix match on the segment, not a bare substring.
	page, err = svc.List(ctx, tenantA, LogFilter{Action: "users.*"}, 1, 10)
	require.NoError(t, err)
	require.Equal(t, int64(2), page.Total)
	for _, item := range page.Items {
		require.Contains(t, []string{"users.login", "users.logout"}, item.Action)
	}

	page, err = svc.List(ctx, tenantA, LogFilter{Severity: models.SeverityWarning}, 1, 10)
	require.NoError(t, err)
	require.Equal(t, int64(1), page.Total)

	page, err = svc.List(ctx, tenantA, LogFilter{MinSeverity: models.SeverityWarning}, 1, 10)
	require.NoError(t, err)
	require.Equal(t, int64(2), page.Total)
	for _, item := range page.Items {
		require.GreaterOrEqual(t, item.Severity.Rank(), models.SeverityWarning.Rank())
	}

	page, err = svc.List(ctx, tenantA, LogFilter{ActorID: "actor-2"}, 1, 10)
	require.NoError(t, err)
	require.Equal(t, int64(1), page.Total)

	page, err = svc.List(ctx, tenantA, LogFilter{ClientID: "client-1"}, 1, 10)
	require.NoError(t, err)
	require.Equal(t, int64(1), page.Total)

	page, err = svc.List(ctx, tenantA, LogFilter{Search: "firefox"}, 1, 10)
	require.NoError(t, err)
	require.Equal(t, int64(1), page.Total)
	require.Equal(t, "users.login", page.Items[0].Action)
}

func TestLogServiceListDateRange(t *testing.T) {
	svc, db := newTestLogService(t, LogConfig{})
	ctx := context.Background()

	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	for day := 0; day < 5; day++ {
		seedEntry(t, db, models.LogEntry{
			TenantID:  tenantA,
			Module:    "auth",
			Action:    "auth.login",
			Severity:  models.SeverityInfo,
			CreatedAt: base.AddDate(0, 0, day),
		})
	}

	start := base.AddDate(0, 0, 1)
	end := base.AddDate(0, 0, 3)
	page, err := svc.List(ctx, tenantA, LogFilter{StartDate: &start, EndDate: &end}, 1, 10)
	require.NoError(t, err)
	require.Equal(t, int64(3), page.Total)
}

func TestLogServiceStats(t *testing.T) {
	svc, db := newTestLogService(t, LogConfig{})
	ctx := context.Background()

	// Wednesday 2026-05-06 15:00 UTC; the week started Monday 2026-05-04.
	now := time.Date(2026, 5, 6, 15, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	seedEntry(t, db, models.LogEntry{
		TenantID:  tenantA,
		Module:    "auth",
		Action:    "auth.login",
		Severity:  models.SeverityInfo,
		CreatedAt: now.Add(-1 * time.Hour), // today
	})
	seedEntry(t, db, models.LogEntry{
		TenantID:  tenantA,
		Module:    "auth",
		Action:    "auth.login",
		Severity:  models.SeverityError,
		CreatedAt: time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC), // Monday, this week
	})
	seedEntry(t, db, models.LogEntry{
		TenantID:  tenantA,
		Module:    "billing",
		Action:    "billing.charge",
		Severity:  models.SeverityError,
		CreatedAt: time.Date(2026, 5, 2, 8, 0, 0, 0, time.UTC), // Saturday, last week
	})
	seedEntry(t, db, models.LogEntry{
		TenantID:  tenantB,
		Module:    "auth",
		Action:    "auth.login",
		Severity:  models.SeverityInfo,
		CreatedAt: now,
	})

	stats, err := svc.Stats(ctx, tenantA)
	require.NoError(t, err)
	require.Equal(t, int64(3), stats.TotalEntries)
	require.Equal(t, int64(1), stats.EntriesBySeverity["INFO"])
	require.Equal(t, int64(2), stats.EntriesBySeverity["ERROR"])
	require.Equal(t, int64(2), stats.EntriesByModule["auth"])
	require.Equal(t, int64(1), stats.EntriesByModule["billing"])
	require.Equal(t, int64(1), stats.EntriesToday)
	require.Equal(t, int64(2), stats.EntriesThisWeek)
}

func TestLogServiceExportRespectsCapAndTenant(t *testing.T) {
	svc, db := newTestLogService(t, LogConfig{MaxExportRecords: 3})
	ctx := context.Background()

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		seedEntry(t, db, models.LogEntry{
			TenantID:  tenantA,
			Module:    "auth",
			Action:    "auth.login",
			Severity:  models.SeverityInfo,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
	seedEntry(t, db, models.LogEntry{
		TenantID: tenantB,
		Module:   "auth",
		Action:   "auth.login",
		Severity: models.SeverityInfo,
	})

	svc.now = func() time.Time {
		return time.Date(2026, 5, 6, 15, 4, 5, 0, time.UTC)
	}

	result, err := svc.Export(ctx, tenantA, LogFilter{}, ExportFormatJSON, false)
	require.NoError(t, err)
	require.Equal(t, 3, result.RecordCount)
	require.Equal(t, "logs_20260506_150405.json", result.Filename)

	var doc struct {
		Logs  []map[string]any `json:"logs"`
		Count int              `json:"count"`
	}
	require.NoError(t, json.Unmarshal(result.Content, &doc))
	require.Equal(t, 3, doc.Count)
	require.Len(t, doc.Logs, 3)
	for _, record := range doc.Logs {
		require.Equal(t, tenantA, record["tenant_id"])
	}

	_, err = svc.Export(ctx, tenantA, LogFilter{}, ExportFormat("xml"), false)
	require.Error(t, err)
}

func TestLogServiceCleanupOldEntries(t *testing.T) {
	svc, db := newTestLogService(t, LogConfig{RetentionDays: 30})
	ctx := context.Background()

	now := time.Date(2026, 5, 6, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	seedEntry(t, db, models.LogEntry{
		TenantID:  tenantA,
		Module:    "auth",
		Action:    "auth.login",
		Severity:  models.SeverityInfo,
		CreatedAt: now.AddDate(0, 0, -40),
	})
	// Cleanup crosses tenants: retention is a shared policy.
	seedEntry(t, db, models.LogEntry{
		TenantID:  tenantB,
		Module:    "auth",
		Action:    "auth.login",
		Severity:  models.SeverityInfo,
		CreatedAt: now.AddDate(0, 0, -35),
	})
	keep := seedEntry(t, db, models.LogEntry{
		TenantID:  tenantA,
		Module:    "auth",
		Action:    "auth.login",
		Severity:  models.SeverityInfo,
		CreatedAt: now.AddDate(0, 0, -5),
	})

	deleted, err := svc.CleanupOldEntries(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), deleted)

	var remaining []models.LogEntry
	require.NoError(t, db.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	require.Equal(t, keep.ID, remaining[0].ID)
}

func TestLogServiceCleanupDisabled(t *testing.T) {
	svc, db := newTestLogService(t, LogConfig{RetentionDays: 0})
	ctx := context.Background()

	seedEntry(t, db, models.LogEntry{
		TenantID:  tenantA,
		Module:    "auth",
		Action:    "auth.login",
		Severity:  models.SeverityInfo,
		CreatedAt: time.Now().AddDate(-1, 0, 0),
	})

	deleted, err := svc.CleanupOldEntries(ctx)
	require.NoError(t, err)
	require.Zero(t, deleted)

	var total int64
	require.NoError(t, db.Model(&models.LogEntry{}).Count(&total).Error)
	require.Equal(t, int64(1), total)
}
