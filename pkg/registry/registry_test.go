package registry

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)

func activity(id, taskType string) Activity {
	return Activity{
		ID:          id,
		DisplayName: id,
		Category:    "research",
		TaskType:    taskType,
		Timeout:     "5m",
		Retries:     3,
	}
}

func TestRegistry_SaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "activities.json")
	reg := New("1.0.0", fixedNow)
	reg.Upsert(activity("search-products", "research-search-products"), fixedNow)

	require.NoError(t, reg.Save(path))

	loaded, err := LoadRegistry(path)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", loaded.Version)
	assert.Equal(t, "2026-10-15T09:00:00Z", loaded.LastUpdated)
	require.Len(t, loaded.Activities, 1)
	assert.Equal(t, "research-search-products", loaded.Activities[0].TaskType)
}

func TestRegistry_UpsertReplacesAndSorts(t *testing.T) {
	reg := New("1.0.0", fixedNow)
	reg.Upsert(activity("search-products", "research-search-products"), fixedNow)
	reg.Upsert(activity("extract-event", "extract-event"), fixedNow)

	updated := activity("search-products", "research-search-products")
	updated.Timeout = "10m"
	later := fixedNow.Add(time.Hour)
	reg.Upsert(updated, later)

	require.Len(t, reg.Activities, 2)
	assert.Equal(t, "extract-event", reg.Activities[0].ID)
	assert.Equal(t, "10m", reg.Activities[1].Timeout)
	assert.Equal(t, "2026-10-15T10:00:00Z", reg.LastUpdated)

	_, ok := reg.Find("scrape-products")
	assert.False(t, ok)
}

func TestRegistry_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *ActivityRegistry)
		wantErr string
	}{
		{"valid", func(r *ActivityRegistry) {}, ""},
		{"empty", func(r *ActivityRegistry) { r.Activities = nil }, "no activities"},
		{"duplicate id", func(r *ActivityRegistry) {
			r.Activities = append(r.Activities, activity("extract-event", "other"))
		}, "duplicate activity ID"},
		{"shared task type", func(r *ActivityRegistry) {
			r.Activities = append(r.Activities, activity("extract-event-v2", "extract-event"))
		}, "share task type"},
		{"missing category", func(r *ActivityRegistry) { r.Activities[0].Category = "" }, "Category"},
		{"bad timeout", func(r *ActivityRegistry) { r.Activities[0].Timeout = "five minutes" }, "invalid timeout"},
		{"negative retries", func(r *ActivityRegistry) { r.Activities[0].Retries = -1 }, "negative retries"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := New("1.0.0", fixedNow)
			reg.Upsert(activity("extract-event", "extract-event"), fixedNow)
			reg.Upsert(activity("search-products", "research-search-products"), fixedNow)
			tt.mutate(reg)

			err := reg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
