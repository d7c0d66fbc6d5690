package store

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tams/internal/models"
	"tams/internal/timestamp"
)

// testStore creates a temporary store for testing.
func testStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	st, err := Open(path)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func createTestFlow(t *testing.T, st *Store, id string, readOnly bool) *models.Flow {
	t.Helper()
	now := time.Now().UTC()
	flow := &models.Flow{
		ID:        id,
		Format:    models.FormatVideo,
		Tags:      map[string]string{},
		ReadOnly:  readOnly,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := st.CreateFlow(context.Background(), flow); err != nil {
		t.Fatalf("create flow: %v", err)
	}
	return flow
}

func TestSourceCRUD(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	src := &models.Source{
		ID:        NewID(),
		Format:    models.FormatAudio,
		Label:     "studio-a",
		Tags:      map[string]string{"room": "a"},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := st.CreateSource(ctx, src); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := st.GetSource(ctx, src.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Label != "studio-a" || got.Format != models.FormatAudio || got.Tags["room"] != "a" {
		t.Fatalf("unexpected source %#v", got)
	}
	if !got.CreatedAt.Equal(now) {
		t.Fatalf("expected created_at %v, got %v", now, got.CreatedAt)
	}

	got.Description = "updated"
	got.UpdatedAt = now.Add(time.Minute)
	if err := st.UpdateSource(ctx, got); err != nil {
		t.Fatalf("update: %v", err)
	}
	again, err := st.GetSource(ctx, src.ID)
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if again.Description != "updated" {
		t.Fatalf("expected description updated, got %q", again.Description)
	}

	if err := st.DeleteSource(ctx, src.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := st.GetSource(ctx, src.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := st.DeleteSource(ctx, src.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestListSourcesFiltersAndPages(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	base := time.Now().UTC()

	for i, format := range []models.ContentFormat{models.FormatVideo, models.FormatAudio, models.FormatVideo} {
		ts := base.Add(time.Duration(i) * time.Second)
		src := &models.Source{ID: NewID(), Format: format, CreatedAt: ts, UpdatedAt: ts}
		if err := st.CreateSource(ctx, src); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	video := models.FormatVideo
	list, err := st.ListSources(ctx, SourceFilter{Format: &video})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 video sources, got %d", len(list))
	}

	page, err := st.ListSources(ctx, SourceFilter{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("list page: %v", err)
	}
	if len(page) != 1 || page[0].Format != models.FormatVideo {
		t.Fatalf("unexpected last page %#v", page)
	}
}

func TestFlowCRUDKeepsAttributes(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	src := &models.Source{ID: NewID(), Format: models.FormatVideo, CreatedAt: now, UpdatedAt: now}
	if err := st.CreateSource(ctx, src); err != nil {
		t.Fatalf("create source: %v", err)
	}

	width, height := 1920, 1080
	bitRate := int64(8000)
	flow := &models.Flow{
		ID:          NewID(),
		SourceID:    src.ID,
		Format:      models.FormatVideo,
		Label:       "main",
		Codec:       "video/h264",
		Container:   "video/mp2t",
		FrameWidth:  &width,
		FrameHeight: &height,
		MaxBitRate:  &bitRate,
		Tags:        map[string]string{"genre": "news"},
		FlowCollection: &models.FlowCollection{Flows: []models.FlowCollectionItem{
			{FlowID: "member-1", Role: "audio", ContainerMap: &models.ContainerMap{TrackID: "2"}},
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := st.CreateFlow(ctx, flow); err != nil {
		t.Fatalf("create flow: %v", err)
	}

	got, err := st.GetFlow(ctx, flow.ID)
	if err != nil {
		t.Fatalf("get flow: %v", err)
	}
	if got.SourceID != src.ID || got.Codec != "video/h264" || got.FrameWidth == nil || *got.FrameWidth != 1920 {
		t.Fatalf("unexpected flow %#v", got)
	}
	if got.MaxBitRate == nil || *got.MaxBitRate != 8000 || got.AvgBitRate != nil {
		t.Fatalf("unexpected bit rates %v %v", got.MaxBitRate, got.AvgBitRate)
	}
	if got.FlowCollection == nil || len(got.FlowCollection.Flows) != 1 || got.FlowCollection.Flows[0].ContainerMap.TrackID != "2" {
		t.Fatalf("unexpected collection %#v", got.FlowCollection)
	}
	if got.AvailableTimeRange != nil {
		t.Fatalf("new flow must have no available range, got %v", got.AvailableTimeRange)
	}

	list, err := st.ListFlows(ctx, FlowFilter{SourceID: src.ID})
	if err != nil {
		t.Fatalf("list flows: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected one flow for source, got %d", len(list))
	}

	if err := st.DeleteSource(ctx, src.ID); err != nil {
		t.Fatalf("delete source: %v", err)
	}
	orphan, err := st.GetFlow(ctx, flow.ID)
	if err != nil {
		t.Fatalf("get flow after source delete: %v", err)
	}
	if orphan.SourceID != "" {
		t.Fatalf("expected source id cleared, got %q", orphan.SourceID)
	}
}

func TestUpdateMissingFlowReturnsNotFound(t *testing.T) {
	st := testStore(t)
	flow := &models.Flow{ID: NewID(), Format: models.FormatData, UpdatedAt: time.Now()}
	if err := st.UpdateFlow(context.Background(), flow); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteFlowCascadesSegments(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	flow := createTestFlow(t, st, NewID(), false)

	r := timestamp.TimeRange{Start: timestamp.New(0, 0), End: timestamp.New(10, 0)}
	seg := models.FlowSegment{ObjectID: "obj-1", TimeRange: r, CreatedAt: time.Now()}
	if err := st.ApplySegmentChanges(ctx, flow.ID, segChange(seg)); err != nil {
		t.Fatalf("insert segment: %v", err)
	}

	ids, err := st.DeleteFlow(ctx, flow.ID)
	if err != nil {
		t.Fatalf("delete flow: %v", err)
	}
	if len(ids) != 1 || ids[0] != "obj-1" {
		t.Fatalf("expected obj-1 released, got %v", ids)
	}
	refs, err := st.ObjectFlowReferences(ctx, "obj-1")
	if err != nil {
		t.Fatalf("refs: %v", err)
	}
	if len(refs) != 0 {
		t.Fatalf("expected no references after cascade, got %v", refs)
	}
	if _, err := st.DeleteFlow(ctx, flow.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestValidateID(t *testing.T) {
	if err := ValidateID(NewID()); err != nil {
		t.Fatalf("generated id rejected: %v", err)
	}
	for _, bad := range []string{"", "abc", "6BA7B810-9DAD-11D1-80B4-00C04FD430C8"} {
		if err := ValidateID(bad); err == nil {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}

func TestRecycledConnectionKeepsPragmas(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	st.db.SetConnMaxLifetime(time.Millisecond)
	t.Cleanup(func() { st.db.SetConnMaxLifetime(connMaxLifetime) })

	now := time.Now().UTC()
	src := &models.Source{ID: "4d60a411-0000-4000-8000-000000000001", Format: models.FormatVideo, Tags: map[string]string{}, CreatedAt: now, UpdatedAt: now}
	if err := st.CreateSource(ctx, src); err != nil {
		t.Fatalf("create source: %v", err)
	}
	flow := createTestFlow(t, st, "flow-with-source", false)
	flow.SourceID = src.ID
	if err := st.UpdateFlow(ctx, flow); err != nil {
		t.Fatalf("attach source: %v", err)
	}

	time.Sleep(20 * time.Millisecond)

	var foreignKeys, busyTimeout int
	if err := st.db.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&foreignKeys); err != nil {
		t.Fatalf("read foreign_keys: %v", err)
	}
	if err := st.db.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&busyTimeout); err != nil {
		t.Fatalf("read busy_timeout: %v", err)
	}
	if foreignKeys != 1 || busyTimeout != busyTimeoutMS {
		t.Fatalf("pragmas lost on new connection: foreign_keys=%d busy_timeout=%d", foreignKeys, busyTimeout)
	}

	time.Sleep(20 * time.Millisecond)
	if err := st.DeleteSource(ctx, src.ID); err != nil {
		t.Fatalf("delete source: %v", err)
	}
	got, err := st.GetFlow(ctx, flow.ID)
	if err != nil {
		t.Fatalf("get flow: %v", err)
	}
	if got.SourceID != "" {
		t.Fatalf("flow still references deleted source %q", got.SourceID)
	}
}

func TestDSNCarriesPragmas(t *testing.T) {
	dsn, err := DSN("/var/lib/tams/tams.db")
	if err != nil {
		t.Fatalf("dsn: %v", err)
	}
	for _, want := range []string{"foreign_keys%281%29", "busy_timeout%285000%29", "synchronous%28NORMAL%29"} {
		if !strings.Contains(dsn, want) {
			t.Fatalf("dsn %q missing %s", dsn, want)
		}
	}
	if !strings.HasPrefix(dsn, "file:///var/lib/tams/tams.db?") {
		t.Fatalf("unexpected dsn prefix %q", dsn)
	}
	if _, err := DSN(""); err == nil {
		t.Fatal("expected error for empty path")
	}

	rel, err := DSN("catalog.db")
	if err != nil {
		t.Fatalf("relative dsn: %v", err)
	}
	if !strings.HasPrefix(rel, "file:///") {
		t.Fatalf("expected relative path resolved to absolute, got %q", rel)
	}
}
