package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"tams/internal/models"
	"tams/internal/timestamp"
)

func TestMediaObjectUpsertAndReferences(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	obj := &models.MediaObject{ObjectID: "obj-1", SizeBytes: 10, MIMEType: "video/mp2t"}
	if err := st.UpsertMediaObject(ctx, obj); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	created := obj.CreatedAt
	if err := st.UpsertMediaObject(ctx, &models.MediaObject{ObjectID: "obj-1", SizeBytes: 20}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	flow := createTestFlow(t, st, NewID(), false)
	seg := models.FlowSegment{ObjectID: "obj-1", TimeRange: timestamp.TimeRange{Start: timestamp.New(0, 0), End: timestamp.New(1, 0)}}
	if err := st.ApplySegmentChanges(ctx, flow.ID, segChange(seg)); err != nil {
		t.Fatalf("insert segment: %v", err)
	}

	got, err := st.GetMediaObject(ctx, "obj-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.SizeBytes != 20 || got.MIMEType != "" {
		t.Fatalf("expected refreshed size and mime, got %#v", got)
	}
	if !got.CreatedAt.Equal(created) {
		t.Fatalf("created_at changed: %v -> %v", created, got.CreatedAt)
	}
	if len(got.FlowReferences) != 1 || got.FlowReferences[0] != flow.ID {
		t.Fatalf("unexpected refs %v", got.FlowReferences)
	}

	if _, err := st.GetMediaObject(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReapUnreferencedObjectsSkipsReferenced(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	flow := createTestFlow(t, st, NewID(), false)

	for _, id := range []string{"keep", "drop"} {
		if err := st.UpsertMediaObject(ctx, &models.MediaObject{ObjectID: id, SizeBytes: 1}); err != nil {
			t.Fatalf("upsert %s: %v", id, err)
		}
	}
	seg := models.FlowSegment{ObjectID: "keep", TimeRange: timestamp.TimeRange{Start: timestamp.New(0, 0), End: timestamp.New(1, 0)}}
	if err := st.ApplySegmentChanges(ctx, flow.ID, segChange(seg)); err != nil {
		t.Fatalf("insert segment: %v", err)
	}

	reaped, err := st.ReapUnreferencedObjects(ctx, []string{"keep", "drop"})
	if err != nil {
		t.Fatalf("reap: %v", err)
	}
	if len(reaped) != 1 || reaped[0] != "drop" {
		t.Fatalf("expected only drop reaped, got %v", reaped)
	}
	if _, err := st.GetMediaObject(ctx, "drop"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected drop record removed, got %v", err)
	}
	if _, err := st.GetMediaObject(ctx, "keep"); err != nil {
		t.Fatalf("keep must survive: %v", err)
	}
}

func TestListOrphanedObjectsHonorsCutoff(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	old := time.Now().Add(-48 * time.Hour)

	if err := st.UpsertMediaObject(ctx, &models.MediaObject{ObjectID: "old", SizeBytes: 1, CreatedAt: old}); err != nil {
		t.Fatalf("upsert old: %v", err)
	}
	if err := st.UpsertMediaObject(ctx, &models.MediaObject{ObjectID: "fresh", SizeBytes: 1}); err != nil {
		t.Fatalf("upsert fresh: %v", err)
	}

	ids, err := st.ListOrphanedObjects(ctx, time.Now().Add(-24*time.Hour), 0)
	if err != nil {
		t.Fatalf("list orphans: %v", err)
	}
	if len(ids) != 1 || ids[0] != "old" {
		t.Fatalf("expected only old orphan, got %v", ids)
	}

	stats, err := st.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.MediaObjects != 2 {
		t.Fatalf("expected 2 media objects, got %d", stats.MediaObjects)
	}
}
