package deletion

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"tams/internal/models"
	"tams/internal/objectstore"
	"tams/internal/store"
	"tams/internal/timestamp"
)

// racingCatalog starts a segment insert for the checked object in another
// flow right after the reference check commits.
type racingCatalog struct {
	ObjectCatalog
	insert func()
	once   sync.Once
}

func (c *racingCatalog) ReapUnreferencedObjects(ctx context.Context, ids []string) ([]string, error) {
	reaped, err := c.ObjectCatalog.ReapUnreferencedObjects(ctx, ids)
	c.once.Do(c.insert)
	return reaped, err
}

type deleteRecorder struct {
	objectstore.ObjectStore
	onDelete func(id string)
}

func (d *deleteRecorder) Delete(ctx context.Context, id string) error {
	d.onDelete(id)
	return d.ObjectStore.Delete(ctx, id)
}

func TestReapOrdersAgainstConcurrentInsert(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	flowA := f.flowWithObjects(t, "cc33-shared")
	flowB := f.flowWithObjects(t)

	if _, _, err := f.index.RemoveAllForFlow(ctx, flowA); err != nil {
		t.Fatalf("remove flow a segments: %v", err)
	}

	var (
		inserted  atomic.Bool
		insertErr error
		wg        sync.WaitGroup
	)
	catalog := &racingCatalog{ObjectCatalog: f.st}
	catalog.insert = func() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := timestamp.TimeRange{Start: timestamp.New(0, 0), End: timestamp.New(10, 0)}
			_, insertErr = f.index.Insert(ctx, flowB, models.FlowSegment{ObjectID: "cc33-shared", TimeRange: r})
			inserted.Store(true)
		}()
		time.Sleep(50 * time.Millisecond)
	}
	var insertedBeforeDelete bool
	objects := &deleteRecorder{ObjectStore: f.objects, onDelete: func(string) {
		insertedBeforeDelete = inserted.Load()
	}}

	reaper := NewReaper(catalog, objects, f.index, nil)
	result, err := reaper.Reap(ctx, []string{"cc33-shared"})
	if err != nil {
		t.Fatalf("reap: %v", err)
	}
	wg.Wait()
	if insertErr != nil {
		t.Fatalf("insert: %v", insertErr)
	}
	if result.Removed != 1 {
		t.Fatalf("unexpected result %#v", result)
	}
	if insertedBeforeDelete {
		t.Fatal("segment insert completed between the reference check and the payload delete")
	}
}

func TestReapKeepsObjectReferencedByAnotherFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	flowA := f.flowWithObjects(t, "dd44-shared")
	flowB := f.flowWithObjects(t)

	r := timestamp.TimeRange{Start: timestamp.New(0, 0), End: timestamp.New(10, 0)}
	if _, err := f.index.Insert(ctx, flowB, models.FlowSegment{ObjectID: "dd44-shared", TimeRange: r}); err != nil {
		t.Fatalf("insert into flow b: %v", err)
	}
	_, released, err := f.index.RemoveAllForFlow(ctx, flowA)
	if err != nil {
		t.Fatalf("remove flow a segments: %v", err)
	}

	reaper := NewReaper(f.st, f.objects, f.index, nil)
	result, err := reaper.Reap(ctx, released)
	if err != nil {
		t.Fatalf("reap: %v", err)
	}
	if result.Removed != 0 {
		t.Fatalf("shared object must survive, got %#v", result)
	}
	if _, err := f.objects.Get(ctx, "dd44-shared"); err != nil {
		t.Fatalf("payload must remain: %v", err)
	}
	if _, err := f.st.GetMediaObject(ctx, "dd44-shared"); errors.Is(err, store.ErrNotFound) {
		t.Fatal("record must remain")
	}
}
