package notifier

import (
	"context"
	"testing"
	"time"

	"energy-monitor/internal/logging"
	"energy-monitor/internal/models"
)

type fakeFeed struct{ events []models.AnomalyEvent }

func (f *fakeFeed) AnomaliesSince(ctx context.Context, cursor int64, limit int) ([]models.AnomalyEvent, error) {
	var out []models.AnomalyEvent
	for _, ev := range f.events {
		if ev.Cursor > cursor && len(out) < limit {
			out = append(out, ev)
		}
	}
	return out, nil
}

type fakeCursorStore struct {
	saved int64
	has   bool
	sets  int
}

func (c *fakeCursorStore) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !c.has {
		return false, nil
	}
	*dest.(*int64) = c.saved
	return true, nil
}

func (c *fakeCursorStore) SetJSON(ctx context.Context, key string, val interface{}) error {
	c.saved = val.(int64)
	c.has = true
	c.sets++
	return nil
}

type fakeProvider struct{ sent []int64 }

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Send(ctx context.Context, ev models.AnomalyEvent) error {
	p.sent = append(p.sent, ev.Cursor)
	return nil
}

func feedOf(cursors ...int64) *fakeFeed {
	f := &fakeFeed{}
	for _, c := range cursors {
		f.events = append(f.events, models.AnomalyEvent{Cursor: c, Site: models.SiteTunja, Sector: models.SectorLabs})
	}
	return f
}

func TestCursorPersistsOnlyAfterDelivery(t *testing.T) {
	cursors := &fakeCursorStore{}
	provider := &fakeProvider{}
	svc := New(feedOf(1, 2, 3), cursors, logging.Discard(), 10, 1, time.Minute, provider)
	ctx := context.Background()

	svc.poll(ctx)
	if cursors.sets != 0 {
		t.Fatalf("cursor persisted %d times before any delivery", cursors.sets)
	}
	if len(svc.tasks) != 3 {
		t.Fatalf("queued %d events, want 3", len(svc.tasks))
	}

	// Re-polling must not enqueue the same events again.
	svc.poll(ctx)
	if len(svc.tasks) != 3 {
		t.Fatalf("re-poll duplicated events, queue = %d", len(svc.tasks))
	}

	close(svc.tasks)
	svc.worker(ctx, 0)
	if len(provider.sent) != 3 {
		t.Fatalf("delivered %d events, want 3", len(provider.sent))
	}
	if cursors.saved != 3 {
		t.Errorf("persisted cursor = %d, want 3", cursors.saved)
	}
}

func TestRestoreCursorResumesPastDelivered(t *testing.T) {
	cursors := &fakeCursorStore{saved: 2, has: true}
	svc := New(feedOf(1, 2, 3), cursors, logging.Discard(), 10, 1, time.Minute, &fakeProvider{})
	ctx := context.Background()

	svc.restoreCursor(ctx)
	svc.poll(ctx)
	if len(svc.tasks) != 1 {
		t.Fatalf("queued %d events, want only the one past cursor 2", len(svc.tasks))
	}
	if ev := <-svc.tasks; ev.Cursor != 3 {
		t.Errorf("queued cursor %d, want 3", ev.Cursor)
	}
}

func TestPollDefersOnFullQueue(t *testing.T) {
	cursors := &fakeCursorStore{}
	svc := New(feedOf(1, 2, 3), cursors, logging.Discard(), 2, 1, time.Minute, &fakeProvider{})
	ctx := context.Background()

	svc.poll(ctx)
	if len(svc.tasks) != 2 {
		t.Fatalf("queued %d events, want the queue capacity of 2", len(svc.tasks))
	}

	// Draining the queue lets the next poll pick up the deferred event.
	<-svc.tasks
	<-svc.tasks
	svc.poll(ctx)
	if len(svc.tasks) != 1 {
		t.Fatalf("queued %d events after drain, want the deferred 1", len(svc.tasks))
	}
	if ev := <-svc.tasks; ev.Cursor != 3 {
		t.Errorf("deferred cursor %d, want 3", ev.Cursor)
	}
}
