package notifier

import (
	"context"
	"sync"
	"time"

	"energy-monitor/internal/logging"
	"energy-monitor/internal/metrics"
	"energy-monitor/internal/models"
)

// Feed lists newly created anomaly events past a cursor. The store assigns
// cursors monotonically, so polling this survives restarts and downtime.
type Feed interface {
	AnomaliesSince(ctx context.Context, cursor int64, limit int) ([]models.AnomalyEvent, error)
}

// CursorStore persists the delivery cursor between restarts.
type CursorStore interface {
	GetJSON(ctx context.Context, key string, dest interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, val interface{}) error
}

// Provider delivers one event over an external channel.
type Provider interface {
	Name() string
	Send(ctx context.Context, ev models.AnomalyEvent) error
}

const cursorKey = "notifier:cursor"

// Service polls the anomaly feed and fans events out to delivery providers
// through a bounded worker pool. Delivery mechanics stay out of the scoring
// core: this side channel only consumes "events since cursor X".
type Service struct {
	feed      Feed
	cursors   CursorStore
	providers []Provider
	logger    *logging.Logger

	tasks    chan models.AnomalyEvent
	interval time.Duration
	workers  int

	mu        sync.Mutex
	cursor    int64 // poll position, advanced at enqueue
	delivered int64 // persisted restart point, advanced after delivery
}

// New builds the notifier. cursors may be nil, in which case delivery
// restarts from the latest events only.
func New(feed Feed, cursors CursorStore, logger *logging.Logger, queueSize, workers int, interval time.Duration, providers ...Provider) *Service {
	if queueSize <= 0 {
		queueSize = 500
	}
	if workers <= 0 {
		workers = 4
	}
	return &Service{
		feed:      feed,
		cursors:   cursors,
		providers: providers,
		logger:    logger,
		tasks:     make(chan models.AnomalyEvent, queueSize),
		interval:  interval,
		workers:   workers,
	}
}

// Run starts the worker pool and the poll loop, blocking until ctx ends.
func (s *Service) Run(ctx context.Context) {
	if len(s.providers) == 0 {
		s.logger.Warnf("notifier has no providers configured, not starting")
		return
	}
	s.restoreCursor(ctx)

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			s.worker(ctx, id)
		}(i)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.logger.Infof("notifier started: workers=%d interval=%s", s.workers, s.interval)

	for {
		select {
		case <-ctx.Done():
			close(s.tasks)
			wg.Wait()
			s.logger.Infof("notifier stopped")
			return
		case <-ticker.C:
			s.poll(ctx)
		}
	}
}

func (s *Service) poll(ctx context.Context) {
	s.mu.Lock()
	cursor := s.cursor
	s.mu.Unlock()

	events, err := s.feed.AnomaliesSince(ctx, cursor, 100)
	if err != nil {
		s.logger.Errorf("anomaly feed poll failed: %v", err)
		return
	}

	for _, ev := range events {
		select {
		case s.tasks <- ev:
			s.mu.Lock()
			if ev.Cursor > s.cursor {
				s.cursor = ev.Cursor
			}
			s.mu.Unlock()
		default:
			// Queue full: stop here, the next poll resumes from the cursor.
			s.logger.Warnf("notifier queue full, deferring %d events", len(events))
			return
		}
	}
}

func (s *Service) worker(ctx context.Context, id int) {
	for ev := range s.tasks {
		for _, p := range s.providers {
			if err := p.Send(ctx, ev); err != nil {
				s.logger.Errorf("worker %d: %s delivery for anomaly %s failed: %v", id, p.Name(), ev.ID, err)
				metrics.NotificationsSent.WithLabelValues(p.Name(), "failed").Inc()
				continue
			}
			metrics.NotificationsSent.WithLabelValues(p.Name(), "success").Inc()
			s.logger.Infof("worker %d: %s alert delivered for anomaly %s (%s/%s %s)",
				id, p.Name(), ev.ID, ev.Site, ev.Sector, ev.Severity)
		}
		// Persist only after the delivery attempt, so events that were
		// still queued at crash time are re-polled on restart.
		s.markDelivered(ctx, ev.Cursor)
	}
}

func (s *Service) restoreCursor(ctx context.Context) {
	if s.cursors == nil {
		return
	}
	var saved int64
	hit, err := s.cursors.GetJSON(ctx, cursorKey, &saved)
	if err != nil {
		s.logger.Warnf("restore notifier cursor failed: %v", err)
		return
	}
	if hit {
		s.mu.Lock()
		s.cursor = saved
		s.delivered = saved
		s.mu.Unlock()
		s.logger.Infof("notifier resuming from cursor %d", saved)
	}
}

func (s *Service) markDelivered(ctx context.Context, cursor int64) {
	s.mu.Lock()
	if cursor > s.delivered {
		s.delivered = cursor
	}
	current := s.delivered
	s.mu.Unlock()

	if s.cursors != nil {
		if err := s.cursors.SetJSON(ctx, cursorKey, current); err != nil {
			s.logger.Warnf("persist notifier cursor failed: %v", err)
		}
	}
}
