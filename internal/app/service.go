// Package service provides the core analytics service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/okian/taskpulse/internal/adapters/repository"
	"github.com/okian/taskpulse/internal/domain/aggregate"
	"github.com/okian/taskpulse/internal/domain/model"
	"github.com/okian/taskpulse/pkg/logger"
	"github.com/okian/taskpulse/pkg/metrics"
)

// Defaults applied by New.
const (
	DefaultAggregationTimeout  = 5 * time.Second
	DefaultEventsLimit         = 50
	DefaultMaxEventsLimit      = 1000
	DefaultTimelineDays        = 7
	DefaultMaxTimelineDays     = 366
	timelineDay                = 24 * time.Hour
	ingestErrorKindValidation  = "validation"
	ingestErrorKindStorage     = "storage"
	ingestErrorKindAggregation = "aggregation"
)

// IngestInput is a new event as submitted by a producer.
type IngestInput struct {
	EventType string `validate:"required"`
	TaskID    json.RawMessage
	Metadata  map[string]any
}

// Summary is the live aggregate plus the time it was computed.
type Summary struct {
	model.Snapshot
	LastUpdated time.Time `json:"lastUpdated"`
}

// Service implements the API dependencies for the analytics system.
type Service struct {
	mu sync.RWMutex

	// Core components
	events     repository.EventStore
	snapshots  repository.SnapshotStore
	aggregator aggregate.Aggregator
	validate   *validator.Validate

	// Configuration
	now                 func() time.Time
	loc                 *time.Location
	aggregationTimeout  time.Duration
	defaultEventsLimit  int
	maxEventsLimit      int
	defaultTimelineDays int
	maxTimelineDays     int

	// State
	started bool

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithEventStore sets the event store.
func WithEventStore(store repository.EventStore) Option {
	return func(s *Service) {
		if store != nil {
			s.events = store
		}
	}
}

// WithSnapshotStore sets the snapshot store.
func WithSnapshotStore(store repository.SnapshotStore) Option {
	return func(s *Service) {
		if store != nil {
			s.snapshots = store
		}
	}
}

// WithAggregator replaces the aggregator built over the event store.
func WithAggregator(a aggregate.Aggregator) Option {
	return func(s *Service) {
		if a != nil {
			s.aggregator = a
		}
	}
}

// WithClock sets the clock used for query windows and lastUpdated.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLocation sets the time zone whose calendar date keys snapshots.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithAggregationTimeout bounds the post-append recompute.
func WithAggregationTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.aggregationTimeout = d
		}
	}
}

// WithEventsLimits sets the default and maximum page size of Recent.
func WithEventsLimits(def, maxLimit int) Option {
	return func(s *Service) {
		if def > 0 && maxLimit >= def {
			s.defaultEventsLimit = def
			s.maxEventsLimit = maxLimit
		}
	}
}

// WithTimelineDays sets the default and maximum window of Timeline.
func WithTimelineDays(def, maxDays int) Option {
	return func(s *Service) {
		if def >= 0 && maxDays >= def {
			s.defaultTimelineDays = def
			s.maxTimelineDays = maxDays
		}
	}
}

// New constructs a new Service. Without store options both stores are a
// single in-memory store.
func New(opts ...Option) *Service {
	s := &Service{
		validate:            validator.New(),
		now:                 time.Now,
		loc:                 time.Local,
		aggregationTimeout:  DefaultAggregationTimeout,
		defaultEventsLimit:  DefaultEventsLimit,
		maxEventsLimit:      DefaultMaxEventsLimit,
		defaultTimelineDays: DefaultTimelineDays,
		maxTimelineDays:     DefaultMaxTimelineDays,
		logger:              nil, // resolved below
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.events == nil || s.snapshots == nil {
		mem := repository.NewMemoryStore()
		if s.events == nil {
			s.events = mem
		}
		if s.snapshots == nil {
			s.snapshots = mem
		}
	}
	if s.aggregator == nil {
		s.aggregator = aggregate.NewStoreAggregator(s.events)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	return s
}

// Start verifies the event store is reachable and marks the service started.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if err := s.events.Ping(ctx); err != nil {
		return storageErr("start", err)
	}

	s.started = true
	s.logger.Info(ctx, "analytics service started",
		logger.Duration("aggregationTimeout", s.aggregationTimeout),
		logger.Int("defaultEventsLimit", s.defaultEventsLimit),
		logger.Int("defaultTimelineDays", s.defaultTimelineDays),
		logger.String("location", s.loc.String()),
	)
	return nil
}

// Stop closes the stores. It is safe to call more than once.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping analytics service...")

	if err := s.events.Close(); err != nil {
		s.logger.Warn(ctx, "closing event store", logger.Error(err))
	}
	if any(s.snapshots) != any(s.events) {
		if err := s.snapshots.Close(); err != nil {
			s.logger.Warn(ctx, "closing snapshot store", logger.Error(err))
		}
	}

	s.started = false
	s.logger.Info(ctx, "analytics service stopped")
}

// Ingest appends the event, then recomputes and upserts the snapshot for the
// event's calendar date. Only the append can fail the call.
func (s *Service) Ingest(ctx context.Context, in IngestInput) (model.Event, error) {
	in.EventType = strings.TrimSpace(in.EventType)
	if err := s.validate.Struct(in); err != nil {
		metrics.RecordIngestError(ingestErrorKindValidation)
		return model.Event{}, validationf("eventType is required")
	}

	stored, err := s.events.Append(ctx, model.NewEvent{
		EventType: in.EventType,
		TaskID:    in.TaskID,
		Metadata:  in.Metadata,
	})
	if err != nil {
		metrics.RecordIngestError(ingestErrorKindStorage)
		return model.Event{}, storageErr("append event", err)
	}
	metrics.RecordEventIngested(stored.EventType)

	s.logger.Debug(ctx, "event stored",
		logger.String("id", stored.ID),
		logger.String("eventType", stored.EventType),
	)

	s.refreshSnapshot(ctx, stored.Timestamp)
	return stored, nil
}

// refreshSnapshot runs past caller cancellation, bounded by the aggregation
// timeout. Failures are logged and counted only.
func (s *Service) refreshSnapshot(parent context.Context, at time.Time) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), s.aggregationTimeout)
	defer cancel()

	date := at.In(s.loc).Format(model.DateLayout)

	snap, err := s.aggregator.Aggregate(ctx)
	if err == nil {
		err = s.snapshots.Upsert(ctx, date, snap)
	}
	if err != nil {
		metrics.RecordAggregationFailure()
		metrics.RecordIngestError(ingestErrorKindAggregation)
		s.logger.Error(ctx, "snapshot refresh failed",
			logger.String("date", date),
			logger.Error(errors.Join(ErrAggregation, err)),
		)
		return
	}
	metrics.RecordSnapshotUpsert()
}

// Summary recomputes the aggregate from the event store.
func (s *Service) Summary(ctx context.Context) (Summary, error) {
	snap, err := s.aggregator.Aggregate(ctx)
	if err != nil {
		return Summary{}, storageErr("summary", err)
	}
	return Summary{Snapshot: snap, LastUpdated: s.now().UTC()}, nil
}

// CountsByType returns the number of events per event type.
func (s *Service) CountsByType(ctx context.Context) (map[string]int64, error) {
	counts, err := s.events.CountsByType(ctx)
	if err != nil {
		return nil, storageErr("counts by type", err)
	}
	return counts, nil
}

// Timeline buckets created and completed events of the last days×24h by UTC
// date. Dates without events are omitted.
func (s *Service) Timeline(ctx context.Context, days int) ([]model.TimelinePoint, error) {
	if days < 0 || days > s.maxTimelineDays {
		return nil, validationf("days must be between 0 and %d", s.maxTimelineDays)
	}
	if days == 0 {
		return []model.TimelinePoint{}, nil
	}

	now := s.now()
	from := now.Add(-time.Duration(days) * timelineDay)
	events, err := s.events.QueryRange(ctx, from, []string{model.TaskCreated, model.TaskCompleted})
	if err != nil {
		return nil, storageErr("timeline", err)
	}

	buckets := make(map[string]*model.TimelinePoint)
	for _, e := range events {
		if e.Timestamp.After(now) {
			continue
		}
		date := e.Timestamp.UTC().Format(model.DateLayout)
		p, ok := buckets[date]
		if !ok {
			p = &model.TimelinePoint{Date: date}
			buckets[date] = p
		}
		switch e.EventType {
		case model.TaskCreated:
			p.Created++
		case model.TaskCompleted:
			p.Completed++
		}
	}

	out := make([]model.TimelinePoint, 0, len(buckets))
	for _, p := range buckets {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

// Recent lists newest events first. A non-positive limit means the default;
// limits above the maximum are clamped.
func (s *Service) Recent(ctx context.Context, limit int) ([]model.Event, error) {
	if limit <= 0 {
		limit = s.defaultEventsLimit
	}
	limit = min(limit, s.maxEventsLimit)

	events, err := s.events.ListRecent(ctx, limit)
	if err != nil {
		return nil, storageErr("recent events", err)
	}
	return events, nil
}

// Purge deletes every event and returns how many were removed. Snapshots
// remain until the next ingestion overwrites them.
func (s *Service) Purge(ctx context.Context) (int64, error) {
	n, err := s.events.PurgeAll(ctx)
	if err != nil {
		return 0, storageErr("purge", err)
	}
	metrics.RecordEventsPurged(n)
	s.logger.Info(ctx, "events purged", logger.Int64("count", n))
	return n, nil
}

// Snapshot returns the stored snapshot for a YYYY-MM-DD date.
func (s *Service) Snapshot(ctx context.Context, date string) (model.Snapshot, error) {
	if !validDate(date) {
		return model.Snapshot{}, validationf("date must be %s", model.DateLayout)
	}
	snap, found, err := s.snapshots.Get(ctx, date)
	if err != nil {
		return model.Snapshot{}, storageErr("get snapshot", err)
	}
	if !found {
		return model.Snapshot{}, ErrNotFound
	}
	return snap, nil
}

// Snapshots lists stored snapshots between from and to inclusive. Either bound
// may be empty.
func (s *Service) Snapshots(ctx context.Context, from, to string) ([]model.Snapshot, error) {
	for _, d := range []string{from, to} {
		if d != "" && !validDate(d) {
			return nil, validationf("date must be %s", model.DateLayout)
		}
	}
	if from != "" && to != "" && from > to {
		return nil, validationf("from must not be after to")
	}
	snaps, err := s.snapshots.List(ctx, from, to)
	if err != nil {
		return nil, storageErr("list snapshots", err)
	}
	return snaps, nil
}

// Ping reports whether the event store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	if err := s.events.Ping(ctx); err != nil {
		return storageErr("ping", err)
	}
	return nil
}

// DefaultTimelineDays is the window used when a request names none.
func (s *Service) DefaultTimelineDays() int { return s.defaultTimelineDays }

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":            s.started,
		"aggregationTimeout": s.aggregationTimeout.String(),
		"maxEventsLimit":     s.maxEventsLimit,
		"maxTimelineDays":    s.maxTimelineDays,
	}

	if s.started {
		counts, err := s.events.CountsByType(context.Background())
		if err == nil {
			var total int64
			for _, n := range counts {
				total += n
			}
			stats["eventsStored"] = total
			stats["eventTypes"] = len(counts)
		}
	}

	return stats
}

func validDate(d string) bool {
	_, err := time.Parse(model.DateLayout, d)
	return err == nil
}
