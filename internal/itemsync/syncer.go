// Package itemsync copies item changes from the ERP into the search index,
// the event queue and the page cache.
package itemsync

import (
	"context"
	"sync"
	"time"

	"example.com/backstage/services/erpgateway/internal/cache"
	"example.com/backstage/services/erpgateway/internal/gateway"
	"example.com/backstage/services/erpgateway/internal/itemgroup"
	"example.com/backstage/services/erpgateway/internal/messaging"
	"example.com/backstage/services/erpgateway/internal/metrics"
	"example.com/backstage/services/erpgateway/internal/models"
	"example.com/backstage/services/erpgateway/internal/query"
	"example.com/backstage/services/erpgateway/internal/search"
	"example.com/backstage/services/erpgateway/internal/session"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Entity is the checkpoint key of the item sync
const Entity = "Items"

// Sessions runs a unit of work in its own ERP session
type Sessions interface {
	Do(ctx context.Context, fn func(ctx context.Context, s *session.Session) error) error
}

// Checkpoints stores how far the sync has progressed
type Checkpoints interface {
	Get(ctx context.Context, entity string) (*models.SyncCheckpoint, error)
	Save(ctx context.Context, cp *models.SyncCheckpoint) error
}

// Indexer writes item documents to the search index
type Indexer interface {
	IndexItems(ctx context.Context, docs []search.ItemDocument) error
}

// Invalidator drops cached pages
type Invalidator interface {
	InvalidatePrefix(ctx context.Context, prefix string) error
}

// Options carries the optional sinks of a Syncer. Nil sinks are skipped.
type Options struct {
	Checkpoints Checkpoints
	Indexer     Indexer
	Cache       Invalidator
	Publisher   messaging.Publisher
	Metrics     *metrics.Metrics
}

// Syncer runs incremental item sync passes
type Syncer struct {
	sessions    Sessions
	client      *gateway.Client
	groups      []models.GroupProperty
	start       time.Time
	location    *time.Location
	checkpoints Checkpoints
	indexer     Indexer
	cache       Invalidator
	publisher   messaging.Publisher
	metrics     *metrics.Metrics

	// passes never overlap
	mu sync.Mutex
}

// Result summarises one pass
type Result struct {
	Since   time.Time
	Newest  time.Time
	Synced  int
	Skipped int
}

// NewSyncer creates a new syncer. Items changed after start are synced on the
// first pass; later passes continue from the saved checkpoint.
func NewSyncer(sessions Sessions, client *gateway.Client, groups []models.GroupProperty, start time.Time, loc *time.Location, opts Options) *Syncer {
	if loc == nil {
		loc = time.UTC
	}
	if opts.Checkpoints == nil {
		opts.Checkpoints = NewMemoryCheckpoints()
	}
	if opts.Publisher == nil {
		opts.Publisher = messaging.NopPublisher{}
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewMetrics()
	}
	return &Syncer{
		sessions:    sessions,
		client:      client,
		groups:      groups,
		start:       start,
		location:    loc,
		checkpoints: opts.Checkpoints,
		indexer:     opts.Indexer,
		cache:       opts.Cache,
		publisher:   opts.Publisher,
		metrics:     opts.Metrics,
	}
}

// Run performs one pass. The checkpoint only advances once the changed items
// are indexed.
func (s *Syncer) Run(ctx context.Context) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp, err := s.checkpoints.Get(ctx, Entity)
	if err != nil {
		return nil, err
	}
	since := s.start
	var total int64
	if cp != nil {
		since = cp.LastUpdatedAt
		total = cp.ItemsSynced
	}

	var items []models.Item
	err = s.sessions.Do(ctx, func(ctx context.Context, sess *session.Session) error {
		var err error
		items, err = gateway.ListAll[models.Item](ctx, s.client, sess, Entity,
			query.Select(itemgroup.Fields(s.groups)...), query.UpdatedAfter(since.In(s.location)), itemgroup.ItemKey)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to read changed items")
	}

	result := &Result{Since: since, Newest: since}
	if len(items) == 0 {
		log.Debug().Time("since", since).Msg("No item changes")
		return result, nil
	}

	classified := itemgroup.Classify(items, s.groups)
	docs := make([]search.ItemDocument, 0, len(classified))
	events := make([]interface{}, 0, len(classified))
	for _, ci := range classified {
		stamp, err := ci.Item.UpdatedAt(s.location)
		if err != nil {
			result.Skipped++
			log.Warn().Err(err).Str("item_code", ci.Item.ItemCode).Msg("Skipping item without a valid update stamp")
			continue
		}
		if stamp.After(result.Newest) {
			result.Newest = stamp
		}
		docs = append(docs, document(ci, stamp))
		events = append(events, ci)
	}
	result.Synced = len(docs)

	if s.indexer != nil {
		if err := s.indexer.IndexItems(ctx, docs); err != nil {
			return nil, errors.Wrap(err, "failed to index changed items")
		}
	}

	if err := s.publisher.PublishAll(ctx, messaging.EventItemChanged, events); err != nil {
		log.Warn().Err(err).Int("items", len(events)).Msg("Failed to publish item changes")
	}

	if s.cache != nil {
		if err := s.cache.InvalidatePrefix(ctx, cache.ItemPagePrefix); err != nil && !errors.Is(err, cache.ErrCacheDisabled) {
			log.Warn().Err(err).Msg("Failed to invalidate cached item pages")
		}
	}

	err = s.checkpoints.Save(ctx, &models.SyncCheckpoint{
		Entity:        Entity,
		LastUpdatedAt: result.Newest,
		ItemsSynced:   total + int64(result.Synced),
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementCounterBy(metrics.ItemsSynced, int64(result.Synced))
	log.Info().
		Time("since", since).
		Time("newest", result.Newest).
		Int("synced", result.Synced).
		Int("skipped", result.Skipped).
		Msg("Item sync pass finished")
	return result, nil
}

func document(ci models.ClassifiedItem, stamp time.Time) search.ItemDocument {
	return search.ItemDocument{
		ItemCode:     ci.Item.ItemCode,
		ItemName:     ci.Item.ItemName,
		PurchaseUnit: ci.Item.PurchaseUnit,
		GroupCode:    ci.GroupCode,
		Frozen:       itemgroup.IsFrozen(ci.Item),
		Organic:      itemgroup.IsOrganic(ci.Item),
		UpdatedAt:    stamp,
	}
}

// MemoryCheckpoints keeps checkpoints in process memory, for runs without a database
type MemoryCheckpoints struct {
	mu  sync.Mutex
	cps map[string]models.SyncCheckpoint
}

// NewMemoryCheckpoints creates an empty checkpoint store
func NewMemoryCheckpoints() *MemoryCheckpoints {
	return &MemoryCheckpoints{cps: make(map[string]models.SyncCheckpoint)}
}

// Get implements Checkpoints
func (m *MemoryCheckpoints) Get(_ context.Context, entity string) (*models.SyncCheckpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp, ok := m.cps[entity]
	if !ok {
		return nil, nil
	}
	return &cp, nil
}

// Save implements Checkpoints
func (m *MemoryCheckpoints) Save(_ context.Context, cp *models.SyncCheckpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cps[cp.Entity] = *cp
	return nil
}
