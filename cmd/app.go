package cmd

import (
	"context"
	"time"

	"example.com/backstage/services/erpgateway/config"
	"example.com/backstage/services/erpgateway/internal/cache"
	"example.com/backstage/services/erpgateway/internal/catalog"
	"example.com/backstage/services/erpgateway/internal/contracts"
	"example.com/backstage/services/erpgateway/internal/database"
	"example.com/backstage/services/erpgateway/internal/gateway"
	"example.com/backstage/services/erpgateway/internal/messaging"
	"example.com/backstage/services/erpgateway/internal/metrics"
	"example.com/backstage/services/erpgateway/internal/repositories"
	"example.com/backstage/services/erpgateway/internal/search"
	"example.com/backstage/services/erpgateway/internal/session"
	"example.com/backstage/services/erpgateway/internal/tracing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const eventSource = "erpgateway"

// app holds the components shared by the commands
type app struct {
	cfg       config.Config
	metrics   *metrics.Metrics
	tracer    tracing.Tracer
	sessions  *session.Manager
	client    *gateway.Client
	db        *gorm.DB
	journal   repositories.Journal
	publisher messaging.Publisher
	cache     *cache.RedisCache
	elastic   *search.ElasticClient
	location  *time.Location
	syncStart time.Time
}

func newApp(cfg config.Config) (*app, error) {
	a := &app{
		cfg:       cfg,
		metrics:   metrics.NewMetrics(),
		journal:   repositories.NopJournal{},
		publisher: messaging.NopPublisher{},
		cache:     &cache.RedisCache{},
	}

	start, loc, err := cfg.Sync.SyncStart()
	if err != nil {
		return nil, err
	}
	a.syncStart, a.location = start, loc

	// Initialize tracer
	tracer, err := tracing.NewTracer(cfg.Tracing)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
		tracer, _ = tracing.NewTracer(config.TracingConfig{})
	}
	a.tracer = tracer

	// Initialize the ERP client
	a.sessions = session.NewManager(cfg.ERP.BaseURL, session.Credentials{
		CompanyDB: cfg.ERP.CompanyDB,
		UserName:  cfg.ERP.Username,
		Password:  cfg.ERP.Password,
	}, tracing.NewHTTPClient(cfg.ERP.Timeout), a.metrics)
	a.client = gateway.NewClient(a.metrics, cfg.ERP.PageSize)

	// Initialize database
	db, err := database.Connect(cfg.DB)
	switch {
	case errors.Is(err, database.ErrNotConfigured):
		log.Info().Msg("Database not configured, modifications will not be journaled")
	case err != nil:
		log.Warn().Err(err).Msg("Failed to connect to database, continuing without journal")
	default:
		a.db = db
		a.journal = repositories.NewJournalRepository(db)
	}

	// Initialize cache
	redisCache, err := cache.NewRedisCache(cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Redis cache, continuing without caching")
	} else {
		a.cache = redisCache
	}

	// Initialize Elasticsearch client
	if cfg.Elastic.Enabled {
		elasticClient, err := search.NewElasticClient(cfg.Elastic)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize Elasticsearch client, continuing without search functionality")
		} else {
			a.elastic = elasticClient
		}
	}

	// Initialize Azure Service Bus publisher
	publisher, err := messaging.NewPublisher(cfg.Azure, eventSource)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Service Bus publisher, continuing without events")
	} else {
		a.publisher = publisher
	}

	return a, nil
}

func (a *app) contracts() *contracts.Service {
	return contracts.NewService(a.client, a.cfg.ItemGroups, a.journal, a.publisher, a.metrics)
}

func (a *app) catalog() *catalog.Service {
	return catalog.NewService(a.client, a.cfg.ItemGroups, a.cache, a.journal, a.location)
}

// run executes fn in a fresh ERP session, traced as a transaction named name
func (a *app) run(ctx context.Context, name string, fn func(ctx context.Context, s *session.Session) error) error {
	ctx, txn := a.tracer.StartTransaction(ctx, name)
	defer a.tracer.EndTransaction(txn)
	a.tracer.AddAttribute(txn, "company_db", a.cfg.ERP.CompanyDB)

	err := a.sessions.Do(ctx, fn)
	a.tracer.RecordError(txn, err)
	return err
}

func (a *app) close() {
	if err := a.publisher.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close Service Bus publisher")
	}
	if err := a.cache.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close Redis cache")
	}
	if err := database.Close(a.db); err != nil {
		log.Warn().Err(err).Msg("Failed to close database")
	}
	a.tracer.Close()

	log.Debug().Interface("metrics", a.metrics.GetAllMetrics()).Msg("ERP call metrics")
}
