// Package catalog reads items and business partners and writes stock
// documents through the gateway.
package catalog

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"example.com/backstage/services/erpgateway/internal/cache"
	"example.com/backstage/services/erpgateway/internal/gateway"
	"example.com/backstage/services/erpgateway/internal/itemgroup"
	"example.com/backstage/services/erpgateway/internal/models"
	"example.com/backstage/services/erpgateway/internal/query"
	"example.com/backstage/services/erpgateway/internal/repositories"
	"example.com/backstage/services/erpgateway/internal/session"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Backend entity sets
const (
	ItemsEntity          = "Items"
	PartnersEntity       = "BusinessPartners"
	StockTransfersEntity = "StockTransfers"
	DeliveryNotesEntity  = "PurchaseDeliveryNotes"
)

// purchaseOrderType is the backend object type of a purchase order, the base
// document of a delivery note line copied from an order
const purchaseOrderType = 22

var partnerFields = []string{
	"CardCode", "CardName", "CardType", "FederalTaxID", "EmailAddress", "Phone1", "Frozen", "UpdateDate", "UpdateTime",
}

// ErrPartnerNotFound is returned when the backend has no partner with the requested code
var ErrPartnerNotFound = errors.New("business partner not found")

// PageCache stores classified item pages
type PageCache interface {
	Get(ctx context.Context, key string, value interface{}) error
	Set(ctx context.Context, key string, value interface{}) error
}

// PageQuery selects one page of records modified after UpdatedAfter.
// A zero Top uses the client page size.
type PageQuery struct {
	UpdatedAfter *time.Time
	Skip         int `validate:"gte=0"`
	Top          int `validate:"gte=0"`
}

// Service exposes the catalog operations
type Service struct {
	client   *gateway.Client
	groups   []models.GroupProperty
	pages    PageCache
	pageTag  string
	journal  repositories.Journal
	location *time.Location
	validate *validator.Validate
}

// NewService creates a new catalog service. Update stamps are compared in loc,
// the backend's local time zone.
func NewService(
	client *gateway.Client,
	groups []models.GroupProperty,
	pages PageCache,
	journal repositories.Journal,
	loc *time.Location,
) *Service {
	if pages == nil {
		pages = &cache.RedisCache{}
	}
	if journal == nil {
		journal = repositories.NopJournal{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		client:   client,
		groups:   groups,
		pages:    pages,
		pageTag:  cache.GroupsTag(groups),
		journal:  journal,
		location: loc,
		validate: validator.New(),
	}
}

func (s *Service) updatedFilter(after *time.Time) string {
	if after == nil {
		return ""
	}
	return query.UpdatedAfter(after.In(s.location))
}

func (s *Service) page(q PageQuery, entity string, fields []string) (string, error) {
	if err := s.validate.Struct(q); err != nil {
		return "", errors.Wrap(err, "invalid page query")
	}
	top := q.Top
	if top == 0 {
		top = s.client.PageSize()
	}
	return query.BuildURL(entity, query.Select(fields...), query.Filter(s.updatedFilter(q.UpdatedAfter)), q.Skip, top), nil
}

// ListItems returns one page of items with their resolved item groups.
// Pages are served from the cache when it holds them.
func (s *Service) ListItems(ctx context.Context, sess *session.Session, q PageQuery) ([]models.ClassifiedItem, error) {
	path, err := s.page(q, ItemsEntity, itemgroup.Fields(s.groups))
	if err != nil {
		return nil, err
	}

	key := cache.ItemPageKey(s.pageTag, q.UpdatedAfter, q.Skip, q.Top)
	var cached []models.ClassifiedItem
	switch err := s.pages.Get(ctx, key, &cached); {
	case err == nil:
		log.Debug().Str("key", key).Msg("Item page served from cache")
		return cached, nil
	case !errors.Is(err, cache.ErrCacheMiss) && !errors.Is(err, cache.ErrCacheDisabled):
		log.Warn().Err(err).Str("key", key).Msg("Failed to read item page from cache")
	}

	items, err := gateway.ListMany[models.Item](ctx, s.client, sess, path)
	if err != nil {
		return nil, err
	}
	classified := itemgroup.Classify(items, s.groups)

	// nil items mean the backend refused the read, which must not be cached as an empty page
	if items == nil {
		return classified, nil
	}
	if err := s.pages.Set(ctx, key, classified); err != nil && !errors.Is(err, cache.ErrCacheDisabled) {
		log.Warn().Err(err).Str("key", key).Msg("Failed to cache item page")
	}
	return classified, nil
}

// CountItems returns the number of items modified after updatedAfter, or of
// all items when it is nil. ok is false when the backend refuses the count.
func (s *Service) CountItems(ctx context.Context, sess *session.Session, updatedAfter *time.Time) (int, bool, error) {
	return gateway.Count(ctx, s.client, sess, ItemsEntity, s.updatedFilter(updatedAfter))
}

// GetPartner reads a business partner by card code
func (s *Service) GetPartner(ctx context.Context, sess *session.Session, cardCode string) (*models.BusinessPartner, error) {
	if cardCode == "" {
		return nil, errors.New("card code is required")
	}
	bp, err := gateway.GetOne[models.BusinessPartner](ctx, s.client, sess,
		query.ByCode(PartnersEntity, cardCode)+"?"+query.Select(partnerFields...))
	if err != nil {
		return nil, err
	}
	if bp == nil {
		return nil, errors.Wrapf(ErrPartnerNotFound, "card code %s", cardCode)
	}
	return bp, nil
}

// ListPartners returns one page of business partners
func (s *Service) ListPartners(ctx context.Context, sess *session.Session, q PageQuery) ([]models.BusinessPartner, error) {
	path, err := s.page(q, PartnersEntity, partnerFields)
	if err != nil {
		return nil, err
	}
	partners, err := gateway.ListMany[models.BusinessPartner](ctx, s.client, sess, path)
	if err != nil {
		return nil, err
	}
	if partners == nil {
		partners = []models.BusinessPartner{}
	}
	return partners, nil
}

func (s *Service) record(ctx context.Context, entity, key, method string, err error) {
	if jerr := s.journal.Record(ctx, repositories.NewModification(entity, key, method, err)); jerr != nil {
		log.Warn().Err(jerr).Str("entity", entity).Msg("Failed to journal modification")
	}
}

func docKey(docEntry int) string {
	if docEntry == 0 {
		return ""
	}
	return strconv.Itoa(docEntry)
}

func create[T any](ctx context.Context, s *Service, sess *session.Session, entity string, body interface{}, key func(*T) int) (*T, error) {
	created, err := gateway.Create[T](ctx, s.client, sess, entity, body)
	var k string
	if created != nil {
		k = docKey(key(created))
	}
	s.record(ctx, entity, k, http.MethodPost, err)
	return created, err
}
