package contracts

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"example.com/backstage/services/erpgateway/internal/gateway"
	"example.com/backstage/services/erpgateway/internal/itemgroup"
	"example.com/backstage/services/erpgateway/internal/messaging"
	"example.com/backstage/services/erpgateway/internal/metrics"
	"example.com/backstage/services/erpgateway/internal/models"
	"example.com/backstage/services/erpgateway/internal/query"
	"example.com/backstage/services/erpgateway/internal/repositories"
	"example.com/backstage/services/erpgateway/internal/session"
	"example.com/backstage/services/erpgateway/internal/tracing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Entity is the backend entity set of blanket agreements
const Entity = "BlanketAgreements"

// keyField is the key of the blanket agreement entity
const keyField = "AgreementNo"

// itemMethod marks an agreement whose lines are items rather than amounts
const itemMethod = "amItem"

var contractFields = []string{
	"AgreementNo", "DocNum", "BPCode", "ContactPersonCode", "StartDate", "EndDate",
	"SigningDate", "TerminateDate", "Status", "Remarks", "BlanketAgreements_ItemsLines",
}

var (
	// ErrUnknownGroup is returned for a request naming an item group that is not configured
	ErrUnknownGroup = errors.New("unknown item group")
	// ErrEmptyGroup is returned when no item belongs to the requested group
	ErrEmptyGroup = errors.New("item group has no items")
	// ErrNoSpread is returned when the written contract yields no slice for the requested group
	ErrNoSpread = errors.New("contract has no lines for the item group")
)

// ListFilter narrows ListContracts. Zero fields are ignored.
type ListFilter struct {
	StartDate *time.Time
	BPCode    string
	Status    Status
}

// ContractRequest asks for a contract covering every item of an item group
type ContractRequest struct {
	BPCode            string `json:"bpCode" validate:"required"`
	ContactPersonCode *int   `json:"contactPersonCode,omitempty"`
	ItemGroupCode     int    `json:"itemGroupCode" validate:"gte=0"`
	StartDate         string `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate           string `json:"endDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	SigningDate       string `json:"signingDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Remarks           string `json:"remarks,omitempty" validate:"max=254"`
}

// Service lists and writes blanket agreements as per-group contracts
type Service struct {
	client    *gateway.Client
	groups    []models.GroupProperty
	journal   repositories.Journal
	publisher messaging.Publisher
	metrics   *metrics.Metrics
	validate  *validator.Validate
}

// NewService creates a new contract service. A nil journal or publisher disables that concern.
func NewService(
	client *gateway.Client,
	groups []models.GroupProperty,
	journal repositories.Journal,
	publisher messaging.Publisher,
	m *metrics.Metrics,
) *Service {
	if journal == nil {
		journal = repositories.NopJournal{}
	}
	if publisher == nil {
		publisher = messaging.NopPublisher{}
	}
	if m == nil {
		m = metrics.NewMetrics()
	}
	return &Service{
		client:    client,
		groups:    groups,
		journal:   journal,
		publisher: publisher,
		metrics:   m,
		validate:  validator.New(),
	}
}

func (f ListFilter) expression() string {
	var start, bp, status string
	if f.StartDate != nil {
		start = query.Ge("StartDate", f.StartDate.Format(dateLayout))
	}
	if f.BPCode != "" {
		bp = query.Eq("BPCode", f.BPCode)
	}
	if f.Status != "" {
		status = query.Eq("Status", f.Status.Backend())
	}
	return query.And(start, bp, status)
}

// ListContracts returns the per-group contracts of every blanket agreement
// matching filter. Contracts that cannot be spread are logged and left out.
func (s *Service) ListContracts(ctx context.Context, sess *session.Session, filter ListFilter) ([]SpreadContract, error) {
	if filter.Status != "" && filter.Status.Backend() == "" {
		return nil, errors.Errorf("unknown contract status %q", filter.Status)
	}

	var (
		contracts []models.Contract
		items     []models.Item
	)

	// Independent reads within the same session
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		contracts, err = gateway.ListAll[models.Contract](gctx, s.client, sess, Entity, query.Select(contractFields...), filter.expression(), keyField)
		return err
	})
	g.Go(func() error {
		var err error
		items, err = gateway.ListAll[models.Item](gctx, s.client, sess, "Items", query.Select(itemgroup.Fields(s.groups)...), "", itemgroup.ItemKey)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seg := tracing.Segment(ctx, "spread-contracts")
	results := SpreadAll(contracts, IndexItems(items), s.groups)
	seg.End()

	spreads := []SpreadContract{}
	for _, r := range results {
		if r.Err != nil {
			s.metrics.IncrementCounter(metrics.ContractsDropped)
			log.Warn().Err(r.Err).Int("doc_num", r.DocNum).Msg("Dropping contract that could not be spread")
			continue
		}
		spreads = append(spreads, r.Spreads...)
	}

	log.Info().
		Int("contracts", len(contracts)).
		Int("spreads", len(spreads)).
		Msg("Contracts listed")
	return spreads, nil
}

// CreateOrUpdateContract makes sure the partner's approved contract starting
// on or after the request's start date covers every item of the requested
// group. A missing contract is created; an existing one gets the missing
// items appended. Backend writes are not rolled back when a later step fails.
func (s *Service) CreateOrUpdateContract(ctx context.Context, sess *session.Session, req ContractRequest) (*SpreadContract, error) {
	spread, err := s.createOrUpdate(ctx, sess, req)
	if err != nil {
		log.Error().
			Err(err).
			Str("bp_code", req.BPCode).
			Int("item_group", req.ItemGroupCode).
			Msg("Failed to create or update contract")
		return nil, errors.Wrapf(err, "failed to create or update contract for %s", req.BPCode)
	}
	return spread, nil
}

func (s *Service) createOrUpdate(ctx context.Context, sess *session.Session, req ContractRequest) (*SpreadContract, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, errors.Wrap(err, "invalid contract request")
	}

	group, ok := itemgroup.Lookup(s.groups, req.ItemGroupCode)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownGroup, "item group %d", req.ItemGroupCode)
	}

	existing, err := s.findApproved(ctx, sess, req.BPCode, req.StartDate)
	if err != nil {
		return nil, err
	}

	groupItems, err := s.itemsOfGroup(ctx, sess, group)
	if err != nil {
		return nil, err
	}
	if len(groupItems) == 0 {
		return nil, errors.Wrapf(ErrEmptyGroup, "item group %d", group.Code)
	}

	var written *models.Contract
	if existing == nil {
		written, err = s.create(ctx, sess, req, groupItems)
	} else {
		written, err = s.appendMissing(ctx, sess, *existing, groupItems)
	}
	if err != nil {
		return nil, err
	}

	spreads, err := SpreadOne(*written, IndexItems(groupItems), s.groups)
	if err != nil {
		return nil, err
	}
	for i := range spreads {
		if spreads[i].ItemGroupCode == group.Code {
			return &spreads[i], nil
		}
	}
	return nil, errors.Wrapf(ErrNoSpread, "contract %d, item group %d", written.DocNum, group.Code)
}

func (s *Service) findApproved(ctx context.Context, sess *session.Session, bpCode, startDate string) (*models.Contract, error) {
	filter := query.And(
		query.Eq("BPCode", bpCode),
		query.Ge("StartDate", startDate),
		query.Eq("Status", models.ContractStatusApproved),
	)
	found, err := gateway.ListMany[models.Contract](ctx, s.client, sess,
		query.BuildURL(Entity, query.Select(contractFields...), query.Filter(filter), 0, 0))
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, nil
	}
	if len(found) > 1 {
		log.Warn().Str("bp_code", bpCode).Int("count", len(found)).Msg("Several approved contracts match, using the first")
	}
	return &found[0], nil
}

// itemsOfGroup lists the items the backend filter narrows to group, keeping
// those the resolver assigns to it, in backend order.
func (s *Service) itemsOfGroup(ctx context.Context, sess *session.Session, group models.GroupProperty) ([]models.Item, error) {
	candidates, err := gateway.ListAll[models.Item](ctx, s.client, sess, "Items",
		query.Select(itemgroup.Fields(s.groups)...), itemgroup.Filter(group), itemgroup.ItemKey)
	if err != nil {
		return nil, err
	}

	items := make([]models.Item, 0, len(candidates))
	for _, it := range candidates {
		if code, ok := itemgroup.Resolve(it, s.groups); ok && code == group.Code {
			items = append(items, it)
		}
	}
	return items, nil
}

func (s *Service) create(ctx context.Context, sess *session.Session, req ContractRequest, items []models.Item) (*models.Contract, error) {
	contract := models.Contract{
		BPCode:            req.BPCode,
		ContactPersonCode: req.ContactPersonCode,
		StartDate:         req.StartDate,
		EndDate:           req.EndDate,
		SigningDate:       req.SigningDate,
		Status:            models.ContractStatusApproved,
		Remarks:           req.Remarks,
		AgreementMethod:   itemMethod,
		Lines:             make([]models.ContractLine, 0, len(items)),
	}
	for _, it := range items {
		contract.Lines = append(contract.Lines, models.NewContractLine(it.ItemCode))
	}

	created, err := gateway.Create[models.Contract](ctx, s.client, sess, Entity, contract)
	s.record(ctx, "", http.MethodPost, err)
	if err != nil {
		return nil, err
	}

	log.Info().
		Int("doc_num", created.DocNum).
		Str("bp_code", created.BPCode).
		Int("lines", len(created.Lines)).
		Msg("Contract created")
	s.publish(ctx, created)
	return created, nil
}

type linesPatch struct {
	Lines []models.ContractLine `json:"BlanketAgreements_ItemsLines"`
}

func (s *Service) appendMissing(ctx context.Context, sess *session.Session, existing models.Contract, items []models.Item) (*models.Contract, error) {
	present := make(map[string]bool, len(existing.Lines))
	for _, code := range existing.ItemCodes() {
		present[code] = true
	}

	lines := append([]models.ContractLine{}, existing.Lines...)
	for _, it := range items {
		if !present[it.ItemCode] {
			present[it.ItemCode] = true
			lines = append(lines, models.NewContractLine(it.ItemCode))
		}
	}

	added := len(lines) - len(existing.Lines)
	if added == 0 {
		log.Info().Int("doc_num", existing.DocNum).Msg("Contract already covers the item group")
		return &existing, nil
	}

	key := strconv.Itoa(existing.AgreementNo)
	updated, err := gateway.Update[models.Contract](ctx, s.client, sess,
		query.ByKey(Entity, existing.AgreementNo), linesPatch{Lines: lines})
	s.record(ctx, key, http.MethodPatch, err)
	if err != nil {
		return nil, err
	}

	log.Info().
		Int("doc_num", updated.DocNum).
		Int("agreement_no", existing.AgreementNo).
		Int("added_lines", added).
		Msg("Contract updated")
	s.publish(ctx, updated)
	return updated, nil
}

func (s *Service) record(ctx context.Context, key, method string, err error) {
	if jerr := s.journal.Record(ctx, repositories.NewModification(Entity, key, method, err)); jerr != nil {
		log.Warn().Err(jerr).Str("entity", Entity).Msg("Failed to journal modification")
	}
}

func (s *Service) publish(ctx context.Context, contract *models.Contract) {
	if err := s.publisher.Publish(ctx, messaging.EventContractUpserted, contract); err != nil {
		log.Warn().Err(err).Int("doc_num", contract.DocNum).Msg("Failed to publish contract event")
	}
}
