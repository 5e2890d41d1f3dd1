package catalog

import (
	"context"

	"example.com/backstage/services/erpgateway/internal/gateway"
	"example.com/backstage/services/erpgateway/internal/models"
	"example.com/backstage/services/erpgateway/internal/session"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// BatchRequest takes a quantity from one batch
type BatchRequest struct {
	BatchNumber string  `json:"batchNumber" validate:"required"`
	Quantity    float64 `json:"quantity" validate:"gt=0"`
}

// TransferLineRequest moves a quantity of one item
type TransferLineRequest struct {
	ItemCode string         `json:"itemCode" validate:"required"`
	Quantity float64        `json:"quantity" validate:"gt=0"`
	Batches  []BatchRequest `json:"batches,omitempty" validate:"dive"`
}

// StockTransferRequest moves items between two warehouses
type StockTransferRequest struct {
	FromWarehouse string                `json:"fromWarehouse" validate:"required"`
	ToWarehouse   string                `json:"toWarehouse" validate:"required,nefield=FromWarehouse"`
	DocDate       string                `json:"docDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	CardCode      string                `json:"cardCode,omitempty"`
	Comments      string                `json:"comments,omitempty" validate:"max=254"`
	Lines         []TransferLineRequest `json:"lines" validate:"min=1,dive"`
}

// DeliveryLineRequest receives a quantity of one item, optionally against a purchase order line
type DeliveryLineRequest struct {
	ItemCode      string         `json:"itemCode" validate:"required"`
	Quantity      float64        `json:"quantity" validate:"gt=0"`
	UnitPrice     float64        `json:"unitPrice,omitempty" validate:"gte=0"`
	WarehouseCode string         `json:"warehouseCode,omitempty"`
	OrderEntry    int            `json:"orderEntry,omitempty" validate:"gte=0"`
	OrderLine     int            `json:"orderLine,omitempty" validate:"gte=0"`
	Batches       []BatchRequest `json:"batches,omitempty" validate:"dive"`
}

// DeliveryNoteRequest receives purchased goods from a supplier
type DeliveryNoteRequest struct {
	CardCode    string                `json:"cardCode" validate:"required"`
	DocDate     string                `json:"docDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Comments    string                `json:"comments,omitempty" validate:"max=254"`
	Confirmed   bool                  `json:"confirmed"`
	HandWritten bool                  `json:"handWritten"`
	Lines       []DeliveryLineRequest `json:"lines" validate:"min=1,dive"`
}

func batches(in []BatchRequest) []models.BatchNumber {
	if len(in) == 0 {
		return nil
	}
	out := make([]models.BatchNumber, 0, len(in))
	for _, b := range in {
		out = append(out, models.BatchNumber{BatchNumber: b.BatchNumber, Quantity: b.Quantity})
	}
	return out
}

// CreateStockTransfer posts a stock transfer. Every line moves from the
// request's source warehouse to its target warehouse.
func (s *Service) CreateStockTransfer(ctx context.Context, sess *session.Session, req StockTransferRequest) (*models.StockTransfer, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, errors.Wrap(err, "invalid stock transfer request")
	}

	doc := models.StockTransfer{
		DocDate:            req.DocDate,
		CardCode:           req.CardCode,
		FromWarehouse:      req.FromWarehouse,
		ToWarehouse:        req.ToWarehouse,
		Comments:           req.Comments,
		StockTransferLines: make([]models.StockTransferLine, 0, len(req.Lines)),
	}
	for _, l := range req.Lines {
		doc.StockTransferLines = append(doc.StockTransferLines, models.StockTransferLine{
			ItemCode:          l.ItemCode,
			Quantity:          l.Quantity,
			FromWarehouseCode: req.FromWarehouse,
			WarehouseCode:     req.ToWarehouse,
			BatchNumbers:      batches(l.Batches),
		})
	}

	created, err := create(ctx, s, sess, StockTransfersEntity, doc, func(t *models.StockTransfer) int { return t.DocEntry })
	if err != nil {
		return nil, errors.Wrap(err, "failed to create stock transfer")
	}

	log.Info().
		Int("doc_num", created.DocNum).
		Str("from", created.FromWarehouse).
		Str("to", created.ToWarehouse).
		Msg("Stock transfer created")
	return created, nil
}

// CreateDeliveryNote posts a purchase delivery note
func (s *Service) CreateDeliveryNote(ctx context.Context, sess *session.Session, req DeliveryNoteRequest) (*models.PurchaseDeliveryNote, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, errors.Wrap(err, "invalid delivery note request")
	}

	doc := models.PurchaseDeliveryNote{
		DocDate:       req.DocDate,
		CardCode:      req.CardCode,
		Comments:      req.Comments,
		Confirmed:     gateway.EncodeBool(req.Confirmed),
		HandWritten:   gateway.EncodeBool(req.HandWritten),
		DocumentLines: make([]models.DeliveryNoteLine, 0, len(req.Lines)),
	}
	for _, l := range req.Lines {
		line := models.DeliveryNoteLine{
			ItemCode:      l.ItemCode,
			Quantity:      l.Quantity,
			UnitPrice:     l.UnitPrice,
			WarehouseCode: l.WarehouseCode,
			BatchNumbers:  batches(l.Batches),
		}
		if l.OrderEntry > 0 {
			line.BaseType = purchaseOrderType
			line.BaseEntry = l.OrderEntry
			orderLine := l.OrderLine
			line.BaseLine = &orderLine
		}
		doc.DocumentLines = append(doc.DocumentLines, line)
	}

	created, err := create(ctx, s, sess, DeliveryNotesEntity, doc, func(n *models.PurchaseDeliveryNote) int { return n.DocEntry })
	if err != nil {
		return nil, errors.Wrap(err, "failed to create delivery note")
	}

	log.Info().
		Int("doc_num", created.DocNum).
		Str("card_code", created.CardCode).
		Int("lines", len(created.DocumentLines)).
		Msg("Delivery note created")
	return created, nil
}
