package models

// BusinessPartner represents a customer or supplier record in the ERP
type BusinessPartner struct {
	CardCode     string `json:"CardCode"`
	CardName     string `json:"CardName,omitempty"`
	CardType     string `json:"CardType,omitempty"`
	FederalTaxID string `json:"FederalTaxID,omitempty"`
	EmailAddress string `json:"EmailAddress,omitempty"`
	Phone1       string `json:"Phone1,omitempty"`
	Frozen       string `json:"Frozen,omitempty"`
	UpdateDate   string `json:"UpdateDate,omitempty"`
	UpdateTime   string `json:"UpdateTime,omitempty"`
}

// BatchNumber assigns a quantity of a document line to a batch
type BatchNumber struct {
	BatchNumber string  `json:"BatchNumber"`
	Quantity    float64 `json:"Quantity"`
}

// StockTransfer represents a warehouse-to-warehouse transfer document
type StockTransfer struct {
	DocEntry           int                 `json:"DocEntry,omitempty"`
	DocNum             int                 `json:"DocNum,omitempty"`
	DocDate            string              `json:"DocDate,omitempty"`
	CardCode           string              `json:"CardCode,omitempty"`
	FromWarehouse      string              `json:"FromWarehouse"`
	ToWarehouse        string              `json:"ToWarehouse"`
	Comments           string              `json:"Comments,omitempty"`
	StockTransferLines []StockTransferLine `json:"StockTransferLines"`
}

// StockTransferLine is a single item line of a stock transfer
type StockTransferLine struct {
	LineNum           int           `json:"LineNum,omitempty"`
	ItemCode          string        `json:"ItemCode"`
	Quantity          float64       `json:"Quantity"`
	FromWarehouseCode string        `json:"FromWarehouseCode,omitempty"`
	WarehouseCode     string        `json:"WarehouseCode,omitempty"`
	BatchNumbers      []BatchNumber `json:"BatchNumbers,omitempty"`
}

// PurchaseDeliveryNote represents a goods receipt document for purchased items
type PurchaseDeliveryNote struct {
	DocEntry      int                `json:"DocEntry,omitempty"`
	DocNum        int                `json:"DocNum,omitempty"`
	DocDate       string             `json:"DocDate,omitempty"`
	CardCode      string             `json:"CardCode"`
	Comments      string             `json:"Comments,omitempty"`
	Confirmed     string             `json:"Confirmed,omitempty"`
	HandWritten   string             `json:"HandWritten,omitempty"`
	DocumentLines []DeliveryNoteLine `json:"DocumentLines"`
}

// DeliveryNoteLine is a single item line of a purchase delivery note
type DeliveryNoteLine struct {
	LineNum       int           `json:"LineNum,omitempty"`
	ItemCode      string        `json:"ItemCode"`
	Quantity      float64       `json:"Quantity"`
	UnitPrice     float64       `json:"UnitPrice,omitempty"`
	WarehouseCode string        `json:"WarehouseCode,omitempty"`
	BaseType      int           `json:"BaseType,omitempty"`
	BaseEntry     int           `json:"BaseEntry,omitempty"`
	BaseLine      *int          `json:"BaseLine,omitempty"`
	BatchNumbers  []BatchNumber `json:"BatchNumbers,omitempty"`
}
