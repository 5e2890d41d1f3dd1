package models

// Blanket agreement status literals used by the backend
const (
	ContractStatusDraft      = "asDraft"
	ContractStatusApproved   = "asApproved"
	ContractStatusOnHold     = "asOnHold"
	ContractStatusTerminated = "asTerminated"
)

// UnsetShippingType marks a contract line whose shipping type has not been chosen
const UnsetShippingType = -1

// Contract represents a blanket agreement document in the ERP
type Contract struct {
	AgreementNo       int            `json:"AgreementNo,omitempty"`
	DocNum            int            `json:"DocNum,omitempty"`
	BPCode            string         `json:"BPCode"`
	ContactPersonCode *int           `json:"ContactPersonCode,omitempty"`
	StartDate         string         `json:"StartDate,omitempty"`
	EndDate           string         `json:"EndDate,omitempty"`
	SigningDate       string         `json:"SigningDate,omitempty"`
	TerminateDate     string         `json:"TerminateDate,omitempty"`
	Status            string         `json:"Status,omitempty"`
	Remarks           string         `json:"Remarks,omitempty"`
	AgreementMethod   string         `json:"AgreementMethod,omitempty"`
	Lines             []ContractLine `json:"BlanketAgreements_ItemsLines"`
}

// ContractLine is a single item line of a blanket agreement
type ContractLine struct {
	ItemNo             string  `json:"ItemNo"`
	PlannedQuantity    float64 `json:"PlannedQuantity"`
	CumulativeQuantity float64 `json:"CumulativeQuantity"`
	ShippingType       int     `json:"ShippingType"`
}

// NewContractLine creates a placeholder line for an item that has no quantities yet
func NewContractLine(itemCode string) ContractLine {
	return ContractLine{
		ItemNo:             itemCode,
		PlannedQuantity:    1,
		CumulativeQuantity: 0,
		ShippingType:       UnsetShippingType,
	}
}

// ItemCodes returns the item codes of the contract lines in line order
func (c Contract) ItemCodes() []string {
	codes := make([]string, 0, len(c.Lines))
	for _, line := range c.Lines {
		codes = append(codes, line.ItemNo)
	}
	return codes
}
