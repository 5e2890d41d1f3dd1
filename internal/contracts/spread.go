package contracts

import (
	"strconv"
	"time"

	"example.com/backstage/services/erpgateway/internal/itemgroup"
	"example.com/backstage/services/erpgateway/internal/models"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// SpreadContract is the slice of a blanket agreement covering one item group
type SpreadContract struct {
	ID                 string          `json:"id"`
	BPCode             string          `json:"bpCode"`
	ContactPersonCode  *int            `json:"contactPersonCode,omitempty"`
	ItemGroupCode      int             `json:"itemGroupCode"`
	Status             Status          `json:"status"`
	StartDate          string          `json:"startDate"`
	EndDate            string          `json:"endDate,omitempty"`
	SigningDate        string          `json:"signingDate,omitempty"`
	TerminateDate      string          `json:"terminateDate,omitempty"`
	Remarks            string          `json:"remarks,omitempty"`
	CumulativeQuantity decimal.Decimal `json:"cumulativeQuantity"`
	AgreementNo        int             `json:"agreementNo"`
	DocNum             int             `json:"docNum"`
}

// SpreadResult is the outcome of spreading one contract
type SpreadResult struct {
	DocNum  int
	Spreads []SpreadContract
	Err     error
}

type lineOutcome int

const (
	lineGrouped lineOutcome = iota
	lineUnknownItem
	lineUngrouped
)

func (o lineOutcome) String() string {
	switch o {
	case lineGrouped:
		return "grouped"
	case lineUnknownItem:
		return "unknown item"
	default:
		return "ungrouped"
	}
}

// IndexItems keys items by item code
func IndexItems(items []models.Item) map[string]models.Item {
	index := make(map[string]models.Item, len(items))
	for _, it := range items {
		index[it.ItemCode] = it
	}
	return index
}

// SyntheticID derives the id of a spread contract
func SyntheticID(startDate time.Time, docNum, groupCode int) string {
	return strconv.Itoa(startDate.Year()) + "-" + strconv.Itoa(docNum) + "-" + strconv.Itoa(groupCode)
}

// SpreadOne partitions the lines of contract by item group and sums their
// cumulative quantities. Lines whose item is unknown or ungrouped are skipped.
// Groups are returned in order of their first line.
func SpreadOne(contract models.Contract, items map[string]models.Item, groups []models.GroupProperty) ([]SpreadContract, error) {
	start, err := parseDate(contract.StartDate)
	if err != nil {
		return nil, errors.Wrapf(err, "contract %d has an invalid start date", contract.DocNum)
	}

	totals := make(map[int]decimal.Decimal)
	var order []int

	for _, line := range contract.Lines {
		code, outcome := classifyLine(line, items, groups)
		log.Debug().
			Int("doc_num", contract.DocNum).
			Str("item_code", line.ItemNo).
			Stringer("outcome", outcome).
			Msg("Contract line classified")
		if outcome != lineGrouped {
			continue
		}

		total, seen := totals[code]
		if !seen {
			order = append(order, code)
		}
		totals[code] = total.Add(decimal.NewFromFloat(line.CumulativeQuantity))
	}

	spreads := make([]SpreadContract, 0, len(order))
	for _, code := range order {
		spreads = append(spreads, SpreadContract{
			ID:                 SyntheticID(start, contract.DocNum, code),
			BPCode:             contract.BPCode,
			ContactPersonCode:  contract.ContactPersonCode,
			ItemGroupCode:      code,
			Status:             statusOf(contract.Status),
			StartDate:          contract.StartDate,
			EndDate:            contract.EndDate,
			SigningDate:        contract.SigningDate,
			TerminateDate:      contract.TerminateDate,
			Remarks:            contract.Remarks,
			CumulativeQuantity: totals[code],
			AgreementNo:        contract.AgreementNo,
			DocNum:             contract.DocNum,
		})
	}
	return spreads, nil
}

// SpreadAll spreads every contract independently
func SpreadAll(contracts []models.Contract, items map[string]models.Item, groups []models.GroupProperty) []SpreadResult {
	results := make([]SpreadResult, 0, len(contracts))
	for _, c := range contracts {
		spreads, err := SpreadOne(c, items, groups)
		results = append(results, SpreadResult{DocNum: c.DocNum, Spreads: spreads, Err: err})
	}
	return results
}

func classifyLine(line models.ContractLine, items map[string]models.Item, groups []models.GroupProperty) (int, lineOutcome) {
	item, ok := items[line.ItemNo]
	if !ok {
		return 0, lineUnknownItem
	}
	code, ok := itemgroup.Resolve(item, groups)
	if !ok {
		return 0, lineUngrouped
	}
	return code, lineGrouped
}

// parseDate reads the date part of a backend date, which may carry a time suffix
func parseDate(s string) (time.Time, error) {
	if len(s) < len(dateLayout) {
		return time.Time{}, errors.Errorf("invalid date %q", s)
	}
	return time.Parse(dateLayout, s[:len(dateLayout)])
}
