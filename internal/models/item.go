package models

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// PropertySlots is the number of generic property fields on a backend item
const PropertySlots = 64

// Item represents an item master record in the ERP
type Item struct {
	ItemCode           string
	ItemName           string
	ManageBatchNumbers string
	PurchaseUnit       string
	UpdateDate         string
	UpdateTime         string
	// Properties holds the raw Properties1..Properties64 values, index 0 is Properties1
	Properties [PropertySlots]string
}

type itemFields struct {
	ItemCode           string `json:"ItemCode"`
	ItemName           string `json:"ItemName,omitempty"`
	ManageBatchNumbers string `json:"ManageBatchNumbers,omitempty"`
	PurchaseUnit       string `json:"PurchaseUnit,omitempty"`
	UpdateDate         string `json:"UpdateDate,omitempty"`
	UpdateTime         string `json:"UpdateTime,omitempty"`
}

// PropertyField returns the backend field name of the n:th property slot (1-based)
func PropertyField(n int) string {
	return "Properties" + strconv.Itoa(n)
}

// Property returns the raw value of the n:th property slot (1-based)
func (i Item) Property(n int) string {
	if n < 1 || n > PropertySlots {
		return ""
	}
	return i.Properties[n-1]
}

// PropertyIndex maps lower-cased property field names to their raw values.
// Slots the backend did not send map to an empty string.
func (i Item) PropertyIndex() map[string]string {
	index := make(map[string]string, PropertySlots)
	for n := 1; n <= PropertySlots; n++ {
		index[strings.ToLower(PropertyField(n))] = i.Properties[n-1]
	}
	return index
}

// UpdatedAt combines UpdateDate and UpdateTime into a single instant in loc
func (i Item) UpdatedAt(loc *time.Location) (time.Time, error) {
	return ParseUpdateStamp(i.UpdateDate, i.UpdateTime, loc)
}

// UnmarshalJSON decodes the flat backend representation, collecting the
// PropertiesN fields into the fixed slot array.
func (i *Item) UnmarshalJSON(data []byte) error {
	var fields itemFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	item := Item{
		ItemCode:           fields.ItemCode,
		ItemName:           fields.ItemName,
		ManageBatchNumbers: fields.ManageBatchNumbers,
		PurchaseUnit:       fields.PurchaseUnit,
		UpdateDate:         fields.UpdateDate,
		UpdateTime:         fields.UpdateTime,
	}

	for n := 1; n <= PropertySlots; n++ {
		value, ok := raw[PropertyField(n)]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(value, &s); err != nil {
			return errors.Wrapf(err, "failed to decode %s of item %s", PropertyField(n), fields.ItemCode)
		}
		item.Properties[n-1] = s
	}

	*i = item
	return nil
}

// MarshalJSON encodes the item back into the flat backend representation
func (i Item) MarshalJSON() ([]byte, error) {
	out := map[string]interface{}{
		"ItemCode": i.ItemCode,
	}
	if i.ItemName != "" {
		out["ItemName"] = i.ItemName
	}
	if i.ManageBatchNumbers != "" {
		out["ManageBatchNumbers"] = i.ManageBatchNumbers
	}
	if i.PurchaseUnit != "" {
		out["PurchaseUnit"] = i.PurchaseUnit
	}
	if i.UpdateDate != "" {
		out["UpdateDate"] = i.UpdateDate
	}
	if i.UpdateTime != "" {
		out["UpdateTime"] = i.UpdateTime
	}
	for n := 1; n <= PropertySlots; n++ {
		if v := i.Properties[n-1]; v != "" {
			out[PropertyField(n)] = v
		}
	}
	return json.Marshal(out)
}

// ParseUpdateStamp parses the separate date and time-of-day fields the backend
// stores modification stamps in. The date may carry a time suffix, which is ignored.
func ParseUpdateStamp(date, timeOfDay string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	if len(date) < len("2006-01-02") {
		return time.Time{}, errors.Errorf("invalid update date %q", date)
	}
	day, err := time.ParseInLocation("2006-01-02", date[:10], loc)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "invalid update date %q", date)
	}
	if timeOfDay == "" {
		return day, nil
	}
	clock, err := time.Parse("15:04:05", timeOfDay)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "invalid update time %q", timeOfDay)
	}
	return time.Date(day.Year(), day.Month(), day.Day(),
		clock.Hour(), clock.Minute(), clock.Second(), 0, loc), nil
}

// ClassifiedItem is an item together with the item group it resolved to
type ClassifiedItem struct {
	Item      Item `json:"item"`
	GroupCode *int `json:"groupCode,omitempty"`
}
