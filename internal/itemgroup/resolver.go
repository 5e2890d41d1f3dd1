// Package itemgroup classifies items into the configured item groups.
package itemgroup

import (
	"strings"

	"example.com/backstage/services/erpgateway/internal/gateway"
	"example.com/backstage/services/erpgateway/internal/models"
	"example.com/backstage/services/erpgateway/internal/query"
)

// ItemKey is the key field of the Items entity
const ItemKey = "ItemCode"

// Fixed property slots carrying the frozen and organic flags
const (
	FrozenSlot  = 28
	OrganicSlot = 21
)

// IsFrozen reports whether the item carries the frozen flag
func IsFrozen(item models.Item) bool {
	return gateway.DecodeBool(item.Property(FrozenSlot))
}

// IsOrganic reports whether the item carries the organic flag
func IsOrganic(item models.Item) bool {
	return gateway.DecodeBool(item.Property(OrganicSlot))
}

// Resolve returns the code of the first group, in configuration order, whose
// property is set on the item and whose frozen and organic flags equal the item's.
func Resolve(item models.Item, groups []models.GroupProperty) (int, bool) {
	frozen := IsFrozen(item)
	organic := IsOrganic(item)
	index := item.PropertyIndex()

	for _, g := range groups {
		if !gateway.DecodeBool(index[strings.ToLower(g.PropertyName)]) {
			continue
		}
		if g.IsFrozen == frozen && g.IsOrganic == organic {
			return g.Code, true
		}
	}
	return 0, false
}

// Lookup finds the configured group with code
func Lookup(groups []models.GroupProperty, code int) (models.GroupProperty, bool) {
	for _, g := range groups {
		if g.Code == code {
			return g, true
		}
	}
	return models.GroupProperty{}, false
}

// Filter renders the backend predicate narrowing items to the candidates of
// group. Candidates still have to be confirmed with Resolve, since an earlier
// group sharing the property may claim them.
func Filter(group models.GroupProperty) string {
	return query.And(
		query.Eq(propertyField(group.PropertyName), gateway.Yes),
		query.Eq(models.PropertyField(FrozenSlot), gateway.EncodeBool(group.IsFrozen)),
		query.Eq(models.PropertyField(OrganicSlot), gateway.EncodeBool(group.IsOrganic)),
	)
}

// propertyField normalises a configured property name to the backend field
// spelling, e.g. "properties5" becomes "Properties5".
func propertyField(name string) string {
	lower := strings.ToLower(name)
	if strings.HasPrefix(lower, "properties") {
		return "Properties" + lower[len("properties"):]
	}
	return name
}

// Fields returns the item fields needed to classify items into groups,
// for use in a $select clause.
func Fields(groups []models.GroupProperty) []string {
	fields := []string{"ItemCode", "ItemName", "ManageBatchNumbers", "PurchaseUnit", "UpdateDate", "UpdateTime",
		models.PropertyField(OrganicSlot), models.PropertyField(FrozenSlot)}
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		seen[f] = true
	}
	for _, g := range groups {
		f := propertyField(g.PropertyName)
		if !seen[f] {
			seen[f] = true
			fields = append(fields, f)
		}
	}
	return fields
}

// Classify resolves the group of every item, keeping ungrouped items with a nil code
func Classify(items []models.Item, groups []models.GroupProperty) []models.ClassifiedItem {
	out := make([]models.ClassifiedItem, 0, len(items))
	for _, it := range items {
		ci := models.ClassifiedItem{Item: it}
		if code, ok := Resolve(it, groups); ok {
			ci.GroupCode = &code
		}
		out = append(out, ci)
	}
	return out
}
