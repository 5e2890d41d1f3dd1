package itemgroup

import (
	"testing"

	"example.com/backstage/services/erpgateway/internal/models"

	"github.com/stretchr/testify/assert"
)

func item(code string, slots ...int) models.Item {
	it := models.Item{ItemCode: code}
	for i := range it.Properties {
		it.Properties[i] = "tNO"
	}
	for _, n := range slots {
		it.Properties[n-1] = "tYES"
	}
	return it
}

var groups = []models.GroupProperty{
	{Code: 100, PropertyName: "Properties5"},
	{Code: 101, PropertyName: "Properties5", IsFrozen: true},
	{Code: 102, PropertyName: "Properties5", IsOrganic: true},
	{Code: 103, PropertyName: "Properties5", IsFrozen: true, IsOrganic: true},
	{Code: 200, PropertyName: "properties6"},
}

func TestResolveFrozenOrganicMatrix(t *testing.T) {
	tests := []struct {
		name string
		item models.Item
		want int
	}{
		{name: "plain", item: item("A1", 5), want: 100},
		{name: "frozen", item: item("A2", 5, FrozenSlot), want: 101},
		{name: "organic", item: item("A3", 5, OrganicSlot), want: 102},
		{name: "frozen organic", item: item("A4", 5, FrozenSlot, OrganicSlot), want: 103},
		{name: "lower-cased property name", item: item("A5", 6), want: 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, ok := Resolve(tt.item, groups)
			assert.True(t, ok)
			assert.Equal(t, tt.want, code)
		})
	}
}

func TestResolveUngrouped(t *testing.T) {
	_, ok := Resolve(item("A1", 7), groups)
	assert.False(t, ok)

	_, ok = Resolve(item("A2", 6, FrozenSlot), groups)
	assert.False(t, ok, "flags must match exactly")

	_, ok = Resolve(models.Item{ItemCode: "A3"}, groups)
	assert.False(t, ok)

	_, ok = Resolve(item("A4", 5), nil)
	assert.False(t, ok)
}

func TestResolveFirstMatchWins(t *testing.T) {
	ordered := []models.GroupProperty{
		{Code: 300, PropertyName: "Properties7"},
		{Code: 100, PropertyName: "Properties5"},
	}
	both := item("A1", 5, 7)

	code, _ := Resolve(both, ordered)
	assert.Equal(t, 300, code)

	code, _ = Resolve(both, []models.GroupProperty{ordered[1], ordered[0]})
	assert.Equal(t, 100, code)
}

func TestResolveTreatsOnlyYesTokenAsTrue(t *testing.T) {
	it := models.Item{ItemCode: "A1"}
	it.Properties[4] = "Y"
	_, ok := Resolve(it, groups)
	assert.False(t, ok)
}

func TestLookup(t *testing.T) {
	g, ok := Lookup(groups, 102)
	assert.True(t, ok)
	assert.True(t, g.IsOrganic)

	_, ok = Lookup(groups, 999)
	assert.False(t, ok)
}

func TestFilter(t *testing.T) {
	assert.Equal(t,
		"Properties5 eq 'tYES' and Properties28 eq 'tYES' and Properties21 eq 'tNO'",
		Filter(groups[1]))
	assert.Equal(t,
		"Properties6 eq 'tYES' and Properties28 eq 'tNO' and Properties21 eq 'tNO'",
		Filter(groups[4]))
}

func TestFields(t *testing.T) {
	fields := Fields(groups)
	assert.Equal(t, []string{
		"ItemCode", "ItemName", "ManageBatchNumbers", "PurchaseUnit", "UpdateDate", "UpdateTime",
		"Properties21", "Properties28", "Properties5", "Properties6",
	}, fields)
}

func TestClassify(t *testing.T) {
	classified := Classify([]models.Item{item("A", 6), item("U")}, groups)

	assert.Len(t, classified, 2)
	if assert.NotNil(t, classified[0].GroupCode) {
		assert.Equal(t, 200, *classified[0].GroupCode)
	}
	assert.Equal(t, "A", classified[0].Item.ItemCode)
	assert.Nil(t, classified[1].GroupCode)
}
