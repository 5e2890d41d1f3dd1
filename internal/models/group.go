package models

// GroupProperty maps an item property slot and frozen/organic flags to an item group
type GroupProperty struct {
	Code         int    `mapstructure:"code" json:"code" validate:"gte=0"`
	PropertyName string `mapstructure:"property_name" json:"propertyName" validate:"required"`
	IsFrozen     bool   `mapstructure:"is_frozen" json:"isFrozen"`
	IsOrganic    bool   `mapstructure:"is_organic" json:"isOrganic"`
}
