package domain

// PropertyType is the host's property category.
type PropertyType string

const (
	PropertyTypeBuiltIn     PropertyType = "BuiltIn"
	PropertyTypeUserDefined PropertyType = "UserDefined"
)

// PropertyDefinition names one property available in the host model.
type PropertyDefinition struct {
	Type             PropertyType
	NonLocalizedName string
	LocalizedName    []string
}

// PropertyValueStatus mirrors the host's per-value status.
type PropertyValueStatus string

const (
	PropertyValueNormal        PropertyValueStatus = "normal"
	PropertyValueUserUndefined PropertyValueStatus = "userUndefined"
	PropertyValueNotAvailable  PropertyValueStatus = "notAvailable"
	PropertyValueFailed        PropertyValueStatus = "failed"
)

// PropertyValue is one property value rendered as a string.
type PropertyValue struct {
	Status PropertyValueStatus
	Value  string
}

// PropertyRow holds the property values of one element, aligned to the requested
// property id order.
type PropertyRow struct {
	Values []PropertyValue
}
