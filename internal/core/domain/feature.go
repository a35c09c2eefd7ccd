package domain

// Gateway feature data types.
const (
	DATA_TYPE_BOOL    = "BOOL"
	DATA_TYPE_INTEGER = "INTEGER"
	DATA_TYPE_ENUM    = "ENUM"
)

// CategoryFeature is one entry of a gateway category capability list.
// Immutable after the catalog is loaded.
type CategoryFeature struct {
	Name     string `json:"name"`
	DataType string `json:"data_type"`
	Required bool   `json:"required"`
}

// StateValue is one {key, value} record of a gateway status or command
// document.
type StateValue struct {
	Key   string     `json:"key"`
	Value TypedValue `json:"value"`
}

// TypedValue is the gateway's tagged value union. Exactly one of the value
// fields is set according to Type.
type TypedValue struct {
	Type         string  `json:"type"`
	BoolValue    *bool   `json:"bool_value,omitempty"`
	IntegerValue *int    `json:"integer_value,omitempty"`
	EnumValue    *string `json:"enum_value,omitempty"`
}

func BoolValue(v bool) TypedValue {
	return TypedValue{Type: DATA_TYPE_BOOL, BoolValue: &v}
}

func IntegerValue(v int) TypedValue {
	return TypedValue{Type: DATA_TYPE_INTEGER, IntegerValue: &v}
}

func EnumValue(v string) TypedValue {
	return TypedValue{Type: DATA_TYPE_ENUM, EnumValue: &v}
}
