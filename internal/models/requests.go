package models

// Form and settings-file keys for the configuration fields.
const (
	FieldSSID      = "ssid"
	FieldPassword  = "password"
	FieldIPAddress = "ip_address"
	FieldSubnet    = "subnet"
	FieldGateway   = "gateway"
)

// SettingsFields lists the required keys of a settings update in the order
// they are checked.
var SettingsFields = []string{
	FieldSSID,
	FieldPassword,
	FieldIPAddress,
	FieldSubnet,
	FieldGateway,
}

var fieldLabels = map[string]string{
	FieldSSID:      "SSID",
	FieldPassword:  "Password",
	FieldIPAddress: "IP Address",
	FieldSubnet:    "Subnet",
	FieldGateway:   "Gateway",
}

// FieldLabel returns the human-readable name of a settings field.
func FieldLabel(field string) string {
	if l, ok := fieldLabels[field]; ok {
		return l
	}
	return field
}
