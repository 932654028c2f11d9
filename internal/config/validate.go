package config

import (
	"unicode/utf8"

	"github.com/micro-nova/apportal/internal/models"
)

// ApplyUpdate validates fields and applies them to draft. Keys are checked
// in the order of models.SettingsFields and the first failure is returned.
// draft is a value, so a failed update never touches the caller's copy.
func ApplyUpdate(draft models.Configuration, fields map[string]string) (models.Configuration, *models.ValidationError) {
	for _, key := range models.SettingsFields {
		if _, ok := fields[key]; !ok {
			return models.Configuration{}, &models.ValidationError{Field: key, Reason: models.ReasonMissing}
		}
	}

	ssid := fields[models.FieldSSID]
	if ssid == "" {
		return models.Configuration{}, &models.ValidationError{Field: models.FieldSSID, Reason: models.ReasonEmpty}
	}

	// The settings file is JSON, which cannot carry invalid UTF-8 unchanged.
	if !utf8.ValidString(ssid) {
		return models.Configuration{}, invalidText(models.FieldSSID)
	}
	if !utf8.ValidString(fields[models.FieldPassword]) {
		return models.Configuration{}, invalidText(models.FieldPassword)
	}

	ip, ok := models.ParseIPv4(fields[models.FieldIPAddress])
	if !ok {
		return models.Configuration{}, invalidAddress(models.FieldIPAddress)
	}
	subnet, ok := models.ParseIPv4(fields[models.FieldSubnet])
	if !ok {
		return models.Configuration{}, invalidAddress(models.FieldSubnet)
	}
	gateway, ok := models.ParseIPv4(fields[models.FieldGateway])
	if !ok {
		return models.Configuration{}, invalidAddress(models.FieldGateway)
	}

	// Open networks are allowed, so any other password text is accepted.
	draft.SSID = ssid
	draft.Password = fields[models.FieldPassword]
	draft.IPAddress = ip
	draft.Subnet = subnet
	draft.Gateway = gateway
	return draft, nil
}

func invalidAddress(field string) *models.ValidationError {
	return &models.ValidationError{Field: field, Reason: models.ReasonInvalidAddress}
}

func invalidText(field string) *models.ValidationError {
	return &models.ValidationError{Field: field, Reason: models.ReasonInvalidText}
}
