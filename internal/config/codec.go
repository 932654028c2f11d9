// Package config loads, validates, and persists the access-point
// configuration on the flash store.
package config

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/micro-nova/apportal/internal/models"
)

// DecodeError means the settings document could not be parsed at all.
// It is never fatal: the caller keeps its defaults.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return "config: decode: " + e.Err.Error() }

func (e *DecodeError) Unwrap() error { return e.Err }

// document is the on-flash layout. Field order fixes the key order of
// the encoded output.
type document struct {
	SSID      string `json:"ssid"`
	Password  string `json:"password"`
	IPAddress string `json:"ip_address"`
	Subnet    string `json:"subnet"`
	Gateway   string `json:"gateway"`
}

// Decode merges the JSON settings document in data into cfg. cfg must be
// pre-initialized with defaults: fields that are absent, of the wrong type,
// or not valid addresses keep their prior value. An empty ssid is ignored.
// A malformed document leaves cfg untouched and returns a *DecodeError.
func Decode(data []byte, cfg *models.Configuration) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return &DecodeError{Err: err}
	}
	if raw == nil {
		return &DecodeError{Err: errors.New("document is not an object")}
	}

	if s, ok := stringField(raw, models.FieldSSID); ok && s != "" {
		cfg.SSID = s
	}
	if s, ok := stringField(raw, models.FieldPassword); ok {
		cfg.Password = s
	}
	if s, ok := stringField(raw, models.FieldIPAddress); ok {
		if addr, ok := models.ParseIPv4(s); ok {
			cfg.IPAddress = addr
		}
	}
	if s, ok := stringField(raw, models.FieldSubnet); ok {
		if addr, ok := models.ParseIPv4(s); ok {
			cfg.Subnet = addr
		}
	}
	if s, ok := stringField(raw, models.FieldGateway); ok {
		if addr, ok := models.ParseIPv4(s); ok {
			cfg.Gateway = addr
		}
	}
	return nil
}

func stringField(raw map[string]json.RawMessage, key string) (string, bool) {
	msg, ok := raw[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(msg, &s); err != nil {
		return "", false
	}
	return s, true
}

// Encode serializes cfg as a compact JSON document. Output is
// byte-identical for equal configurations.
func Encode(cfg models.Configuration) ([]byte, error) {
	if !cfg.IPAddress.IsValid() || !cfg.Subnet.IsValid() || !cfg.Gateway.IsValid() {
		return nil, fmt.Errorf("config: encode: unset address in %s", cfg)
	}
	return json.Marshal(document{
		SSID:      cfg.SSID,
		Password:  cfg.Password,
		IPAddress: cfg.IPAddress.String(),
		Subnet:    cfg.Subnet.String(),
		Gateway:   cfg.Gateway.String(),
	})
}
