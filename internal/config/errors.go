package config

import (
	"errors"
	"strings"
)

var ErrAccountNotFound = errors.New("account not found in config")

// SchemaError identifies the account and field path of an invalid document.
type SchemaError struct {
	Account string
	Field   string
	Message string
}

func (e SchemaError) Error() string {
	parts := []string{}
	if e.Account != "" {
		parts = append(parts, "account ["+e.Account+"]")
	}
	if e.Field != "" {
		parts = append(parts, "field ["+e.Field+"]")
	}
	if len(parts) == 0 {
		return "config schema error: " + e.Message
	}
	return "config schema error: " + strings.Join(parts, " ") + ": " + e.Message
}
