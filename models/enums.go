package models

import (
	"fmt"
	"strings"
)

// Provider identifies a connected accounting provider. The set is closed:
// sync, OAuth and mapping code dispatch on this tag, never on raw strings.
type Provider string

const (
	ProviderXero Provider = "Xero"
	ProviderQBO  Provider = "QBO"
)

func (p Provider) Valid() bool {
	return p == ProviderXero || p == ProviderQBO
}

func (p Provider) String() string { return string(p) }

// ParseProvider accepts the path-parameter spellings used by the HTTP layer.
func ParseProvider(s string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "xero":
		return ProviderXero, nil
	case "qbo", "quickbooks":
		return ProviderQBO, nil
	default:
		return "", fmt.Errorf("unknown provider %q", s)
	}
}

// AllProviders returns every supported provider in display order.
func AllProviders() []Provider {
	return []Provider{ProviderQBO, ProviderXero}
}
