// Package wallet implements the wallet connectivity layer: discovery of announced wallet
// providers and the connection state machine of a single tab.
package wallet

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrUserRejected is returned by a provider when the user declines the request
	// in the wallet's own UI (EIP-1193 code 4001).
	ErrUserRejected = errors.New("user rejected the request")

	// ErrProviderGone is returned when the provider disappears before answering
	ErrProviderGone = errors.New("wallet provider is no longer available")
)

// Kind classifies how a provider is reached
type Kind string

// Provider kinds
const (
	KindInjected      Kind = "injected"
	KindRemoteSession Kind = "remote-session"
	KindOther         Kind = "other"
)

// ParseKind maps an announced kind to a Kind. Unknown values are KindOther.
func ParseKind(s string) Kind {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindInjected:
		return KindInjected
	case KindRemoteSession:
		return KindRemoteSession
	default:
		return KindOther
	}
}

// ProviderInfo is the metadata a wallet announces about itself (EIP-6963)
type ProviderInfo struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
	Icon string `json:"icon,omitempty"`
	RDNS string `json:"rdns"`
}

// Provider is a discovered wallet able to initiate a connection.
// Implementations come from the host environment, never from this package.
type Provider interface {
	// ID is stable for the lifetime of the browser context
	ID() string
	Info() ProviderInfo
	Kind() Kind
	// RequestAccounts asks the wallet to expose its accounts. It may block for as long
	// as the user leaves the wallet prompt open.
	RequestAccounts(ctx context.Context) ([]string, error)
}
