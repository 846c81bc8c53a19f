// Package types contains shared type definitions used across multiple packages
package types

import "strconv"

// NetworkID is the EVM chain id of a supported network
type NetworkID int64

// Supported networks
const (
	NetworkMainnet  NetworkID = 1
	NetworkOptimism NetworkID = 10
	NetworkPolygon  NetworkID = 137
	NetworkBase     NetworkID = 8453
	NetworkArbitrum NetworkID = 42161
)

// String returns the decimal chain id
func (id NetworkID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseNetworkID parses a decimal chain id as found in URLs and config files
func ParseNetworkID(s string) (NetworkID, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return NetworkID(v), nil
}

// NetworkDescriptor describes the RPC endpoints of one supported network.
// FallbackURL is always set. PrimaryURL is empty unless an API credential was configured.
type NetworkDescriptor struct {
	ID          NetworkID `json:"id"`
	Name        string    `json:"name"`
	Subdomain   string    `json:"subdomain"`
	PrimaryURL  string    `json:"primary_url,omitempty"`
	FallbackURL string    `json:"fallback_url"`
}

// HasPrimary reports whether a credentialed endpoint is configured
func (d NetworkDescriptor) HasPrimary() bool {
	return d.PrimaryURL != ""
}

// Endpoint returns the endpoint in effect for this network
func (d NetworkDescriptor) Endpoint() string {
	if d.HasPrimary() {
		return d.PrimaryURL
	}
	return d.FallbackURL
}
