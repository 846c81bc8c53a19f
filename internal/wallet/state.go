package wallet

// Status is the connection status of a tab
type Status int

// Connection statuses
const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
)

func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// State is a snapshot of the connection. Address is set only while connected;
// ProviderID is set while connecting or connected.
type State struct {
	Status     Status
	Address    string
	ProviderID string
}

// Connected reports whether an address is available
func (s State) Connected() bool {
	return s.Status == StatusConnected
}

// SessionStore is the host's session bridge: it remembers which wallet a browser
// session last connected with so a reload can reconnect. The key is the wallet's
// reverse-DNS name, falling back to the provider id for wallets announcing none.
type SessionStore interface {
	Remember(key string)
	Forget()
	Recall() (string, bool)
}

type noopStore struct{}

func (noopStore) Remember(string)        {}
func (noopStore) Forget()                {}
func (noopStore) Recall() (string, bool) { return "", false }
