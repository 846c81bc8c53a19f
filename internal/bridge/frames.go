package bridge

import (
	"encoding/json"

	"github.com/yourorg/insight-wallet/internal/wallet"
)

// Browser to server frame types
const (
	FrameMounted         = "mounted"
	FrameAnnounce        = "announce"
	FrameWithdraw        = "withdraw"
	FrameResponse        = "response"
	FrameAccountsChanged = "accountsChanged"
	FrameAction          = "action"
)

// Server to browser frame types
const (
	FrameRequest = "request"
	FrameRender  = "render"
)

// Actions a visitor can trigger from the wallet fragment
const (
	ActionConnect    = "connect"
	ActionDisconnect = "disconnect"
)

// WalletTarget is the DOM slot the wallet fragment is rendered into
const WalletTarget = "wallet"

// codeUserRejected is the EIP-1193 error code for a declined request
const codeUserRejected = 4001

// MethodRequestAccounts is the only wallet method the server asks for
const MethodRequestAccounts = "eth_requestAccounts"

// Outbound is a server to browser frame
type Outbound struct {
	Type     string `json:"type"`
	ID       string `json:"id,omitempty"`
	Provider string `json:"provider,omitempty"`
	Method   string `json:"method,omitempty"`
	Target   string `json:"target,omitempty"`
	HTML     string `json:"html,omitempty"`
}

type envelope struct {
	Type string `json:"type"`
}

type announceFrame struct {
	Provider wallet.ProviderInfo `json:"provider"`
	Kind     string              `json:"kind"`
}

type withdrawFrame struct {
	ID string `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type responseFrame struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *rpcError       `json:"error,omitempty"`
}

type accountsFrame struct {
	Provider string   `json:"provider"`
	Accounts []string `json:"accounts"`
}

type actionFrame struct {
	Action string `json:"action"`
}
