package web

import (
	"bytes"
	"embed"
	"html/template"
	"io/fs"

	"github.com/yourorg/insight-wallet/internal/wallet"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Button labels of the wallet fragment
const (
	LabelConnect    = "Connect Wallet"
	LabelNoWallet   = "No Wallet Detected"
	LabelConnecting = "Connecting…"
)

// WalletView is the presentation model of the wallet fragment
type WalletView struct {
	Connected    bool
	Address      string
	ShortAddress string
	Label        string
	Disabled     bool
}

// NewWalletView maps a connection state to what the visitor sees
func NewWalletView(state wallet.State, providerAvailable bool) WalletView {
	switch {
	case state.Status == wallet.StatusConnected:
		return WalletView{
			Connected:    true,
			Address:      state.Address,
			ShortAddress: FormatAddress(state.Address),
		}
	case state.Status == wallet.StatusConnecting:
		return WalletView{Label: LabelConnecting, Disabled: true}
	case !providerAvailable:
		return WalletView{Label: LabelNoWallet, Disabled: true}
	default:
		return WalletView{Label: LabelConnect}
	}
}

// FormatAddress shortens an address to its first 6 and last 4 characters.
// Anything too short to shorten is returned as is.
func FormatAddress(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}

// Views renders the page and the wallet fragment
type Views struct {
	tmpl *template.Template
}

// NewViews parses the embedded templates
func NewViews() (*Views, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, err
	}
	return &Views{tmpl: tmpl}, nil
}

// Wallet renders the wallet fragment for state
func (v *Views) Wallet(state wallet.State, providerAvailable bool) (string, error) {
	var buf bytes.Buffer
	if err := v.tmpl.ExecuteTemplate(&buf, "wallet.html", NewWalletView(state, providerAvailable)); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func staticFiles() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}
