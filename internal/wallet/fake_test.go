package wallet

import (
	"context"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
)

const testAddress = "0xabcdef0123456789abcdef0123456789abcd1234"

var testAddressChecked = common.HexToAddress(testAddress).Hex()

type fakeProvider struct {
	id       string
	rdns     string
	kind     Kind
	accounts []string
	err      error
	// release blocks RequestAccounts until closed, when set
	release chan struct{}
	calls   atomic.Int32
}

func newFake(id string, kind Kind) *fakeProvider {
	return &fakeProvider{id: id, kind: kind, accounts: []string{testAddress}}
}

func (f *fakeProvider) ID() string { return f.id }

func (f *fakeProvider) Info() ProviderInfo {
	rdns := f.rdns
	if rdns == "" {
		rdns = "io.fake." + f.id
	}
	return ProviderInfo{UUID: f.id, Name: "Fake " + f.id, RDNS: rdns}
}

func (f *fakeProvider) Kind() Kind { return f.kind }

func (f *fakeProvider) RequestAccounts(ctx context.Context) ([]string, error) {
	f.calls.Add(1)
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.accounts, f.err
}

type memStore struct {
	id string
}

func (s *memStore) Remember(id string) { s.id = id }
func (s *memStore) Forget()            { s.id = "" }
func (s *memStore) Recall() (string, bool) {
	return s.id, s.id != ""
}
