package bridge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/yourorg/insight-wallet/internal/wallet"
)

type result struct {
	accounts []string
	err      error
}

type pendingRequest struct {
	provider string
	ch       chan result
}

// remoteProvider is a wallet living in the browser, reached through the session
type remoteProvider struct {
	session *Session
	info    wallet.ProviderInfo
	kind    wallet.Kind
}

func (p *remoteProvider) ID() string               { return p.info.UUID }
func (p *remoteProvider) Info() wallet.ProviderInfo { return p.info }
func (p *remoteProvider) Kind() wallet.Kind         { return p.kind }

// RequestAccounts sends eth_requestAccounts to the browser and waits for the wallet
func (p *remoteProvider) RequestAccounts(ctx context.Context) ([]string, error) {
	s := p.session
	id := uuid.NewString()
	ch := s.register(id, p.ID())
	defer s.unregister(id)

	err := s.conn.Write(ctx, Outbound{
		Type:     FrameRequest,
		ID:       id,
		Provider: p.ID(),
		Method:   MethodRequestAccounts,
	})
	if err != nil {
		return nil, fmt.Errorf("send wallet request: %w", err)
	}

	select {
	case r := <-ch:
		return r.accounts, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, ErrSessionClosed
	}
}

func decodeResponse(f responseFrame) result {
	if f.Error != nil {
		if f.Error.Code == codeUserRejected {
			return result{err: fmt.Errorf("%w: %s", wallet.ErrUserRejected, f.Error.Message)}
		}
		return result{err: fmt.Errorf("wallet error %d: %s", f.Error.Code, f.Error.Message)}
	}
	var accounts []string
	if err := json.Unmarshal(f.Result, &accounts); err != nil {
		return result{err: fmt.Errorf("decode accounts: %w", err)}
	}
	return result{accounts: accounts}
}
