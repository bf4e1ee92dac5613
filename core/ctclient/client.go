// Package ctclient executes confidential balance operations against a
// ledger: it fetches fresh state, derives keys, computes the transition and
// submits it inline or through context accounts.
package ctclient

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/ethereum/go-ethereum/log"
	"github.com/tos-network/ctbal/accountsigner"
	"github.com/tos-network/ctbal/common"
	"github.com/tos-network/ctbal/core/choreo"
	"github.com/tos-network/ctbal/core/confidential"
	"github.com/tos-network/ctbal/core/types"
)

var (
	errNoOwner            = errors.New("ctclient: sender has no owner signer")
	errAirdropUnsupported = errors.New("ctclient: ledger does not support airdrops")
)

// Sender is who an operation acts for. Owner signs for the token account
// and its keys are derived from Owner signatures. Payer funds collateral
// and signs every submission; it defaults to Owner.
type Sender struct {
	Owner accountsigner.Signer
	Payer accountsigner.Signer
}

func (s Sender) payer() accountsigner.Signer {
	if s.Payer != nil {
		return s.Payer
	}
	return s.Owner
}

// TokenAccount returns the owner's token account for mint.
func (s Sender) TokenAccount(mint common.Address) common.Address {
	return types.DeriveTokenAccount(s.Owner.Address(), mint)
}

// Airdropper is implemented by development ledgers.
type Airdropper interface {
	Airdrop(ctx context.Context, addr common.Address, lamports uint64) (uint64, error)
}

// Client holds no per-operation state; concurrent operations on different
// accounts are safe.
type Client struct {
	ledger confidential.LedgerClient
	engine confidential.CryptoEngine
	choreo *choreo.Choreographer
	cfg    Config
	log    log.Logger
}

// New creates a client.
func New(ledger confidential.LedgerClient, engine confidential.CryptoEngine, cfg Config) (*Client, error) {
	cfg = cfg.sanitize()
	ch, err := choreo.New(ledger, cfg.Choreo)
	if err != nil {
		return nil, err
	}
	return &Client{
		ledger: ledger,
		engine: engine,
		choreo: ch,
		cfg:    cfg,
		log:    cfg.Logger.New("component", "ctclient"),
	}, nil
}

// Choreographer exposes the context-account pipeline used by the client.
func (c *Client) Choreographer() *choreo.Choreographer { return c.choreo }

func (c *Client) fetchState(ctx context.Context, addr common.Address) (*confidential.AccountState, error) {
	raw, err := c.ledger.Fetch(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", addr.TerminalString(), err)
	}
	return confidential.DecodeTokenState(addr, raw)
}

func (c *Client) fetchMint(ctx context.Context, mint common.Address) (*types.Mint, *types.ConfidentialMint, error) {
	raw, err := c.ledger.Fetch(ctx, mint)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch mint %s: %w", mint.TerminalString(), err)
	}
	m, _, err := types.DecodeMintAccount(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: mint %s: %v", confidential.ErrMalformedAccount, mint.TerminalString(), err)
	}
	ext, err := m.ConfidentialExtension()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: mint %s: %v", confidential.ErrMalformedAccount, mint.TerminalString(), err)
	}
	return m, ext, nil
}

// load fetches the sender's token account for mint and derives its keys.
func (c *Client) load(ctx context.Context, s Sender, mint common.Address) (*confidential.AccountState, *confidential.KeyMaterial, error) {
	if s.Owner == nil {
		return nil, nil, errNoOwner
	}
	addr := s.TokenAccount(mint)
	st, err := c.fetchState(ctx, addr)
	if err != nil {
		return nil, nil, err
	}
	if st.Owner != s.Owner.Address() {
		return nil, nil, fmt.Errorf("%w: %s is owned by %s", confidential.ErrMalformedAccount, addr.TerminalString(), st.Owner.TerminalString())
	}
	keys, err := confidential.DeriveKeyMaterial(s.Owner, addr)
	if err != nil {
		return nil, nil, err
	}
	return st, keys, nil
}

// submit sends ins signed by the payer and the owner.
func (c *Client) submit(ctx context.Context, s Sender, ins ...types.Instruction) ([]types.Receipt, error) {
	receipt, err := c.choreo.Submit(ctx, s.payer(), []accountsigner.Signer{s.Owner}, ins...)
	if err != nil {
		return nil, err
	}
	return []types.Receipt{*receipt}, nil
}

// checkExpected compares the ledger state against the predicted one. A
// difference is only logged; the ledger is authoritative.
func (c *Client) checkExpected(ctx context.Context, expected *confidential.AccountState) {
	if expected == nil {
		return
	}
	got, err := c.fetchState(ctx, expected.Address)
	if err != nil {
		c.log.Debug("Could not re-read account", "account", expected.Address.TerminalString(), "err", err)
		return
	}
	if !reflect.DeepEqual(got, expected) {
		c.log.Warn("Ledger state differs from predicted transition", "account", expected.Address.TerminalString(),
			"counter", got.PendingCreditCounter, "predicted", expected.PendingCreditCounter)
	}
}

// CloseContextAccounts closes context accounts left open by a failed
// cleanup and returns their collateral to the payer. Calling it again for
// already closed accounts does nothing.
func (c *Client) CloseContextAccounts(ctx context.Context, s Sender, addrs []common.Address) ([]types.Receipt, error) {
	payer := s.payer()
	if payer == nil {
		return nil, errNoOwner
	}
	return c.choreo.CloseContextAccounts(ctx, payer, payer.Address(), addrs)
}
