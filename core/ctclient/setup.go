package ctclient

import (
	"context"
	"crypto/rand"
	"fmt"

	"github.com/tos-network/ctbal/accountsigner"
	"github.com/tos-network/ctbal/common"
	"github.com/tos-network/ctbal/core/types"
	"github.com/tos-network/ctbal/crypto/elgamal"
)

// MintOptions describe a new confidential mint.
type MintOptions struct {
	// Address of the mint. A random address is used when zero.
	Address     common.Address
	Decimals    uint8
	AutoApprove bool
	// Auditor receives a decrypt handle on every transfer amount.
	Auditor *elgamal.PublicKey
}

// CreateMint creates a mint controlled by authority and returns its address.
func (c *Client) CreateMint(ctx context.Context, payer, authority accountsigner.Signer, opts MintOptions) (common.Address, []types.Receipt, error) {
	addr := opts.Address
	if addr.IsZero() {
		key, err := accountsigner.GenerateEd25519Signer(rand.Reader)
		if err != nil {
			return common.Address{}, nil, err
		}
		addr = key.Address()
	}
	payload := &types.CreateMintPayload{
		Mint:        addr,
		Authority:   authority.Address(),
		Decimals:    opts.Decimals,
		AutoApprove: opts.AutoApprove,
	}
	if opts.Auditor != nil {
		payload.Auditor = *opts.Auditor
	}
	ins, err := types.NewInstruction(types.ActionCreateMint, payload)
	if err != nil {
		return common.Address{}, nil, err
	}
	receipts, err := c.submit(ctx, Sender{Owner: authority, Payer: payer}, ins)
	if err != nil {
		return common.Address{}, nil, err
	}
	c.log.Info("Created mint", "mint", addr.TerminalString(), "decimals", opts.Decimals, "audited", opts.Auditor != nil)
	return addr, receipts, nil
}

// CreateTokenAccount creates the token account of owner for mint at its
// derived address.
func (c *Client) CreateTokenAccount(ctx context.Context, payer accountsigner.Signer, owner, mint common.Address) (common.Address, []types.Receipt, error) {
	addr := types.DeriveTokenAccount(owner, mint)
	ins, err := types.NewInstruction(types.ActionCreateTokenAccount, &types.CreateTokenAccountPayload{Account: addr, Mint: mint, Owner: owner})
	if err != nil {
		return common.Address{}, nil, err
	}
	receipt, err := c.choreo.Submit(ctx, payer, nil, ins)
	if err != nil {
		return common.Address{}, nil, err
	}
	return addr, []types.Receipt{*receipt}, nil
}

// MintTo credits amount to the public balance of owner's token account.
func (c *Client) MintTo(ctx context.Context, payer, authority accountsigner.Signer, mint, owner common.Address, amount uint64) ([]types.Receipt, error) {
	ins, err := types.NewInstruction(types.ActionMintTo, &types.MintToPayload{
		Mint:    mint,
		Account: types.DeriveTokenAccount(owner, mint),
		Amount:  amount,
	})
	if err != nil {
		return nil, err
	}
	return c.submit(ctx, Sender{Owner: authority, Payer: payer}, ins)
}

// Airdrop requests lamports on a development ledger. Zero requests the
// configured default.
func (c *Client) Airdrop(ctx context.Context, addr common.Address, lamports uint64) (uint64, error) {
	a, ok := c.ledger.(Airdropper)
	if !ok {
		return 0, errAirdropUnsupported
	}
	if lamports == 0 {
		lamports = c.cfg.AirdropLamports
	}
	balance, err := a.Airdrop(ctx, addr, lamports)
	if err != nil {
		return 0, fmt.Errorf("airdrop to %s: %w", addr.TerminalString(), err)
	}
	return balance, nil
}
