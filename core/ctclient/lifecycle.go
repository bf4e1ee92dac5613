package ctclient

import (
	"context"

	"github.com/tos-network/ctbal/accountsigner"
	"github.com/tos-network/ctbal/common"
	"github.com/tos-network/ctbal/core/choreo"
	"github.com/tos-network/ctbal/core/confidential"
	"github.com/tos-network/ctbal/core/types"
)

// Configure enables confidential balances on the sender's token account.
// A configured account fails with ErrAlreadyConfigured.
func (c *Client) Configure(ctx context.Context, s Sender, mint common.Address) ([]types.Receipt, error) {
	st, keys, err := c.load(ctx, s, mint)
	if err != nil {
		return nil, err
	}
	_, mintExt, err := c.fetchMint(ctx, mint)
	if err != nil {
		return nil, err
	}
	tr, err := confidential.Configure(st, keys, c.engine, c.cfg.MaxPendingCredits, mintExt.AutoApprove)
	if err != nil {
		return nil, err
	}
	receipts, err := c.submit(ctx, s, tr.Instructions...)
	if err != nil {
		return nil, err
	}
	c.log.Info("Configured confidential account", "account", st.Address.TerminalString(), "approved", mintExt.AutoApprove)
	c.checkExpected(ctx, tr.Expected)
	return receipts, nil
}

// Deposit moves amount of the public balance into the pending balance.
func (c *Client) Deposit(ctx context.Context, s Sender, mint common.Address, amount uint64) ([]types.Receipt, error) {
	st, _, err := c.load(ctx, s, mint)
	if err != nil {
		return nil, err
	}
	m, _, err := c.fetchMint(ctx, mint)
	if err != nil {
		return nil, err
	}
	tr, err := confidential.Deposit(st, amount, m.Decimals)
	if err != nil {
		return nil, err
	}
	receipts, err := c.submit(ctx, s, tr.Instructions...)
	if err != nil {
		return nil, err
	}
	c.log.Info("Deposited to pending balance", "account", st.Address.TerminalString(), "amount", amount)
	c.checkExpected(ctx, tr.Expected)
	return receipts, nil
}

// ApplyPending folds the pending balance into the available balance. A
// credit landing between the read and the submission fails the call with
// ErrStaleState.
func (c *Client) ApplyPending(ctx context.Context, s Sender, mint common.Address) ([]types.Receipt, error) {
	st, keys, err := c.load(ctx, s, mint)
	if err != nil {
		return nil, err
	}
	tr, err := confidential.ApplyPending(st, keys, c.engine)
	if err != nil {
		return nil, err
	}
	receipts, err := c.submit(ctx, s, tr.Instructions...)
	if err != nil {
		return nil, err
	}
	c.log.Info("Applied pending balance", "account", st.Address.TerminalString(), "credits", st.PendingCreditCounter)
	c.checkExpected(ctx, tr.Expected)
	return receipts, nil
}

// Withdraw moves amount of the available balance back to the public
// balance. Proofs go inline when the transaction fits and through context
// accounts otherwise.
func (c *Client) Withdraw(ctx context.Context, s Sender, mint common.Address, amount uint64) ([]types.Receipt, error) {
	st, keys, err := c.load(ctx, s, mint)
	if err != nil {
		return nil, err
	}
	m, _, err := c.fetchMint(ctx, mint)
	if err != nil {
		return nil, err
	}
	res, err := c.choreo.Execute(ctx, choreo.Request{
		Payer:   s.payer(),
		Signers: []accountsigner.Signer{s.Owner},
		Generate: func() (*confidential.Transition, error) {
			return confidential.Withdraw(st, amount, m.Decimals, keys, c.engine)
		},
	})
	if err != nil {
		return res.Receipts, err
	}
	c.log.Info("Withdrew from available balance", "account", st.Address.TerminalString(), "amount", amount, "contexts", len(res.Contexts))
	c.checkExpected(ctx, res.Transition.Expected)
	return res.Receipts, nil
}
