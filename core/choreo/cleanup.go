package choreo

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/log"
	"github.com/tos-network/ctbal/accountsigner"
	"github.com/tos-network/ctbal/common"
	"github.com/tos-network/ctbal/core/confidential"
	"github.com/tos-network/ctbal/core/types"
)

var errNotContextAuthority = errors.New("choreo: payer is not the context authority")

// cleanup closes addrs in one submission, falling back to one submission per
// account. Accounts that stay open are reported in a RecoverableLeakError.
func (c *Choreographer) cleanup(ctx context.Context, logger log.Logger, payer accountsigner.Signer, dest common.Address, addrs []common.Address, res *Result) error {
	closes := make([]types.Instruction, len(addrs))
	for i, addr := range addrs {
		ins, err := closeInstruction(addr, dest)
		if err != nil {
			return &confidential.RecoverableLeakError{Accounts: addrs, Err: err}
		}
		closes[i] = ins
	}
	receipt, err := c.Submit(ctx, payer, nil, closes...)
	if err == nil {
		res.record(receipt)
		closedCounter.Inc(int64(len(addrs)))
		logger.Debug("Closed context accounts", "count", len(addrs))
		return nil
	}
	logger.Debug("Batched close failed, closing individually", "err", err)

	var (
		leaked []common.Address
		errs   []error
	)
	for i, addr := range addrs {
		receipt, err := c.Submit(ctx, payer, nil, closes[i])
		if err != nil {
			leaked = append(leaked, addr)
			errs = append(errs, fmt.Errorf("%s: %w", addr.TerminalString(), err))
			continue
		}
		res.record(receipt)
		closedCounter.Inc(1)
	}
	if len(leaked) == 0 {
		return nil
	}
	leakedCounter.Inc(int64(len(leaked)))
	logger.Warn("Context accounts left open", "count", len(leaked), "accounts", leaked)
	return &confidential.RecoverableLeakError{Accounts: leaked, Err: errors.Join(errs...)}
}

func closeInstruction(addr, dest common.Address) (types.Instruction, error) {
	return types.NewInstruction(types.ActionCloseContext, &types.CloseContextPayload{Context: addr, Destination: dest})
}

// CloseContextAccounts closes the given context accounts owned by payer and
// returns their collateral to dest. Accounts that no longer exist are
// skipped, so calling it again after a partial failure is safe.
func (c *Choreographer) CloseContextAccounts(ctx context.Context, payer accountsigner.Signer, dest common.Address, addrs []common.Address) ([]types.Receipt, error) {
	var open []common.Address
	for _, addr := range addrs {
		raw, err := c.ledger.Fetch(ctx, addr)
		if errors.Is(err, confidential.ErrAccountNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		acc, _, err := types.DecodeContextAccount(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", confidential.ErrMalformedAccount, addr.TerminalString(), err)
		}
		if acc.Authority != payer.Address() {
			return nil, fmt.Errorf("%w: %s", errNotContextAuthority, addr.TerminalString())
		}
		open = append(open, addr)
	}
	res := &Result{Contexts: open}
	if len(open) == 0 {
		return nil, nil
	}
	err := c.cleanup(ctx, c.log, payer, dest, open, res)
	return res.Receipts, err
}
