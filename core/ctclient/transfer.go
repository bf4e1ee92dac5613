package ctclient

import (
	"context"

	"github.com/tos-network/ctbal/accountsigner"
	"github.com/tos-network/ctbal/common"
	"github.com/tos-network/ctbal/core/choreo"
	"github.com/tos-network/ctbal/core/confidential"
	"github.com/tos-network/ctbal/core/types"
	"github.com/tos-network/ctbal/crypto/elgamal"
)

// Transfer moves amount from the sender's available balance to the pending
// balance of recipientOwner's token account for mint. Proofs that do not fit
// the transfer transaction travel through context accounts; at the protocol
// size limit that is all three. Every receipt is returned in submission
// order, including those of a failed attempt.
func (c *Client) Transfer(ctx context.Context, s Sender, mint, recipientOwner common.Address, amount uint64) ([]types.Receipt, error) {
	src, keys, err := c.load(ctx, s, mint)
	if err != nil {
		return nil, err
	}
	dst, err := c.fetchState(ctx, types.DeriveTokenAccount(recipientOwner, mint))
	if err != nil {
		return nil, err
	}
	_, mintExt, err := c.fetchMint(ctx, mint)
	if err != nil {
		return nil, err
	}
	var auditor *elgamal.PublicKey
	if mintExt.HasAuditor() {
		auditor = &mintExt.Auditor
	}

	res, err := c.choreo.Execute(ctx, choreo.Request{
		Payer:   s.payer(),
		Signers: []accountsigner.Signer{s.Owner},
		Generate: func() (*confidential.Transition, error) {
			return confidential.Transfer(src, dst, auditor, amount, keys, c.engine)
		},
	})
	if err != nil {
		return res.Receipts, err
	}
	c.log.Info("Transferred confidentially", "from", src.Address.TerminalString(), "to", dst.Address.TerminalString(),
		"audited", auditor != nil, "op", res.OpID, "txs", len(res.Receipts))
	c.checkExpected(ctx, res.Transition.Expected)
	c.checkExpected(ctx, res.Transition.Counterparty)
	return res.Receipts, nil
}
