package ctclient

import (
	"context"
	"fmt"
	"math/bits"

	"github.com/tos-network/ctbal/common"
	"github.com/tos-network/ctbal/core/confidential"
)

// Balances is the decrypted view of one token account.
type Balances struct {
	Account common.Address
	Public  uint64

	PendingLo uint64
	PendingHi uint64
	Pending   uint64
	Available uint64
	Total     uint64

	PendingCredits    uint64
	MaxPendingCredits uint64

	Configured                  bool
	Approved                    bool
	AllowConfidentialCredits    bool
	AllowNonConfidentialCredits bool
}

// Balances decrypts the sender's balances for mint. An account that is not
// configured reports only its public balance.
func (c *Client) Balances(ctx context.Context, s Sender, mint common.Address) (*Balances, error) {
	st, keys, err := c.load(ctx, s, mint)
	if err != nil {
		return nil, err
	}
	b := &Balances{
		Account:                     st.Address,
		Public:                      st.PublicBalance,
		PendingCredits:              st.PendingCreditCounter,
		MaxPendingCredits:           st.MaxPendingCreditCounter,
		Configured:                  st.Configured,
		Approved:                    st.Approved,
		AllowConfidentialCredits:    st.AllowConfidentialCredits,
		AllowNonConfidentialCredits: st.AllowNonConfidentialCredits,
	}
	if !st.Configured {
		b.Total = st.PublicBalance
		return b, nil
	}
	if b.PendingLo, err = c.engine.DecryptAsym(st.PendingLo, &keys.ElGamal.Secret); err != nil {
		return nil, fmt.Errorf("%w: pending lo: %v", confidential.ErrDecryption, err)
	}
	if b.PendingHi, err = c.engine.DecryptAsym(st.PendingHi, &keys.ElGamal.Secret); err != nil {
		return nil, fmt.Errorf("%w: pending hi: %v", confidential.ErrDecryption, err)
	}
	if b.Pending, err = (confidential.PendingSplit{Lo: b.PendingLo, Hi: b.PendingHi}).Combine(); err != nil {
		return nil, fmt.Errorf("%w: %v", confidential.ErrDecryption, err)
	}
	if b.Available, err = confidential.DecryptAvailable(st, keys, c.engine); err != nil {
		return nil, err
	}
	var carry uint64
	b.Total, carry = bits.Add64(b.Available, b.Pending, 0)
	if carry == 0 {
		b.Total, carry = bits.Add64(b.Total, b.Public, 0)
	}
	if carry != 0 {
		return nil, fmt.Errorf("%w: total balance overflows", confidential.ErrInvalidAmount)
	}
	return b, nil
}
