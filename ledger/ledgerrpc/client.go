package ledgerrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/tos-network/ctbal/common"
	"github.com/tos-network/ctbal/core/confidential"
	"github.com/tos-network/ctbal/core/types"
)

// Client is a confidential.LedgerClient talking to a remote ledger.
type Client struct {
	c       *rpc.Client
	maxSize int
}

var _ confidential.LedgerClient = (*Client)(nil)

// Dial connects a client to the given URL.
func Dial(ctx context.Context, rawurl string) (*Client, error) {
	c, err := rpc.DialContext(ctx, rawurl)
	if err != nil {
		return nil, err
	}
	return NewClient(ctx, c)
}

// NewClient wraps c and reads the ledger's size limit once.
func NewClient(ctx context.Context, c *rpc.Client) (*Client, error) {
	var size hexutil.Uint64
	if err := c.CallContext(ctx, &size, "ledger_maxTransactionSize"); err != nil {
		c.Close()
		return nil, fmt.Errorf("%w: %v", types.ErrSubmission, err)
	}
	return &Client{c: c, maxSize: int(size)}, nil
}

// Close closes the underlying connection.
func (lc *Client) Close() { lc.c.Close() }

func (lc *Client) Fetch(ctx context.Context, addr common.Address) ([]byte, error) {
	var data hexutil.Bytes
	if err := lc.c.CallContext(ctx, &data, "ledger_getAccount", addr); err != nil {
		return nil, fromRPCError(err)
	}
	return data, nil
}

func (lc *Client) Submit(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, err
	}
	var receipt types.Receipt
	if err := lc.c.CallContext(ctx, &receipt, "ledger_sendTransaction", hexutil.Bytes(raw)); err != nil {
		return nil, fromRPCError(err)
	}
	return &receipt, nil
}

func (lc *Client) LatestOrderingToken(ctx context.Context) (common.Hash, error) {
	var token common.Hash
	if err := lc.c.CallContext(ctx, &token, "ledger_latestOrderingToken"); err != nil {
		return common.Hash{}, fromRPCError(err)
	}
	return token, nil
}

func (lc *Client) MaxTransactionSize() int { return lc.maxSize }

// Airdrop requests lamports from a development ledger.
func (lc *Client) Airdrop(ctx context.Context, addr common.Address, lamports uint64) (uint64, error) {
	var balance hexutil.Uint64
	if err := lc.c.CallContext(ctx, &balance, "ledger_airdrop", addr, hexutil.Uint64(lamports)); err != nil {
		return 0, fromRPCError(err)
	}
	return uint64(balance), nil
}

// fromRPCError rebuilds ledger errors from their wire form. Anything else
// is a submission failure.
func fromRPCError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var rerr rpc.Error
	if !errors.As(err, &rerr) {
		return fmt.Errorf("%w: %v", types.ErrSubmission, err)
	}
	var data interface{}
	var derr rpc.DataError
	if errors.As(err, &derr) {
		data = derr.ErrorData()
	}
	switch rerr.ErrorCode() {
	case errCodeNotFound:
		return types.ErrAccountNotFound
	case errCodeProgram:
		var d programErrorData
		if decodeData(data, &d) == nil {
			return &types.ProgramError{Instruction: d.Instruction, Code: types.ErrorCode(d.Code), Detail: d.Detail}
		}
	case errCodeSizeLimit:
		var d sizeErrorData
		if decodeData(data, &d) == nil {
			return &types.SizeLimitError{Size: d.Size, Limit: d.Limit}
		}
	}
	return fmt.Errorf("%w: %v", types.ErrSubmission, err)
}

func decodeData(data interface{}, out interface{}) error {
	if data == nil {
		return errors.New("no error data")
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
