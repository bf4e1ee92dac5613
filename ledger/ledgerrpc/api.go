// Package ledgerrpc serves a ledger over JSON-RPC under the "ledger"
// namespace and provides the matching client.
package ledgerrpc

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/tos-network/ctbal/common"
	"github.com/tos-network/ctbal/core/types"
)

const (
	errCodeProgram      = -39000
	errCodeSizeLimit    = -39001
	errCodeNotFound     = -39002
	errCodeInvalidTx    = -39003
	errCodeNotSupported = -39004
)

// apiError is a JSON-RPC error with a stable application code and an
// optional data payload.
type apiError struct {
	code    int
	message string
	data    interface{}
}

func (e *apiError) Error() string          { return e.message }
func (e *apiError) ErrorCode() int         { return e.code }
func (e *apiError) ErrorData() interface{} { return e.data }

type programErrorData struct {
	Instruction int    `json:"instruction"`
	Code        uint32 `json:"code"`
	Detail      string `json:"detail"`
}

type sizeErrorData struct {
	Size  int `json:"size"`
	Limit int `json:"limit"`
}

// toAPIError keeps ledger errors recognizable on the far side of the wire.
func toAPIError(err error) error {
	var (
		perr *types.ProgramError
		serr *types.SizeLimitError
	)
	switch {
	case err == nil:
		return nil
	case errors.As(err, &perr):
		return &apiError{code: errCodeProgram, message: perr.Error(), data: programErrorData{
			Instruction: perr.Instruction, Code: uint32(perr.Code), Detail: perr.Detail,
		}}
	case errors.As(err, &serr):
		return &apiError{code: errCodeSizeLimit, message: serr.Error(), data: sizeErrorData{Size: serr.Size, Limit: serr.Limit}}
	case errors.Is(err, types.ErrAccountNotFound):
		return &apiError{code: errCodeNotFound, message: err.Error()}
	}
	return err
}

// Backend is the ledger being served.
type Backend interface {
	Fetch(ctx context.Context, addr common.Address) ([]byte, error)
	Submit(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
	LatestOrderingToken(ctx context.Context) (common.Hash, error)
	MaxTransactionSize() int
	Airdrop(ctx context.Context, addr common.Address, lamports uint64) (uint64, error)
}

// LedgerAPI exposes Backend methods under the "ledger" namespace.
type LedgerAPI struct {
	b            Backend
	allowAirdrop bool
}

// NewLedgerAPI creates the service. Airdrops are refused unless allowed.
func NewLedgerAPI(b Backend, allowAirdrop bool) *LedgerAPI {
	return &LedgerAPI{b: b, allowAirdrop: allowAirdrop}
}

// GetAccount returns the encoded account at addr.
func (api *LedgerAPI) GetAccount(ctx context.Context, addr common.Address) (hexutil.Bytes, error) {
	data, err := api.b.Fetch(ctx, addr)
	if err != nil {
		return nil, toAPIError(err)
	}
	return data, nil
}

// SendTransaction executes an encoded transaction and returns its receipt.
func (api *LedgerAPI) SendTransaction(ctx context.Context, raw hexutil.Bytes) (*types.Receipt, error) {
	if limit := api.b.MaxTransactionSize(); len(raw) > limit {
		return nil, toAPIError(&types.SizeLimitError{Size: len(raw), Limit: limit})
	}
	tx, err := types.DecodeTransaction(raw)
	if err != nil {
		return nil, &apiError{code: errCodeInvalidTx, message: err.Error()}
	}
	receipt, err := api.b.Submit(ctx, tx)
	if err != nil {
		return nil, toAPIError(err)
	}
	return receipt, nil
}

// LatestOrderingToken returns the token to put in the next transaction.
func (api *LedgerAPI) LatestOrderingToken(ctx context.Context) (common.Hash, error) {
	return api.b.LatestOrderingToken(ctx)
}

// MaxTransactionSize returns the encoded size limit of a transaction.
func (api *LedgerAPI) MaxTransactionSize() hexutil.Uint64 {
	return hexutil.Uint64(api.b.MaxTransactionSize())
}

// Airdrop credits lamports on development ledgers.
func (api *LedgerAPI) Airdrop(ctx context.Context, addr common.Address, lamports hexutil.Uint64) (hexutil.Uint64, error) {
	if !api.allowAirdrop {
		return 0, &apiError{code: errCodeNotSupported, message: "airdrop disabled"}
	}
	balance, err := api.b.Airdrop(ctx, addr, uint64(lamports))
	if err != nil {
		return 0, toAPIError(err)
	}
	return hexutil.Uint64(balance), nil
}

// NewServer returns an RPC server with the ledger API registered. It serves
// HTTP directly and in-process clients through rpc.DialInProc.
func NewServer(b Backend, allowAirdrop bool) (*rpc.Server, error) {
	srv := rpc.NewServer()
	if err := srv.RegisterName("ledger", NewLedgerAPI(b, allowAirdrop)); err != nil {
		return nil, err
	}
	return srv, nil
}
