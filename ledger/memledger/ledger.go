// Package memledger is an in-process ledger running the confidential token
// program. It enforces the transaction size limit, ordering tokens,
// signatures, collateral and every proof check, and applies each
// transaction atomically.
package memledger

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	lru "github.com/hashicorp/golang-lru"
	"github.com/tos-network/ctbal/common"
	"github.com/tos-network/ctbal/core/types"
	"github.com/tos-network/ctbal/ledger/ledgerdb"
)

var (
	txAcceptedMeter = metrics.NewRegisteredMeter("memledger/tx/accepted", nil)
	txRejectedMeter = metrics.NewRegisteredMeter("memledger/tx/rejected", nil)
	txSizeHist      = metrics.NewRegisteredHistogram("memledger/tx/size", nil, metrics.NewExpDecaySample(1028, 0.015))
)

// Ledger is safe for concurrent use; submissions are serialized.
type Ledger struct {
	mu        sync.Mutex
	cfg       Config
	db        *ledgerdb.Database
	slot      uint64
	token     common.Hash
	tokens    *lru.Cache // ordering token -> slot it was issued at
	processed *lru.Cache // tx hash -> slot it landed in
	log       log.Logger
}

// New opens a ledger. Accounts survive restarts when cfg.DataDir is set.
func New(cfg Config) (*Ledger, error) {
	cfg, err := cfg.sanitize()
	if err != nil {
		return nil, err
	}
	var db *ledgerdb.Database
	if cfg.DataDir == "" {
		db, err = ledgerdb.NewMemory()
	} else {
		db, err = ledgerdb.New(cfg.DataDir, 16, 16)
	}
	if err != nil {
		return nil, err
	}
	slot, err := ledgerdb.ReadHeadSlot(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	tokens, err := lru.New(cfg.RecentOrderingTokens)
	if err != nil {
		db.Close()
		return nil, err
	}
	processed, err := lru.New(cfg.ProcessedCache)
	if err != nil {
		db.Close()
		return nil, err
	}
	l := &Ledger{cfg: cfg, db: db, tokens: tokens, processed: processed, log: cfg.Logger.New("ledger", "mem")}
	l.advance(slot)
	l.log.Info("Opened ledger", "slot", slot, "datadir", cfg.DataDir, "limits", cfg.LedgerConfig)
	return l, nil
}

// Close releases the database.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.db.Close()
}

// Config returns the effective configuration.
func (l *Ledger) Config() Config { return l.cfg }

func orderingToken(slot uint64) common.Hash {
	var enc [8]byte
	binary.BigEndian.PutUint64(enc[:], slot)
	return common.Keccak256Hash([]byte("ctbal-ordering-token"), enc[:])
}

func (l *Ledger) advance(slot uint64) {
	l.slot = slot
	l.token = orderingToken(slot)
	l.tokens.Add(l.token, slot)
}

// Slot returns the number of committed transactions.
func (l *Ledger) Slot() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.slot
}

func (l *Ledger) Fetch(ctx context.Context, addr common.Address) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	data := ledgerdb.ReadAccount(l.db, addr)
	if data == nil {
		return nil, types.ErrAccountNotFound
	}
	return common.CopyBytes(data), nil
}

func (l *Ledger) LatestOrderingToken(ctx context.Context) (common.Hash, error) {
	if err := ctx.Err(); err != nil {
		return common.Hash{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.token, nil
}

func (l *Ledger) MaxTransactionSize() int { return l.cfg.MaxTransactionSize }

// Submit executes tx atomically and returns once it is committed.
func (l *Ledger) Submit(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	size := tx.Size()
	txSizeHist.Update(int64(size))
	if size > l.cfg.MaxTransactionSize {
		txRejectedMeter.Mark(1)
		return nil, &types.SizeLimitError{Size: size, Limit: l.cfg.MaxTransactionSize}
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	receipt, err := l.apply(tx, size)
	if err != nil {
		txRejectedMeter.Mark(1)
		l.log.Debug("Rejected transaction", "payer", tx.Payer.TerminalString(), "err", err)
		return nil, err
	}
	txAcceptedMeter.Mark(1)
	l.log.Debug("Committed transaction", "slot", receipt.Slot, "tx", receipt.TxHash.TerminalString(), "size", size, "instructions", receipt.Instructions)
	return receipt, nil
}

func (l *Ledger) apply(tx *types.Transaction, size int) (*types.Receipt, error) {
	if len(tx.Instructions) == 0 {
		return nil, types.NewProgramError(types.CodeInvalidInstruction, "empty transaction")
	}
	if !l.tokens.Contains(tx.OrderingToken) {
		return nil, types.NewProgramError(types.CodeInvalidOrderingToken, "%s", tx.OrderingToken.TerminalString())
	}
	hash := tx.Hash()
	if l.processed.Contains(hash) {
		return nil, types.NewProgramError(types.CodeDuplicateTransaction, "%s", hash.TerminalString())
	}
	signers, err := tx.VerifySignatures()
	if err != nil {
		return nil, types.NewProgramError(types.CodeMissingSignature, "%v", err)
	}
	if !signers[tx.Payer] {
		return nil, types.NewProgramError(types.CodeMissingSignature, "payer %s", tx.Payer.TerminalString())
	}

	st := newOverlay(l.db)
	exec := &executor{cfg: &l.cfg, st: st, payer: tx.Payer, signers: signers}
	names := make([]string, len(tx.Instructions))
	for i, ins := range tx.Instructions {
		if err := exec.execute(ins); err != nil {
			var perr *types.ProgramError
			if !errors.As(err, &perr) {
				perr = types.NewProgramError(types.CodeInvalidInstruction, "%v", err)
			}
			perr.Instruction = i
			return nil, perr
		}
		names[i] = types.ActionName(ins.Action)
	}
	if err := l.commit(st); err != nil {
		return nil, err
	}
	l.processed.Add(hash, l.slot)
	return &types.Receipt{TxHash: hash, Slot: l.slot, Size: size, Instructions: names}, nil
}

func (l *Ledger) commit(st *overlay) error {
	batch := l.db.NewBatch()
	if err := st.flush(batch); err != nil {
		return err
	}
	if err := ledgerdb.WriteHeadSlot(batch, l.slot+1); err != nil {
		return err
	}
	if err := batch.Write(); err != nil {
		return err
	}
	l.advance(l.slot + 1)
	return nil
}

// Airdrop credits lamports to addr, creating a system account if needed,
// and returns the new balance. Only development ledgers expose it.
func (l *Ledger) Airdrop(ctx context.Context, addr common.Address, lamports uint64) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	st := newOverlay(l.db)
	exec := &executor{cfg: &l.cfg, st: st}
	if err := exec.credit(addr, lamports); err != nil {
		return 0, err
	}
	balance, err := exec.lamports(addr)
	if err != nil {
		return 0, err
	}
	if err := l.commit(st); err != nil {
		return 0, err
	}
	l.log.Info("Airdropped lamports", "account", addr.TerminalString(), "amount", lamports, "balance", balance)
	return balance, nil
}

// AccountCount returns the number of live accounts.
func (l *Ledger) AccountCount() (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	err := ledgerdb.IterateAccounts(l.db, func(common.Address, []byte) bool {
		n++
		return true
	})
	return n, err
}
