package params

import (
	"errors"
	"fmt"
)

var (
	errTxSizeTooSmall = errors.New("params: max transaction size too small")
	errChunkTooLarge  = errors.New("params: chunk size does not fit a transaction")
)

// LedgerConfig holds the rules a ledger enforces on submissions. Clients read
// the same values to decide between inline and context-account proofs.
type LedgerConfig struct {
	MaxTransactionSize   int    `toml:",omitempty"`
	ChunkSize            int    `toml:",omitempty"`
	MaxPendingCredits    uint64 `toml:",omitempty"`
	RecentOrderingTokens int    `toml:",omitempty"`
	CollateralPerByte    uint64 `toml:",omitempty"`
}

// DefaultLedgerConfig mirrors the limits of the production ledger.
var DefaultLedgerConfig = LedgerConfig{
	MaxTransactionSize:   MaxTransactionSize,
	ChunkSize:            DefaultChunkSize,
	MaxPendingCredits:    MaxPendingCredits,
	RecentOrderingTokens: RecentOrderingTokens,
	CollateralPerByte:    CollateralPerByte,
}

// Sanitize fills zero fields with defaults and checks the result is usable.
func (c LedgerConfig) Sanitize() (LedgerConfig, error) {
	if c.MaxTransactionSize == 0 {
		c.MaxTransactionSize = DefaultLedgerConfig.MaxTransactionSize
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = DefaultLedgerConfig.ChunkSize
	}
	if c.MaxPendingCredits == 0 {
		c.MaxPendingCredits = DefaultLedgerConfig.MaxPendingCredits
	}
	if c.RecentOrderingTokens == 0 {
		c.RecentOrderingTokens = DefaultLedgerConfig.RecentOrderingTokens
	}
	if c.CollateralPerByte == 0 {
		c.CollateralPerByte = DefaultLedgerConfig.CollateralPerByte
	}
	if c.MaxTransactionSize < 256 {
		return c, fmt.Errorf("%w: %d", errTxSizeTooSmall, c.MaxTransactionSize)
	}
	if c.ChunkSize >= c.MaxTransactionSize {
		return c, fmt.Errorf("%w: chunk %d, tx %d", errChunkTooLarge, c.ChunkSize, c.MaxTransactionSize)
	}
	return c, nil
}

// Collateral returns the lamports locked by a context account holding size bytes.
func (c LedgerConfig) Collateral(size int) uint64 {
	return (ContextAccountBase + uint64(size)) * c.CollateralPerByte
}

func (c LedgerConfig) String() string {
	return fmt.Sprintf("{MaxTx: %d Chunk: %d MaxPending: %d RecentTokens: %d CollateralPerByte: %d}",
		c.MaxTransactionSize, c.ChunkSize, c.MaxPendingCredits, c.RecentOrderingTokens, c.CollateralPerByte)
}
