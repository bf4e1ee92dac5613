package choreo

import (
	"errors"

	"github.com/ethereum/go-ethereum/log"
	"github.com/tos-network/ctbal/params"
)

var errInvalidChunkSize = errors.New("choreo: chunk size must be positive")

// Config tunes how proofs are moved into context accounts.
type Config struct {
	// ChunkSize is the number of proof bytes written by one populate
	// submission.
	ChunkSize int

	// Logger receives per-stage progress. Defaults to the root logger.
	Logger log.Logger `toml:"-"`
}

// Defaults are the settings used against the production ledger limits.
var Defaults = Config{
	ChunkSize: params.DefaultChunkSize,
}

func (c Config) sanitize() (Config, error) {
	if c.ChunkSize == 0 {
		c.ChunkSize = Defaults.ChunkSize
	}
	if c.ChunkSize < 0 {
		return c, errInvalidChunkSize
	}
	if c.Logger == nil {
		c.Logger = log.Root()
	}
	return c, nil
}
