package memledger

import (
	"github.com/ethereum/go-ethereum/log"
	"github.com/tos-network/ctbal/params"
)

// Config configures a simulated ledger.
type Config struct {
	params.LedgerConfig

	// DataDir persists accounts in LevelDB. Empty keeps them in memory.
	DataDir string `toml:",omitempty"`

	// ProcessedCache bounds the number of transaction hashes remembered for
	// duplicate detection.
	ProcessedCache int `toml:",omitempty"`

	Logger log.Logger `toml:"-"`
}

// Defaults match the production ledger limits.
var Defaults = Config{
	LedgerConfig:   params.DefaultLedgerConfig,
	ProcessedCache: 4096,
}

func (c Config) sanitize() (Config, error) {
	lc, err := c.LedgerConfig.Sanitize()
	if err != nil {
		return c, err
	}
	c.LedgerConfig = lc
	if c.ProcessedCache <= 0 {
		c.ProcessedCache = Defaults.ProcessedCache
	}
	if c.Logger == nil {
		c.Logger = log.Root()
	}
	return c, nil
}
