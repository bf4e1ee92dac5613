package ctclient

import (
	"github.com/ethereum/go-ethereum/log"
	"github.com/tos-network/ctbal/core/choreo"
	"github.com/tos-network/ctbal/params"
)

// Config tunes a Client.
type Config struct {
	// MaxPendingCredits is requested when an account is configured.
	MaxPendingCredits uint64 `toml:",omitempty"`

	// AirdropLamports is the default amount requested by Airdrop.
	AirdropLamports uint64 `toml:",omitempty"`

	Choreo choreo.Config

	Logger log.Logger `toml:"-"`
}

// Defaults are the client settings for the production ledger limits.
var Defaults = Config{
	MaxPendingCredits: params.MaxPendingCredits,
	AirdropLamports:   params.DefaultAirdropLamports,
	Choreo:            choreo.Defaults,
}

func (c Config) sanitize() Config {
	if c.MaxPendingCredits == 0 {
		c.MaxPendingCredits = Defaults.MaxPendingCredits
	}
	if c.AirdropLamports == 0 {
		c.AirdropLamports = Defaults.AirdropLamports
	}
	if c.Logger == nil {
		c.Logger = log.Root()
	}
	if c.Choreo.Logger == nil {
		c.Choreo.Logger = c.Logger
	}
	return c
}
