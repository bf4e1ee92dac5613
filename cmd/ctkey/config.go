package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"reflect"
	"unicode"

	"github.com/naoina/toml"
	"github.com/tos-network/ctbal/cmd/utils"
	"github.com/tos-network/ctbal/core/ctclient"
	"github.com/tos-network/ctbal/params"
	"github.com/urfave/cli/v2"
)

// These settings ensure that TOML keys use the same names as Go struct fields.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		id := fmt.Sprintf("%s.%s", rt.String(), field)
		link := ""
		if unicode.IsUpper(rune(rt.Name()[0])) && rt.PkgPath() != "main" {
			link = fmt.Sprintf(", see https://pkg.go.dev/%s#%s for available fields", rt.PkgPath(), rt.Name())
		}
		return fmt.Errorf("field '%s' is not defined in %s%s", field, id, link)
	},
}

type devnetConfig struct {
	HTTPAddr       string
	AllowAirdrop   bool
	ProcessedCache int `toml:",omitempty"`
}

type trackerConfig struct {
	Disabled       bool
	AcceptRollback bool
}

type ctkeyConfig struct {
	Client  ctclient.Config
	Ledger  params.LedgerConfig
	Devnet  devnetConfig
	Tracker trackerConfig
}

var defaultConfig = ctkeyConfig{
	Client: ctclient.Defaults,
	Ledger: params.DefaultLedgerConfig,
	Devnet: devnetConfig{HTTPAddr: "127.0.0.1:8899", AllowAirdrop: true},
}

func loadConfig(file string, cfg *ctkeyConfig) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	// Add file name to errors that have a line number.
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(file + ", " + err.Error())
	}
	return err
}

// makeConfig loads the config file and applies command line overrides.
func makeConfig(ctx *cli.Context) ctkeyConfig {
	cfg := defaultConfig
	if file := ctx.String(utils.ConfigFileFlag.Name); file != "" {
		if err := loadConfig(file, &cfg); err != nil {
			utils.Fatalf("%v", err)
		}
	}
	if ctx.IsSet(utils.ChunkSizeFlag.Name) {
		cfg.Client.Choreo.ChunkSize = ctx.Int(utils.ChunkSizeFlag.Name)
	}
	if ctx.IsSet(utils.MaxPendingCreditsFlag.Name) {
		cfg.Client.MaxPendingCredits = ctx.Uint64(utils.MaxPendingCreditsFlag.Name)
		cfg.Ledger.MaxPendingCredits = cfg.Client.MaxPendingCredits
	}
	if ctx.IsSet(httpAddrFlag.Name) {
		cfg.Devnet.HTTPAddr = ctx.String(httpAddrFlag.Name)
	}
	if ctx.IsSet(acceptRollbackFlag.Name) {
		cfg.Tracker.AcceptRollback = ctx.Bool(acceptRollbackFlag.Name)
	}
	if ctx.IsSet(noTrackFlag.Name) {
		cfg.Tracker.Disabled = ctx.Bool(noTrackFlag.Name)
	}
	return cfg
}

var commandDumpConfig = &cli.Command{
	Name:        "dumpconfig",
	Usage:       "Show configuration values",
	ArgsUsage:   "[<file>]",
	Flags:       []cli.Flag{utils.ChunkSizeFlag, utils.MaxPendingCreditsFlag, httpAddrFlag, acceptRollbackFlag, noTrackFlag},
	Description: `The dumpconfig command shows configuration values.`,
	Action: func(ctx *cli.Context) error {
		cfg := makeConfig(ctx)
		out, err := tomlSettings.Marshal(&cfg)
		if err != nil {
			return err
		}
		dump := os.Stdout
		if ctx.NArg() > 0 {
			dump, err = os.OpenFile(ctx.Args().Get(0), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
			if err != nil {
				return err
			}
			defer dump.Close()
		}
		dump.WriteString("# Note: this config doesn't contain the logger, it is set by --verbosity.\n\n")
		dump.Write(out)
		return nil
	},
}
