package main

import (
	"fmt"
	"os"

	"github.com/tos-network/ctbal/cmd/utils"
	"github.com/tos-network/ctbal/internal/flags"
	"github.com/urfave/cli/v2"
)

// Git SHA1 commit hash of the release (set via linker flags)
var gitCommit = ""
var gitDate = ""

var app *cli.App

func init() {
	app = flags.NewApp(gitCommit, gitDate, "a confidential token balance client")
	app.Flags = []cli.Flag{
		utils.DataDirFlag,
		utils.ConfigFileFlag,
		utils.VerbosityFlag,
	}
	app.Before = func(ctx *cli.Context) error {
		utils.SetupLogging(ctx)
		return nil
	}
	app.Commands = []*cli.Command{
		commandNewKey,
		commandDevnet,
		commandSetup,
		commandConfigure,
		commandDeposit,
		commandApplyPending,
		commandWithdraw,
		commandTransfer,
		commandBalance,
		commandCloseContext,
		commandDumpConfig,
	}
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
