package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/tos-network/ctbal/cmd/utils"
	"github.com/tos-network/ctbal/internal/flags"
	"github.com/tos-network/ctbal/ledger/ledgerrpc"
	"github.com/tos-network/ctbal/ledger/memledger"
	"github.com/urfave/cli/v2"
)

var (
	httpAddrFlag = &cli.StringFlag{
		Name:     "http.addr",
		Usage:    "Devnet ledger RPC listening address",
		Category: flags.DevCategory,
	}
	ephemeralFlag = &cli.BoolFlag{
		Name:     "dev.ephemeral",
		Usage:    "Keep devnet accounts in memory only",
		Category: flags.DevCategory,
	}
)

var commandDevnet = &cli.Command{
	Name:  "devnet",
	Usage: "run a development ledger over JSON-RPC",
	Description: `
Run the in-memory token program simulator behind a JSON-RPC endpoint. It
enforces the production size limit, ordering tokens, collateral and proof
verification, and accepts airdrops.`,
	Flags: []cli.Flag{httpAddrFlag, ephemeralFlag, utils.MaxPendingCreditsFlag},
	Action: func(ctx *cli.Context) error {
		if err := flags.CheckExclusive(ctx, ephemeralFlag.Name, utils.DataDirFlag.Name); err != nil {
			utils.Fatalf("%v", err)
		}
		cfg := makeConfig(ctx)
		lcfg := memledger.Config{LedgerConfig: cfg.Ledger, ProcessedCache: cfg.Devnet.ProcessedCache}
		if !ctx.Bool(ephemeralFlag.Name) {
			lcfg.DataDir = filepath.Join(utils.MakeDataDir(ctx), "devnet")
		}
		ledger, err := memledger.New(lcfg)
		if err != nil {
			utils.Fatalf("Failed to open devnet ledger: %v", err)
		}
		defer ledger.Close()

		rpcSrv, err := ledgerrpc.NewServer(ledger, cfg.Devnet.AllowAirdrop)
		if err != nil {
			utils.Fatalf("Failed to register ledger API: %v", err)
		}
		defer rpcSrv.Stop()
		srv := &http.Server{Addr: cfg.Devnet.HTTPAddr, Handler: rpcSrv, ReadHeaderTimeout: 10 * time.Second}

		errc := make(chan error, 1)
		go func() { errc <- srv.ListenAndServe() }()
		log.Info("Devnet ledger started", "url", "http://"+cfg.Devnet.HTTPAddr, "datadir", lcfg.DataDir, "slot", ledger.Slot(), "limits", cfg.Ledger)

		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigc)
		select {
		case err := <-errc:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
		case <-sigc:
			log.Info("Got interrupt, shutting down...")
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}
