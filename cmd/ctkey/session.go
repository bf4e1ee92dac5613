package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/tos-network/ctbal/accountsigner"
	"github.com/tos-network/ctbal/cmd/utils"
	"github.com/tos-network/ctbal/common"
	"github.com/tos-network/ctbal/core/confidential"
	"github.com/tos-network/ctbal/core/ctclient"
	"github.com/tos-network/ctbal/core/types"
	"github.com/tos-network/ctbal/crypto/ctengine"
	"github.com/tos-network/ctbal/internal/balancetracker"
	"github.com/tos-network/ctbal/internal/flags"
	"github.com/tos-network/ctbal/ledger/ledgerrpc"
	"github.com/urfave/cli/v2"
)

var (
	mintFlag = &cli.StringFlag{
		Name:     "mint",
		Usage:    "Mint address",
		Category: flags.AccountCategory,
	}
	acceptRollbackFlag = &cli.BoolFlag{
		Name:     "track.accept-rollback",
		Usage:    "Accept a ledger that moved backward since the last run",
		Category: flags.TrackerCategory,
	}
	noTrackFlag = &cli.BoolFlag{
		Name:     "track.disable",
		Usage:    "Do not record observed balances",
		Category: flags.TrackerCategory,
	}
)

var sessionFlags = []cli.Flag{
	utils.RPCFlag,
	keyFlag,
	payerFlag,
	mintFlag,
	utils.ChunkSizeFlag,
	utils.MaxPendingCreditsFlag,
	acceptRollbackFlag,
	noTrackFlag,
	utils.JSONFlag,
}

// session is one command invocation against a remote ledger.
type session struct {
	cfg     ctkeyConfig
	datadir string
	json    bool
	ledger  *ledgerrpc.Client
	client  *ctclient.Client
	sender  ctclient.Sender
	mint    common.Address
}

func openSession(ctx *cli.Context, needMint bool) *session {
	s := &session{
		cfg:     makeConfig(ctx),
		datadir: utils.MakeDataDir(ctx),
		json:    ctx.Bool(utils.JSONFlag.Name),
	}
	s.sender.Owner = loadSigner(ctx, keyFlag)
	if ctx.IsSet(payerFlag.Name) {
		s.sender.Payer = loadSigner(ctx, payerFlag)
	}
	if m := ctx.String(mintFlag.Name); m != "" {
		if !common.IsHexAddress(m) {
			utils.Fatalf("Invalid mint address %q", m)
		}
		s.mint = common.HexToAddress(m)
	} else if needMint {
		utils.Fatalf("--%s is required", mintFlag.Name)
	}
	var err error
	if s.ledger, err = ledgerrpc.Dial(ctx.Context, ctx.String(utils.RPCFlag.Name)); err != nil {
		utils.Fatalf("Failed to connect to ledger: %v", err)
	}
	if s.client, err = ctclient.New(s.ledger, ctengine.New(), s.cfg.Client); err != nil {
		utils.Fatalf("Failed to create client: %v", err)
	}
	return s
}

func (s *session) Close() { s.ledger.Close() }

func (s *session) payer() accountsigner.Signer {
	if s.sender.Payer != nil {
		return s.sender.Payer
	}
	return s.sender.Owner
}

// finish prints the receipts of an operation and records the new balances.
func (s *session) finish(ctx context.Context, what string, receipts []types.Receipt, err error) error {
	if len(receipts) > 0 && !s.json {
		printReceipts(receipts)
	}
	if err != nil {
		var leak *confidential.RecoverableLeakError
		if errors.As(err, &leak) {
			addrs := make([]string, len(leak.Accounts))
			for i, a := range leak.Accounts {
				addrs[i] = a.Hex()
			}
			fmt.Println(color.YellowString("Collateral is locked in %d context account(s). Reclaim it with:", len(addrs)))
			fmt.Printf("  ctkey close-context --mint %s %s\n", s.mint.Hex(), strings.Join(addrs, ","))
		}
		return fmt.Errorf("%s failed: %w", what, err)
	}
	if s.json {
		mustPrintJSON(receipts)
	} else {
		fmt.Printf("%s %s in %d transaction(s)\n", color.GreenString("✔"), what, len(receipts))
	}
	if _, err := s.track(ctx, receipts); err != nil {
		return err
	}
	return nil
}

func (s *session) trackerPath() string {
	name := fmt.Sprintf("%x-%x.json", s.mint[:8], s.sender.TokenAccount(s.mint).Bytes()[:8])
	return filepath.Join(s.datadir, "tracker", name)
}

// track decrypts the current balances and checks them against the last
// recorded state.
func (s *session) track(ctx context.Context, receipts []types.Receipt) (*ctclient.Balances, error) {
	b, err := s.client.Balances(ctx, s.sender, s.mint)
	if err != nil {
		return nil, err
	}
	if s.cfg.Tracker.Disabled {
		return b, nil
	}
	path := s.trackerPath()
	prev, err := balancetracker.Load(path)
	if err != nil {
		return nil, err
	}
	curr := balancetracker.State{
		Account:        b.Account.Hex(),
		Mint:           s.mint.Hex(),
		Public:         b.Public,
		Pending:        b.Pending,
		Available:      b.Available,
		PendingCredits: b.PendingCredits,
	}
	if prev != nil {
		curr.Slot = prev.Slot
	}
	if n := len(receipts); n > 0 {
		curr.Slot = receipts[n-1].Slot
	}
	if err := balancetracker.Validate(prev, curr, s.cfg.Tracker.AcceptRollback); err != nil {
		return nil, err
	}
	return b, balancetracker.Save(path, curr)
}

func parseAmount(ctx *cli.Context, idx int) uint64 {
	arg := ctx.Args().Get(idx)
	if arg == "" {
		utils.Fatalf("Missing amount argument")
	}
	v, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		utils.Fatalf("Invalid amount %q: %v", arg, err)
	}
	return v
}
