package main

import (
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/tos-network/ctbal/accountsigner"
	"github.com/tos-network/ctbal/cmd/utils"
	"github.com/tos-network/ctbal/common"
	"github.com/tos-network/ctbal/core/confidential"
	"github.com/tos-network/ctbal/core/ctclient"
	"github.com/tos-network/ctbal/core/types"
	"github.com/tos-network/ctbal/internal/flags"
	"github.com/urfave/cli/v2"
)

var (
	decimalsFlag = &cli.UintFlag{
		Name:     "decimals",
		Usage:    "Decimals of a new mint",
		Value:    2,
		Category: flags.AccountCategory,
	}
	auditorFlag = &cli.BoolFlag{
		Name:     "auditor",
		Usage:    "Give a new mint an auditor key derived from the authority",
		Category: flags.AccountCategory,
	}
	autoApproveFlag = &cli.BoolFlag{
		Name:     "autoapprove",
		Usage:    "Approve configured accounts of a new mint automatically",
		Value:    true,
		Category: flags.AccountCategory,
	}
	fundFlag = &cli.Uint64Flag{
		Name:     "fund",
		Usage:    "Public tokens minted to the account",
		Category: flags.AccountCategory,
	}
	airdropFlag = &cli.Uint64Flag{
		Name:     "airdrop",
		Usage:    "Lamports requested for the payer from a devnet ledger",
		Category: flags.DevCategory,
	}
	toFlag = &cli.StringFlag{
		Name:     "to",
		Usage:    "Owner address of the recipient token account",
		Category: flags.AccountCategory,
	}
)

var commandSetup = &cli.Command{
	Name:  "setup",
	Usage: "create a mint and a token account",
	Description: `
Create the owner's token account for --mint, creating the mint first when it
does not exist yet or --mint is not given. --fund mints public tokens signed
by --authority.`,
	Flags: append([]cli.Flag{authorityFlag, decimalsFlag, auditorFlag, autoApproveFlag, fundFlag, airdropFlag}, sessionFlags...),
	Action: func(ctx *cli.Context) error {
		s := openSession(ctx, false)
		defer s.Close()
		var receipts []types.Receipt

		if n := ctx.Uint64(airdropFlag.Name); n > 0 {
			balance, err := s.client.Airdrop(ctx.Context, s.payer().Address(), n)
			if err != nil {
				return err
			}
			fmt.Printf("Payer %s holds %d lamports\n", s.payer().Address().Hex(), balance)
		}
		createMint := s.mint.IsZero()
		if !createMint {
			_, err := s.ledger.Fetch(ctx.Context, s.mint)
			switch {
			case errors.Is(err, types.ErrAccountNotFound):
				createMint = true
			case err != nil:
				return err
			}
		}
		var authority accountsigner.Signer
		if createMint || ctx.Uint64(fundFlag.Name) > 0 {
			authority = loadSigner(ctx, authorityFlag)
		}
		if createMint {
			opts := ctclient.MintOptions{
				Address:     s.mint,
				Decimals:    uint8(ctx.Uint(decimalsFlag.Name)),
				AutoApprove: ctx.Bool(autoApproveFlag.Name),
			}
			if opts.Address.IsZero() {
				key, err := accountsigner.GenerateEd25519Signer(rand.Reader)
				if err != nil {
					return err
				}
				opts.Address = key.Address()
			}
			if ctx.Bool(auditorFlag.Name) {
				keys, err := confidential.DeriveKeyMaterial(authority, opts.Address)
				if err != nil {
					return err
				}
				opts.Auditor = &keys.ElGamal.Public
			}
			mint, rs, err := s.client.CreateMint(ctx.Context, s.payer(), authority, opts)
			if err != nil {
				return err
			}
			s.mint = mint
			receipts = append(receipts, rs...)
		}

		account := s.sender.TokenAccount(s.mint)
		_, err := s.ledger.Fetch(ctx.Context, account)
		switch {
		case errors.Is(err, types.ErrAccountNotFound):
			_, rs, err := s.client.CreateTokenAccount(ctx.Context, s.payer(), s.sender.Owner.Address(), s.mint)
			if err != nil {
				return err
			}
			receipts = append(receipts, rs...)
		case err != nil:
			return err
		}
		if n := ctx.Uint64(fundFlag.Name); n > 0 {
			rs, err := s.client.MintTo(ctx.Context, s.payer(), authority, s.mint, s.sender.Owner.Address(), n)
			if err != nil {
				return err
			}
			receipts = append(receipts, rs...)
		}
		if s.json {
			mustPrintJSON(map[string]interface{}{"mint": s.mint, "account": account, "receipts": receipts})
			return nil
		}
		printReceipts(receipts)
		fmt.Printf("Mint:    %s\n", s.mint.Hex())
		fmt.Printf("Account: %s\n", account.Hex())
		return nil
	},
}

var commandConfigure = &cli.Command{
	Name:  "configure",
	Usage: "enable confidential balances on a token account",
	Flags: sessionFlags,
	Action: func(ctx *cli.Context) error {
		s := openSession(ctx, true)
		defer s.Close()
		receipts, err := s.client.Configure(ctx.Context, s.sender, s.mint)
		return s.finish(ctx.Context, "configure", receipts, err)
	},
}

var commandDeposit = &cli.Command{
	Name:      "deposit",
	Usage:     "move public tokens into the pending balance",
	ArgsUsage: "<amount>",
	Flags:     sessionFlags,
	Action: func(ctx *cli.Context) error {
		s := openSession(ctx, true)
		defer s.Close()
		receipts, err := s.client.Deposit(ctx.Context, s.sender, s.mint, parseAmount(ctx, 0))
		return s.finish(ctx.Context, "deposit", receipts, err)
	},
}

var commandApplyPending = &cli.Command{
	Name:  "apply-pending",
	Usage: "fold the pending balance into the available balance",
	Flags: sessionFlags,
	Action: func(ctx *cli.Context) error {
		s := openSession(ctx, true)
		defer s.Close()
		receipts, err := s.client.ApplyPending(ctx.Context, s.sender, s.mint)
		if errors.Is(err, confidential.ErrStaleState) {
			fmt.Println(color.YellowString("A credit arrived while applying; run apply-pending again."))
		}
		return s.finish(ctx.Context, "apply-pending", receipts, err)
	},
}

var commandWithdraw = &cli.Command{
	Name:      "withdraw",
	Usage:     "move available tokens back to the public balance",
	ArgsUsage: "<amount>",
	Flags:     sessionFlags,
	Action: func(ctx *cli.Context) error {
		s := openSession(ctx, true)
		defer s.Close()
		receipts, err := s.client.Withdraw(ctx.Context, s.sender, s.mint, parseAmount(ctx, 0))
		return s.finish(ctx.Context, "withdraw", receipts, err)
	},
}

var commandTransfer = &cli.Command{
	Name:      "transfer",
	Usage:     "transfer available tokens confidentially",
	ArgsUsage: "<amount>",
	Flags:     append([]cli.Flag{toFlag}, sessionFlags...),
	Action: func(ctx *cli.Context) error {
		to := ctx.String(toFlag.Name)
		if !common.IsHexAddress(to) {
			utils.Fatalf("--%s must be a recipient owner address", toFlag.Name)
		}
		s := openSession(ctx, true)
		defer s.Close()
		receipts, err := s.client.Transfer(ctx.Context, s.sender, s.mint, common.HexToAddress(to), parseAmount(ctx, 0))
		return s.finish(ctx.Context, "transfer", receipts, err)
	},
}

var commandBalance = &cli.Command{
	Name:  "balance",
	Usage: "decrypt and show the balances of a token account",
	Description: `
Decrypt the pending and available balances locally. Keys are re-derived
from the owner key and never leave this machine.`,
	Flags: sessionFlags,
	Action: func(ctx *cli.Context) error {
		s := openSession(ctx, true)
		defer s.Close()
		b, err := s.track(ctx.Context, nil)
		if err != nil {
			return err
		}
		if s.json {
			mustPrintJSON(b)
		} else {
			printBalances(b)
		}
		return nil
	},
}

var commandCloseContext = &cli.Command{
	Name:      "close-context",
	Usage:     "close leftover context accounts and reclaim their collateral",
	ArgsUsage: "<address>[,<address>...]",
	Flags:     sessionFlags,
	Action: func(ctx *cli.Context) error {
		var addrs []common.Address
		for _, arg := range ctx.Args().Slice() {
			for _, a := range utils.SplitAndTrim(arg) {
				if !common.IsHexAddress(a) {
					utils.Fatalf("Invalid context account address %q", a)
				}
				addrs = append(addrs, common.HexToAddress(a))
			}
		}
		if len(addrs) == 0 {
			utils.Fatalf("No context accounts given")
		}
		s := openSession(ctx, false)
		defer s.Close()
		receipts, err := s.client.CloseContextAccounts(ctx.Context, s.sender, addrs)
		if err != nil {
			return fmt.Errorf("close-context failed: %w", err)
		}
		if len(receipts) == 0 {
			fmt.Println("Nothing to close")
			return nil
		}
		printReceipts(receipts)
		return nil
	},
}
