package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tos-network/ctbal/accountsigner"
	"github.com/tos-network/ctbal/cmd/utils"
	"github.com/tos-network/ctbal/common"
	"github.com/tos-network/ctbal/internal/flags"
	"github.com/urfave/cli/v2"
)

const defaultKeyfileName = "key.json"

var (
	keyFlag = &cli.StringFlag{
		Name:     "key",
		Usage:    "Key file of the token account owner",
		Category: flags.AccountCategory,
	}
	payerFlag = &cli.StringFlag{
		Name:     "payer",
		Usage:    "Key file of the fee and collateral payer (defaults to --key)",
		Category: flags.AccountCategory,
	}
	authorityFlag = &cli.StringFlag{
		Name:     "authority",
		Usage:    "Key file of the mint authority",
		Category: flags.AccountCategory,
	}
	passphraseFlag = &cli.StringFlag{
		Name:     "mnemonic.passphrase",
		Usage:    "Optional BIP-39 passphrase",
		Category: flags.AccountCategory,
	}
	mnemonicBitsFlag = &cli.IntFlag{
		Name:     "mnemonic.bits",
		Usage:    "Mnemonic entropy bits (128,160,192,224,256)",
		Value:    defaultMnemonicBits,
		Category: flags.AccountCategory,
	}
	hdPathFlag = &cli.StringFlag{
		Name:     "hdpath",
		Usage:    "HD derivation path",
		Value:    defaultHDPath,
		Category: flags.AccountCategory,
	}
	signerTypeFlag = &cli.StringFlag{
		Name:     "signer",
		Usage:    "Signer type: ed25519 or secp256k1",
		Value:    accountsigner.SignerTypeEd25519,
		Category: flags.AccountCategory,
	}
)

// keyFile keeps the mnemonic a signer is derived from.
type keyFile struct {
	Address    common.Address `json:"address"`
	SignerType string         `json:"signerType"`
	Mnemonic   string         `json:"mnemonic"`
	Passphrase string         `json:"passphrase,omitempty"`
	Path       string         `json:"path"`
}

func (k *keyFile) signer() (accountsigner.Signer, error) {
	signerType, err := accountsigner.CanonicalSignerType(k.SignerType)
	if err != nil {
		return nil, err
	}
	var key []byte
	switch signerType {
	case accountsigner.SignerTypeEd25519:
		key, err = deriveEd25519SeedFromMnemonic(k.Mnemonic, k.Passphrase, k.Path)
	case accountsigner.SignerTypeSecp256k1:
		key, err = deriveSecp256k1FromMnemonic(k.Mnemonic, k.Passphrase, k.Path)
	default:
		return nil, fmt.Errorf("unsupported signer type %q", k.SignerType)
	}
	if err != nil {
		return nil, err
	}
	return accountsigner.NewSigner(signerType, key)
}

func newKeyFile(signerType, mnemonic, passphrase, path string) (*keyFile, error) {
	k := &keyFile{SignerType: signerType, Mnemonic: mnemonic, Passphrase: passphrase, Path: path}
	s, err := k.signer()
	if err != nil {
		return nil, err
	}
	k.Address = s.Address()
	return k, nil
}

func writeKeyFile(path string, k *keyFile) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("key file %s already exists", path)
	}
	raw, err := json.MarshalIndent(k, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o600)
}

func readKeyFile(path string) (accountsigner.Signer, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var k keyFile
	if err := json.Unmarshal(raw, &k); err != nil {
		return nil, fmt.Errorf("decode key file %s: %w", path, err)
	}
	s, err := k.signer()
	if err != nil {
		return nil, err
	}
	if !k.Address.IsZero() && k.Address != s.Address() {
		return nil, fmt.Errorf("key file %s: derived address %s does not match %s", path, s.Address(), k.Address)
	}
	return s, nil
}

// loadSigner reads the key file named by flag. The owner key defaults to
// the key file in the data directory.
func loadSigner(ctx *cli.Context, flag *cli.StringFlag) accountsigner.Signer {
	path := ctx.String(flag.Name)
	if path == "" && flag == keyFlag {
		path = filepath.Join(utils.MakeDataDir(ctx), defaultKeyfileName)
	}
	if path == "" {
		utils.Fatalf("--%s is required", flag.Name)
	}
	s, err := readKeyFile(path)
	if err != nil {
		utils.Fatalf("Failed to load key: %v", err)
	}
	return s
}

var commandNewKey = &cli.Command{
	Name:      "new-key",
	Usage:     "generate a mnemonic-backed key file",
	ArgsUsage: "[<keyfile>]",
	Description: `
Generate a new BIP-39 mnemonic and store it in a key file. The key signs
transactions and every confidential key is re-derived from its signatures,
so the mnemonic is the only secret to back up.`,
	Flags: []cli.Flag{
		signerTypeFlag,
		mnemonicBitsFlag,
		passphraseFlag,
		hdPathFlag,
		utils.JSONFlag,
	},
	Action: func(ctx *cli.Context) error {
		path := ctx.Args().First()
		if path == "" {
			path = filepath.Join(utils.MakeDataDir(ctx), defaultKeyfileName)
		}
		mnemonic, err := generateMnemonic(ctx.Int(mnemonicBitsFlag.Name))
		if err != nil {
			utils.Fatalf("Failed to generate mnemonic: %v", err)
		}
		k, err := newKeyFile(ctx.String(signerTypeFlag.Name), mnemonic, ctx.String(passphraseFlag.Name), ctx.String(hdPathFlag.Name))
		if err != nil {
			utils.Fatalf("Failed to derive key: %v", err)
		}
		if err := writeKeyFile(path, k); err != nil {
			utils.Fatalf("Failed to write key file: %v", err)
		}
		if ctx.Bool(utils.JSONFlag.Name) {
			mustPrintJSON(map[string]string{"address": k.Address.Hex(), "keyfile": path})
			return nil
		}
		fmt.Printf("Address:  %s\n", k.Address.Hex())
		fmt.Printf("Key file: %s\n", path)
		fmt.Printf("Mnemonic: %s\n", k.Mnemonic)
		return nil
	},
}
