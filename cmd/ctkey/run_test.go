package main

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tos-network/ctbal/accountsigner"
	"github.com/tos-network/ctbal/common"
	"github.com/tos-network/ctbal/core/ctclient"
	"github.com/tos-network/ctbal/crypto/ctengine"
	"github.com/tos-network/ctbal/internal/balancetracker"
	"github.com/tos-network/ctbal/ledger/ledgerrpc"
	"github.com/tos-network/ctbal/ledger/memledger"
)

func runCtkey(t *testing.T, args ...string) {
	t.Helper()
	require.NoError(t, app.Run(append([]string{"ctkey", "--verbosity", "0"}, args...)))
}

func TestKeyFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "k.json")
	for _, typ := range []string{accountsigner.SignerTypeEd25519, accountsigner.SignerTypeSecp256k1} {
		k, err := newKeyFile(typ, testMnemonic, "", "m/44'/60'/0'/0/0")
		require.NoError(t, err)
		require.NoError(t, writeKeyFile(path, k))
		require.Error(t, writeKeyFile(path, k), "existing key files are never overwritten")

		s, err := readKeyFile(path)
		require.NoError(t, err)
		require.Equal(t, k.Address, s.Address())
		require.Equal(t, typ, s.Type())
		require.NoError(t, os.Remove(path))
	}
}

func TestDumpConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	runCtkey(t, "dumpconfig", "--chunksize", "512", "--track.accept-rollback", path)

	cfg := defaultConfig
	require.NoError(t, loadConfig(path, &cfg))
	require.Equal(t, 512, cfg.Client.Choreo.ChunkSize)
	require.True(t, cfg.Tracker.AcceptRollback)
	require.Equal(t, defaultConfig.Ledger, cfg.Ledger)
}

func TestCommandsAgainstDevnet(t *testing.T) {
	ledger, err := memledger.New(memledger.Defaults)
	require.NoError(t, err)
	defer ledger.Close()
	rpcSrv, err := ledgerrpc.NewServer(ledger, true)
	require.NoError(t, err)
	defer rpcSrv.Stop()
	hs := httptest.NewServer(rpcSrv)
	defer hs.Close()

	dir := t.TempDir()
	authority := filepath.Join(dir, "authority.json")
	runCtkey(t, "--datadir", dir, "new-key")
	runCtkey(t, "--datadir", dir, "new-key", authority)

	mint := common.BytesToAddress([]byte("ctkey-test-mint")).Hex()
	session := []string{"--rpc", hs.URL, "--mint", mint}
	runCtkey(t, append([]string{"--datadir", dir, "setup", "--authority", authority, "--fund", "1000", "--airdrop", "1000000000"}, session...)...)
	runCtkey(t, append([]string{"--datadir", dir, "configure"}, session...)...)
	runCtkey(t, append(append([]string{"--datadir", dir, "deposit"}, session...), "600")...)
	runCtkey(t, append([]string{"--datadir", dir, "apply-pending"}, session...)...)
	runCtkey(t, append([]string{"--datadir", dir, "balance", "--json"}, session...)...)

	owner, err := readKeyFile(filepath.Join(dir, defaultKeyfileName))
	require.NoError(t, err)
	client, err := ctclient.New(ledger, ctengine.New(), ctclient.Defaults)
	require.NoError(t, err)
	b, err := client.Balances(context.Background(), ctclient.Sender{Owner: owner}, common.HexToAddress(mint))
	require.NoError(t, err)
	require.Equal(t, uint64(400), b.Public)
	require.Equal(t, uint64(600), b.Available)

	entries, err := os.ReadDir(filepath.Join(dir, "tracker"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	st, err := balancetracker.Load(filepath.Join(dir, "tracker", entries[0].Name()))
	require.NoError(t, err)
	require.Equal(t, uint64(600), st.Available)
	require.Equal(t, uint64(1000), st.Total())
}
