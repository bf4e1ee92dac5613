package params

import (
	"errors"
	"testing"
)

func TestSanitizeFillsDefaults(t *testing.T) {
	cfg, err := LedgerConfig{}.Sanitize()
	if err != nil {
		t.Fatalf("sanitize: %v", err)
	}
	if cfg != DefaultLedgerConfig {
		t.Fatalf("unexpected config %v", cfg)
	}
}

func TestSanitizeRejectsOversizedChunk(t *testing.T) {
	_, err := LedgerConfig{MaxTransactionSize: 600, ChunkSize: 700}.Sanitize()
	if !errors.Is(err, errChunkTooLarge) {
		t.Fatalf("expected chunk error, got %v", err)
	}
	_, err = LedgerConfig{MaxTransactionSize: 100}.Sanitize()
	if !errors.Is(err, errTxSizeTooSmall) {
		t.Fatalf("expected size error, got %v", err)
	}
}

func TestCollateral(t *testing.T) {
	cfg := DefaultLedgerConfig
	if got, want := cfg.Collateral(0), ContextAccountBase*CollateralPerByte; got != want {
		t.Fatalf("collateral(0) = %d, want %d", got, want)
	}
	if cfg.Collateral(100) <= cfg.Collateral(99) {
		t.Fatalf("collateral must grow with size")
	}
	if MaxAmount != 1<<48-1 {
		t.Fatalf("max amount = %d", MaxAmount)
	}
}
