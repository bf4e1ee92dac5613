// Package balancetracker persists the last balances observed for a token
// account so the CLI can notice a ledger that moved backward.
package balancetracker

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type State struct {
	Account        string `json:"account"`
	Mint           string `json:"mint"`
	Public         uint64 `json:"public"`
	Pending        uint64 `json:"pending"`
	Available      uint64 `json:"available"`
	PendingCredits uint64 `json:"pendingCredits"`
	Slot           uint64 `json:"slot"`
	UpdatedAt      string `json:"updatedAt"`
}

// Total is the sum of every balance of the account.
func (s State) Total() uint64 { return s.Public + s.Pending + s.Available }

func Load(path string) (*State, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var out State
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode tracker state: %w", err)
	}
	return &out, nil
}

// Validate checks curr against the previously saved state. The pending
// credit counter only resets through an apply, which lands in a newer slot.
func Validate(prev *State, curr State, allowRollback bool) error {
	if prev == nil {
		return nil
	}
	if prev.Account != "" && !strings.EqualFold(prev.Account, curr.Account) {
		return fmt.Errorf("tracker account mismatch: file=%s ledger=%s", prev.Account, curr.Account)
	}
	if prev.Mint != "" && !strings.EqualFold(prev.Mint, curr.Mint) {
		return fmt.Errorf("tracker mint mismatch: file=%s ledger=%s", prev.Mint, curr.Mint)
	}
	if allowRollback {
		return nil
	}
	if curr.Slot < prev.Slot {
		return fmt.Errorf("ledger moved backward: slot %d -> %d (use --track.accept-rollback to accept)", prev.Slot, curr.Slot)
	}
	if curr.Slot == prev.Slot && curr.PendingCredits < prev.PendingCredits {
		return fmt.Errorf("pending credits moved backward %d -> %d without a new slot (use --track.accept-rollback to accept)", prev.PendingCredits, curr.PendingCredits)
	}
	return nil
}

func Save(path string, curr State) error {
	curr.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	raw, err := json.MarshalIndent(curr, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
