package balancetracker

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidate(t *testing.T) {
	prev := &State{
		Account:        "0x1234",
		Mint:           "0xaa",
		PendingCredits: 3,
		Slot:           100,
	}

	if err := Validate(prev, State{Account: "0x1234", Mint: "0xAA", PendingCredits: 0, Slot: 101}, false); err != nil {
		t.Fatalf("expected apply in a newer slot to pass, got %v", err)
	}
	if err := Validate(prev, State{Account: "0x1234", Mint: "0xaa", PendingCredits: 5, Slot: 100}, false); err != nil {
		t.Fatalf("expected incoming credits to pass, got %v", err)
	}
	if err := Validate(prev, State{Account: "0x9999", Mint: "0xaa", Slot: 101}, false); err == nil {
		t.Fatal("expected account mismatch error")
	}
	if err := Validate(prev, State{Account: "0x1234", Mint: "0xbb", Slot: 101}, true); err == nil {
		t.Fatal("expected mint mismatch error even when rollbacks are accepted")
	}
	if err := Validate(prev, State{Account: "0x1234", Mint: "0xaa", PendingCredits: 2, Slot: 100}, false); err == nil {
		t.Fatal("expected counter rollback error")
	}
	if err := Validate(prev, State{Account: "0x1234", Mint: "0xaa", PendingCredits: 3, Slot: 99}, false); err == nil {
		t.Fatal("expected slot rollback error")
	}
	if err := Validate(prev, State{Account: "0x1234", Mint: "0xaa", PendingCredits: 3, Slot: 99}, true); err != nil {
		t.Fatalf("expected slot rollback allowed, got %v", err)
	}
}

func TestLoadSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ctkey", "tracker.json")

	if got, err := Load(path); err != nil || got != nil {
		t.Fatalf("load empty expected (nil,nil), got (%v,%v)", got, err)
	}

	curr := State{Account: "0xabc", Mint: "0xdef", Public: 1, Pending: 2, Available: 39, PendingCredits: 7, Slot: 88}
	if err := Save(path, curr); err != nil {
		t.Fatalf("save tracker state: %v", err)
	}
	st, err := Load(path)
	if err != nil {
		t.Fatalf("load tracker state: %v", err)
	}
	if st == nil {
		t.Fatal("expected non-nil state")
	}
	if st.UpdatedAt == "" {
		t.Fatal("expected updatedAt to be populated")
	}
	st.UpdatedAt = ""
	if *st != curr {
		t.Fatalf("state mismatch got=%+v want=%+v", *st, curr)
	}
	if st.Total() != 42 {
		t.Fatalf("total %d", st.Total())
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temporary file left behind: %v", err)
	}
}
