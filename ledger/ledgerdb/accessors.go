package ledgerdb

import (
	"encoding/binary"
	"errors"

	"github.com/tos-network/ctbal/common"
)

var (
	accountPrefix = []byte("a") // accountPrefix + address -> encoded account
	headSlotKey   = []byte("LastSlot")
)

func accountKey(addr common.Address) []byte {
	return append(append([]byte(nil), accountPrefix...), addr[:]...)
}

// ReadAccount returns the encoded account stored at addr, or nil.
func ReadAccount(db KeyValueReader, addr common.Address) []byte {
	data, _ := db.Get(accountKey(addr))
	return data
}

// WriteAccount stores the encoded account at addr.
func WriteAccount(db KeyValueWriter, addr common.Address, data []byte) error {
	return db.Put(accountKey(addr), data)
}

// DeleteAccount removes the account at addr.
func DeleteAccount(db KeyValueWriter, addr common.Address) error {
	return db.Delete(accountKey(addr))
}

// IterateAccounts calls fn for every stored account.
func IterateAccounts(db *Database, fn func(addr common.Address, data []byte) bool) error {
	return db.Iterate(accountPrefix, func(key, value []byte) bool {
		return fn(common.BytesToAddress(key[len(accountPrefix):]), value)
	})
}

// ReadHeadSlot returns the slot of the last committed transaction.
func ReadHeadSlot(db KeyValueReader) (uint64, error) {
	data, err := db.Get(headSlotKey)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(data) != 8 {
		return 0, errors.New("ledgerdb: corrupt head slot")
	}
	return binary.BigEndian.Uint64(data), nil
}

// WriteHeadSlot stores the slot of the last committed transaction.
func WriteHeadSlot(db KeyValueWriter, slot uint64) error {
	var enc [8]byte
	binary.BigEndian.PutUint64(enc[:], slot)
	return db.Put(headSlotKey, enc[:])
}
