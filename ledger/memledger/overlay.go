package memledger

import (
	"github.com/tos-network/ctbal/common"
	"github.com/tos-network/ctbal/ledger/ledgerdb"
)

// overlay buffers the writes of one transaction so that a failing
// instruction leaves the database untouched.
type overlay struct {
	db      ledgerdb.KeyValueReader
	dirty   map[common.Address][]byte
	deleted map[common.Address]bool
	order   []common.Address
}

func newOverlay(db ledgerdb.KeyValueReader) *overlay {
	return &overlay{
		db:      db,
		dirty:   make(map[common.Address][]byte),
		deleted: make(map[common.Address]bool),
	}
}

func (o *overlay) get(addr common.Address) []byte {
	if o.deleted[addr] {
		return nil
	}
	if data, ok := o.dirty[addr]; ok {
		return data
	}
	return ledgerdb.ReadAccount(o.db, addr)
}

func (o *overlay) touch(addr common.Address) {
	if _, ok := o.dirty[addr]; !ok && !o.deleted[addr] {
		o.order = append(o.order, addr)
	}
}

func (o *overlay) put(addr common.Address, data []byte) {
	o.touch(addr)
	delete(o.deleted, addr)
	o.dirty[addr] = data
}

func (o *overlay) remove(addr common.Address) {
	o.touch(addr)
	delete(o.dirty, addr)
	o.deleted[addr] = true
}

// flush writes the buffered changes in first-touch order.
func (o *overlay) flush(w ledgerdb.KeyValueWriter) error {
	for _, addr := range o.order {
		var err error
		if o.deleted[addr] {
			err = ledgerdb.DeleteAccount(w, addr)
		} else {
			err = ledgerdb.WriteAccount(w, addr, o.dirty[addr])
		}
		if err != nil {
			return err
		}
	}
	return nil
}
