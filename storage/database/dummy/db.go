package dummydb

import (
	"sync"

	"github.com/trezcool/karo/core/fee"
	"github.com/trezcool/karo/core/notification"
)

// DB is an in-memory store backing the dummy repositories; used by tests
// and local console runs.
type DB struct {
	structures *structureTable
	accounts   *accountTable
	contacts   *contactTable
	log        *logTable
}

type structureTable struct {
	sync.RWMutex
	table map[int]*fee.Structure
	seq   int
}

type accountTable struct {
	sync.RWMutex
	table map[int]*fee.Account
	seq   int
}

type contactTable struct {
	sync.RWMutex
	table map[int]*notification.Contact
	seq   int
}

type logTable struct {
	sync.RWMutex
	entries []notification.Entry
}

func Open() (*DB, error) {
	db := &DB{
		structures: &structureTable{table: make(map[int]*fee.Structure)},
		accounts:   &accountTable{table: make(map[int]*fee.Account)},
		contacts:   &contactTable{table: make(map[int]*notification.Contact)},
		log:        &logTable{},
	}
	return db, nil
}
