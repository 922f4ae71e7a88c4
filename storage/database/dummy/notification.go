package dummydb

import (
	"context"
	"sort"

	"github.com/trezcool/karo/core/notification"
)

type logSink struct {
	db *logTable
}

var _ notification.LogSink = (*logSink)(nil) // interface compliance check

func NewLogSink(db *DB) *logSink {
	return &logSink{db: db.log}
}

func (sink *logSink) AppendEntry(_ context.Context, entry notification.Entry) (notification.Entry, error) {
	sink.db.Lock()
	defer sink.db.Unlock()

	sink.db.entries = append(sink.db.entries, entry)
	return entry, nil
}

func (sink *logSink) HasEntry(_ context.Context, recipient, referenceID string) (bool, error) {
	sink.db.RLock()
	defer sink.db.RUnlock()

	for _, entry := range sink.db.entries {
		if entry.Recipient == recipient && entry.ReferenceID.String == referenceID && entry.ReferenceID.Valid {
			return true, nil
		}
	}
	return false, nil
}

func (sink *logSink) FilterEntries(_ context.Context, filter notification.QueryFilter) ([]notification.Entry, error) {
	sink.db.RLock()
	defer sink.db.RUnlock()

	entries := make([]notification.Entry, 0, len(sink.db.entries))
	for _, entry := range sink.db.entries {
		if filter.Recipient != "" && entry.Recipient != filter.Recipient {
			continue
		}
		if filter.MessageType != "" && entry.MessageType != filter.MessageType {
			continue
		}
		if filter.ReferenceID != "" && entry.ReferenceID.String != filter.ReferenceID {
			continue
		}
		if filter.Outcome != "" && entry.Outcome != filter.Outcome {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

type contactRepository struct {
	db *contactTable
}

var _ notification.ContactRepository = (*contactRepository)(nil) // interface compliance check

func NewContactRepository(db *DB) *contactRepository {
	return &contactRepository{db: db.contacts}
}

func (repo *contactRepository) CreateContact(_ context.Context, c notification.Contact) (notification.Contact, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.seq++
	c.ID = repo.db.seq
	repo.db.table[c.ID] = &c
	return c, nil
}

func (repo *contactRepository) GetStudentContacts(_ context.Context, studentIDs ...int) ([]notification.Contact, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	wanted := make(map[int]bool, len(studentIDs))
	for _, id := range studentIDs {
		wanted[id] = true
	}

	var contacts []notification.Contact
	for _, c := range repo.db.table {
		if wanted[c.StudentID] {
			contacts = append(contacts, *c)
		}
	}
	sort.Slice(contacts, func(i, j int) bool { return contacts[i].ID < contacts[j].ID })
	return contacts, nil
}
