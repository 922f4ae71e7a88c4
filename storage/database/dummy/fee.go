package dummydb

import (
	"context"
	"sort"

	"github.com/trezcool/karo/core/fee"
)

type structureRepository struct {
	db *structureTable
}

var _ fee.StructureRepository = (*structureRepository)(nil) // interface compliance check

func NewStructureRepository(db *DB) *structureRepository {
	return &structureRepository{db: db.structures}
}

func (repo *structureRepository) CreateStructure(_ context.Context, s fee.Structure) (fee.Structure, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.seq++
	s.ID = repo.db.seq
	repo.db.table[s.ID] = &s
	return s, nil
}

func (repo *structureRepository) GetStructure(_ context.Context, id int) (fee.Structure, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if s, ok := repo.db.table[id]; ok {
		return *s, nil
	}
	return fee.Structure{}, fee.ErrStructureNotFound
}

func (repo *structureRepository) QueryAllStructures(_ context.Context) ([]fee.Structure, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	structures := make([]fee.Structure, 0, len(repo.db.table))
	for _, s := range repo.db.table {
		structures = append(structures, *s)
	}
	sort.Slice(structures, func(i, j int) bool { return structures[i].ID < structures[j].ID })
	return structures, nil
}

type accountRepository struct {
	db *accountTable
}

var _ fee.AccountRepository = (*accountRepository)(nil) // interface compliance check

func NewAccountRepository(db *DB) *accountRepository {
	return &accountRepository{db: db.accounts}
}

func (repo *accountRepository) query() []fee.Account {
	accounts := make([]fee.Account, 0, len(repo.db.table))
	for _, acct := range repo.db.table {
		accounts = append(accounts, *acct)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID < accounts[j].ID })
	return accounts
}

func (repo *accountRepository) CreateAccount(_ context.Context, acct fee.Account) (fee.Account, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, existing := range repo.db.table {
		if existing.StudentID == acct.StudentID && existing.StructureID == acct.StructureID {
			return fee.Account{}, &fee.DuplicateAccountError{Existing: *existing}
		}
	}

	repo.db.seq++
	acct.ID = repo.db.seq
	repo.db.table[acct.ID] = &acct
	return acct, nil
}

func (repo *accountRepository) GetAccount(_ context.Context, id int) (fee.Account, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if acct, ok := repo.db.table[id]; ok {
		return *acct, nil
	}
	return fee.Account{}, fee.ErrNotFound
}

func (repo *accountRepository) GetStudentAccount(_ context.Context, studentID, structureID int) (fee.Account, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, acct := range repo.db.table {
		if acct.StudentID == studentID && acct.StructureID == structureID {
			return *acct, nil
		}
	}
	return fee.Account{}, fee.ErrNotFound
}

func (repo *accountRepository) FilterAccounts(_ context.Context, filter fee.QueryFilter) ([]fee.Account, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	accounts := repo.query()
	if filter.StudentID != 0 {
		var filtered []fee.Account
		for _, acct := range accounts {
			if acct.StudentID == filter.StudentID {
				filtered = append(filtered, acct)
			}
		}
		accounts = filtered
	}
	if filter.StructureID != 0 {
		var filtered []fee.Account
		for _, acct := range accounts {
			if acct.StructureID == filter.StructureID {
				filtered = append(filtered, acct)
			}
		}
		accounts = filtered
	}
	if len(filter.Statuses) > 0 {
		var filtered []fee.Account
		for _, acct := range accounts {
			for _, status := range filter.Statuses {
				if acct.Status == status {
					filtered = append(filtered, acct)
					break
				}
			}
		}
		accounts = filtered
	}
	return accounts, nil
}

func (repo *accountRepository) UpdateAccount(_ context.Context, acct fee.Account) (fee.Account, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	existing, ok := repo.db.table[acct.ID]
	if !ok {
		return fee.Account{}, fee.ErrNotFound
	}
	if existing.Version != acct.Version {
		return fee.Account{}, fee.ErrVersionConflict
	}
	acct.Version++
	repo.db.table[acct.ID] = &acct
	return acct, nil
}

func (repo *accountRepository) DeleteAccount(_ context.Context, id int) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	delete(repo.db.table, id)
	return nil
}
