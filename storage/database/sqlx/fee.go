package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/karo/core"
	"github.com/trezcool/karo/core/fee"
)

const uniqueViolation = "23505"

type structureRepository struct {
	db *sqlx.DB
}

var _ fee.StructureRepository = (*structureRepository)(nil) // interface compliance check

func NewStructureRepository(db *sqlx.DB) *structureRepository {
	return &structureRepository{db: db}
}

type structureRow struct {
	ID           int             `db:"id"`
	Grade        string          `db:"grade"`
	Term         string          `db:"term"`
	AcademicYear string          `db:"academic_year"`
	BasicFee     decimal.Decimal `db:"basic_fee"`
	TotalFee     decimal.Decimal `db:"total_fee"`
	CreatedAt    time.Time       `db:"created_at"`
}

type chargeRow struct {
	ID          int             `db:"id"`
	StructureID int             `db:"structure_id"`
	Label       string          `db:"label"`
	Amount      decimal.Decimal `db:"amount"`
}

func (r structureRow) unmarshal(charges []chargeRow) fee.Structure {
	s := fee.Structure{
		ID:           r.ID,
		Grade:        r.Grade,
		Term:         r.Term,
		AcademicYear: r.AcademicYear,
		BasicFee:     r.BasicFee,
		CreatedAt:    r.CreatedAt,
	}
	for _, c := range charges {
		s.Charges = append(s.Charges, fee.Charge{ID: c.ID, Label: c.Label, Amount: c.Amount})
	}
	return s
}

func (repo *structureRepository) CreateStructure(ctx context.Context, s fee.Structure) (fee.Structure, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return fee.Structure{}, errors.Wrap(err, "beginning tx")
	}
	defer func() { _ = tx.Rollback() }()

	err = tx.QueryRowxContext(ctx,
		`INSERT INTO fee_structure (grade, term, academic_year, basic_fee, total_fee, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		s.Grade, s.Term, s.AcademicYear, s.BasicFee, s.TotalFee(), s.CreatedAt,
	).Scan(&s.ID)
	if err != nil {
		return fee.Structure{}, errors.Wrap(err, "inserting fee structure")
	}

	for i, c := range s.Charges {
		err = tx.QueryRowxContext(ctx,
			`INSERT INTO fee_structure_charge (structure_id, label, amount) VALUES ($1, $2, $3) RETURNING id`,
			s.ID, c.Label, c.Amount,
		).Scan(&s.Charges[i].ID)
		if err != nil {
			return fee.Structure{}, errors.Wrap(err, "inserting fee structure charge")
		}
	}

	if err = tx.Commit(); err != nil {
		return fee.Structure{}, errors.Wrap(err, "committing tx")
	}
	return s, nil
}

func (repo *structureRepository) GetStructure(ctx context.Context, id int) (fee.Structure, error) {
	var row structureRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM fee_structure WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return fee.Structure{}, fee.ErrStructureNotFound
	}
	if err != nil {
		return fee.Structure{}, errors.Wrap(err, "getting fee structure")
	}

	var charges []chargeRow
	err = repo.db.SelectContext(ctx, &charges,
		`SELECT * FROM fee_structure_charge WHERE structure_id = $1 ORDER BY id`, id)
	if err != nil {
		return fee.Structure{}, errors.Wrap(err, "getting fee structure charges")
	}
	return row.unmarshal(charges), nil
}

func (repo *structureRepository) QueryAllStructures(ctx context.Context) ([]fee.Structure, error) {
	var rows []structureRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM fee_structure ORDER BY id`); err != nil {
		return nil, errors.Wrap(err, "querying fee structures")
	}

	var charges []chargeRow
	if err := repo.db.SelectContext(ctx, &charges, `SELECT * FROM fee_structure_charge ORDER BY id`); err != nil {
		return nil, errors.Wrap(err, "querying fee structure charges")
	}
	byStructure := make(map[int][]chargeRow)
	for _, c := range charges {
		byStructure[c.StructureID] = append(byStructure[c.StructureID], c)
	}

	structures := make([]fee.Structure, 0, len(rows))
	for _, row := range rows {
		structures = append(structures, row.unmarshal(byStructure[row.ID]))
	}
	return structures, nil
}

type accountRepository struct {
	db *sqlx.DB
}

var _ fee.AccountRepository = (*accountRepository)(nil) // interface compliance check

func NewAccountRepository(db *sqlx.DB) *accountRepository {
	return &accountRepository{db: db}
}

type accountRow struct {
	ID              int             `db:"id"`
	StudentID       int             `db:"student_id"`
	StructureID     int             `db:"structure_id"`
	AmountPaid      decimal.Decimal `db:"amount_paid"`
	Balance         decimal.Decimal `db:"balance"`
	Status          string          `db:"status"`
	LastPaymentDate null.Time       `db:"last_payment_date"`
	ReceiptNumber   null.String     `db:"receipt_number"`
	Version         int             `db:"version"`
	CreatedAt       time.Time       `db:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at"`
}

func (r accountRow) unmarshal() fee.Account {
	return fee.Account{
		ID:              r.ID,
		StudentID:       r.StudentID,
		StructureID:     r.StructureID,
		AmountPaid:      r.AmountPaid,
		Balance:         r.Balance,
		Status:          fee.PaymentStatus(r.Status),
		LastPaymentDate: r.LastPaymentDate,
		ReceiptNumber:   r.ReceiptNumber,
		Version:         r.Version,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func (repo *accountRepository) CreateAccount(ctx context.Context, acct fee.Account) (fee.Account, error) {
	err := repo.db.QueryRowxContext(ctx,
		`INSERT INTO student_fee_account
		   (student_id, structure_id, amount_paid, balance, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		acct.StudentID, acct.StructureID, acct.AmountPaid, acct.Balance, acct.Status, acct.CreatedAt, acct.UpdatedAt,
	).Scan(&acct.ID)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && string(pqErr.Code) == uniqueViolation {
			existing, getErr := repo.GetStudentAccount(ctx, acct.StudentID, acct.StructureID)
			if getErr != nil {
				return fee.Account{}, errors.Wrap(getErr, "loading duplicate fee account")
			}
			return fee.Account{}, &fee.DuplicateAccountError{Existing: existing}
		}
		return fee.Account{}, errors.Wrap(err, "inserting fee account")
	}
	return acct, nil
}

func (repo *accountRepository) GetAccount(ctx context.Context, id int) (fee.Account, error) {
	var row accountRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM student_fee_account WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return fee.Account{}, fee.ErrNotFound
	}
	if err != nil {
		return fee.Account{}, errors.Wrap(err, "getting fee account")
	}
	return row.unmarshal(), nil
}

func (repo *accountRepository) GetStudentAccount(ctx context.Context, studentID, structureID int) (fee.Account, error) {
	var row accountRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT * FROM student_fee_account WHERE student_id = $1 AND structure_id = $2`, studentID, structureID)
	if err == sql.ErrNoRows {
		return fee.Account{}, fee.ErrNotFound
	}
	if err != nil {
		return fee.Account{}, errors.Wrap(err, "getting student fee account")
	}
	return row.unmarshal(), nil
}

func (repo *accountRepository) FilterAccounts(ctx context.Context, filter fee.QueryFilter) ([]fee.Account, error) {
	q := `SELECT * FROM student_fee_account WHERE true`
	var args []interface{}

	if filter.StudentID != 0 {
		args = append(args, filter.StudentID)
		q += ` AND student_id = ?`
	}
	if filter.StructureID != 0 {
		args = append(args, filter.StructureID)
		q += ` AND structure_id = ?`
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, string(s))
		}
		args = append(args, pq.Array(statuses))
		q += ` AND status = ANY(?)`
	}
	q += ` ORDER BY ` + core.DBOrdering{Field: "id", Ascending: true}.String()

	var rows []accountRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "filtering fee accounts")
	}

	accounts := make([]fee.Account, 0, len(rows))
	for _, row := range rows {
		accounts = append(accounts, row.unmarshal())
	}
	return accounts, nil
}

func (repo *accountRepository) UpdateAccount(ctx context.Context, acct fee.Account) (fee.Account, error) {
	res, err := repo.db.ExecContext(ctx,
		`UPDATE student_fee_account
		 SET amount_paid = $1, balance = $2, status = $3, last_payment_date = $4,
		     receipt_number = $5, updated_at = $6, version = version + 1
		 WHERE id = $7 AND version = $8`,
		acct.AmountPaid, acct.Balance, acct.Status, acct.LastPaymentDate,
		acct.ReceiptNumber, acct.UpdatedAt, acct.ID, acct.Version,
	)
	if err != nil {
		return fee.Account{}, errors.Wrap(err, "updating fee account")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fee.Account{}, errors.Wrap(err, "updating fee account")
	}
	if n == 0 {
		// stale version or gone; disambiguate for the caller
		if _, getErr := repo.GetAccount(ctx, acct.ID); getErr != nil {
			return fee.Account{}, getErr
		}
		return fee.Account{}, fee.ErrVersionConflict
	}
	acct.Version++
	return acct, nil
}

func (repo *accountRepository) DeleteAccount(ctx context.Context, id int) error {
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM student_fee_account WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting fee account")
	}
	return nil
}
