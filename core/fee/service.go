package fee

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/karo/core"
)

var (
	// errors
	ErrNotFound           = errors.New("fee account not found")
	ErrStructureNotFound  = errors.New("fee structure not found")
	ErrInvalidAmount      = errors.New("amount must be greater than zero")
	ErrVersionConflict    = errors.New("fee account was modified concurrently")
	ErrAccountHasPayments = errors.New("fee account has recorded payments")

	nowFunc = time.Now // mockable

	// maxUpdateRetries bounds the read-modify-write loop on version conflicts.
	maxUpdateRetries = 5
)

// DuplicateAccountError rejects a second fee account for the same
// (student, structure) pair; Existing points at the record to update instead.
type DuplicateAccountError struct {
	Existing Account
}

func (e *DuplicateAccountError) Error() string {
	return fmt.Sprintf("a fee account (id=%d) already exists for student %d and structure %d",
		e.Existing.ID, e.Existing.StudentID, e.Existing.StructureID)
}

type (
	StructureRepository interface {
		CreateStructure(ctx context.Context, s Structure) (Structure, error)
		GetStructure(ctx context.Context, id int) (Structure, error)
		QueryAllStructures(ctx context.Context) ([]Structure, error)
	}

	AccountRepository interface {
		// CreateAccount enforces (StudentID, StructureID) uniqueness and
		// returns *DuplicateAccountError on violation.
		CreateAccount(ctx context.Context, acct Account) (Account, error)
		GetAccount(ctx context.Context, id int) (Account, error)
		GetStudentAccount(ctx context.Context, studentID, structureID int) (Account, error)
		// FilterAccounts applies AND operation on available QueryFilter fields.
		FilterAccounts(ctx context.Context, filter QueryFilter) ([]Account, error)
		// UpdateAccount persists acct only if its Version matches the stored
		// row, bumping the version; returns ErrVersionConflict otherwise.
		UpdateAccount(ctx context.Context, acct Account) (Account, error)
		DeleteAccount(ctx context.Context, id int) error
	}

	Service struct {
		structRepo StructureRepository
		acctRepo   AccountRepository
		logger     core.Logger
	}
)

func NewService(structRepo StructureRepository, acctRepo AccountRepository, logger core.Logger) *Service {
	return &Service{structRepo: structRepo, acctRepo: acctRepo, logger: logger}
}

func (svc *Service) CreateStructure(ctx context.Context, ns NewStructure) (Structure, error) {
	if err := ns.Validate(); err != nil {
		return Structure{}, err
	}
	s := Structure{
		Grade:        ns.Grade,
		Term:         ns.Term,
		AcademicYear: ns.AcademicYear,
		BasicFee:     core.Round2(ns.BasicFee),
		Charges:      ns.Charges,
		CreatedAt:    nowFunc().UTC(),
	}
	return svc.structRepo.CreateStructure(ctx, s)
}

func (svc *Service) GetStructure(ctx context.Context, id int) (Structure, error) {
	return svc.structRepo.GetStructure(ctx, id)
}

// AssignStructure opens a fee account for a student against a structure.
// A second assignment for the same pair fails with *DuplicateAccountError.
func (svc *Service) AssignStructure(ctx context.Context, studentID, structureID int) (Account, error) {
	s, err := svc.structRepo.GetStructure(ctx, structureID)
	if err != nil {
		return Account{}, err
	}

	now := nowFunc().UTC()
	acct := Account{
		StudentID:   studentID,
		StructureID: structureID,
		AmountPaid:  decimal.Zero,
		Balance:     s.TotalFee(),
		Status:      StatusUnpaid,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return svc.acctRepo.CreateAccount(ctx, acct)
}

func (svc *Service) GetAccount(ctx context.Context, id int) (Account, error) {
	return svc.acctRepo.GetAccount(ctx, id)
}

func (svc *Service) Filter(ctx context.Context, filter QueryFilter) ([]Account, error) {
	return svc.acctRepo.FilterAccounts(ctx, filter)
}

// RecordPayment adds a payment delta to the account and recomputes the
// derived balance and status. The update is a read-modify-write under the
// repository's version check so that two cashiers recording payments against
// the same account lose neither delta. Overpayment is not an error: balance
// clamps to zero and the excess stays in AmountPaid for audit.
func (svc *Service) RecordPayment(ctx context.Context, accountID int, np NewPayment) (Account, error) {
	if err := np.Validate(); err != nil {
		return Account{}, err
	}

	var lastErr error
	for i := 0; i < maxUpdateRetries; i++ {
		acct, err := svc.acctRepo.GetAccount(ctx, accountID)
		if err != nil {
			return Account{}, err
		}
		s, err := svc.structRepo.GetStructure(ctx, acct.StructureID)
		if err != nil {
			return Account{}, err
		}

		total := s.TotalFee()
		acct.AmountPaid = core.Round2(acct.AmountPaid.Add(np.Amount))
		acct.Balance = BalanceFor(acct.AmountPaid, total)
		acct.Status = StatusFor(acct.AmountPaid, total)
		acct.LastPaymentDate = null.TimeFrom(np.Date.UTC())
		acct.ReceiptNumber = null.StringFrom(np.ReceiptNumber)
		acct.UpdatedAt = nowFunc().UTC()

		updated, err := svc.acctRepo.UpdateAccount(ctx, acct)
		if err == ErrVersionConflict {
			lastErr = err
			continue // raced with a concurrent payment; reapply the delta
		}
		if err != nil {
			return Account{}, err
		}
		return updated, nil
	}
	return Account{}, lastErr
}

// DeleteAccount refuses to drop an account holding payments unless force
// is set (administrative override).
func (svc *Service) DeleteAccount(ctx context.Context, id int, force bool) error {
	acct, err := svc.acctRepo.GetAccount(ctx, id)
	if err != nil {
		return err
	}
	if acct.AmountPaid.IsPositive() && !force {
		return ErrAccountHasPayments
	}
	return svc.acctRepo.DeleteAccount(ctx, id)
}

// CollectionRate is a dashboard aggregate; Expected may be a heuristic,
// see EstimateCollectionRate.
type CollectionRate struct {
	Collected decimal.Decimal
	Expected  decimal.Decimal
}

// Rate is Collected/Expected in [0..1].
func (r CollectionRate) Rate() decimal.Decimal {
	if r.Expected.IsZero() {
		return decimal.Zero
	}
	return r.Collected.Div(r.Expected)
}

// Percent is the rate as a whole percentage.
func (r CollectionRate) Percent() int64 {
	return r.Rate().Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// EstimateCollectionRate sums AmountPaid across accounts and derives an
// expected total. Denominator priority:
//  1. sum of TotalFee over each account's structure, when joinable;
//  2. sum of (AmountPaid + Balance) across accounts;
//  3. collected * fallbackMultiplier when something was collected but no
//     expected total is derivable — a rough heuristic placeholder for
//     missing data, NOT a precise metric (the multiplier is configurable,
//     Config.Fees.FallbackRateMultiplier);
//  4. 1, to avoid division by zero.
//
// Reporting only. A production deployment should require fee-structure
// assignment before computing any rate; the fallback chain is an
// approximation inherited from the legacy dashboard.
func EstimateCollectionRate(accounts []Account, structures map[int]Structure, fallbackMultiplier int64) CollectionRate {
	collected := decimal.Zero
	expected := decimal.Zero
	balances := decimal.Zero
	var joined bool

	for _, acct := range accounts {
		collected = collected.Add(acct.AmountPaid)
		balances = balances.Add(acct.Balance)
		if s, ok := structures[acct.StructureID]; ok {
			expected = expected.Add(s.TotalFee())
			joined = true
		}
	}

	switch {
	case joined:
	case balances.IsPositive():
		expected = collected.Add(balances)
	case collected.IsPositive():
		expected = collected.Mul(decimal.NewFromInt(fallbackMultiplier))
	default:
		expected = decimal.NewFromInt(1)
	}
	return CollectionRate{Collected: core.Round2(collected), Expected: core.Round2(expected)}
}

// CollectionSummary aggregates accounts matching filter for the dashboard.
type CollectionSummary struct {
	CollectionRate
	Total   int
	Unpaid  int
	Partial int
	Paid    int
}

func (svc *Service) Summarize(ctx context.Context, filter QueryFilter) (CollectionSummary, error) {
	accounts, err := svc.acctRepo.FilterAccounts(ctx, filter)
	if err != nil {
		return CollectionSummary{}, err
	}

	// bulk-load; accounts whose structure is gone simply stay unjoinable
	// and the estimate falls back to balances
	all, err := svc.structRepo.QueryAllStructures(ctx)
	if err != nil {
		return CollectionSummary{}, err
	}
	structures := make(map[int]Structure, len(all))
	for _, s := range all {
		structures[s.ID] = s
	}

	summary := CollectionSummary{
		CollectionRate: EstimateCollectionRate(accounts, structures, core.Conf.Fees.FallbackRateMultiplier),
		Total:          len(accounts),
	}
	for _, acct := range accounts {
		switch acct.Status {
		case StatusUnpaid:
			summary.Unpaid++
		case StatusPartial:
			summary.Partial++
		case StatusPaid:
			summary.Paid++
		}
	}
	return summary, nil
}
