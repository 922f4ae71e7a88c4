package fee_test

import (
	"context"
	"errors"
	"io/ioutil"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/karo/core"
	"github.com/trezcool/karo/core/fee"
	dummydb "github.com/trezcool/karo/storage/database/dummy"
	testutil "github.com/trezcool/karo/tests"
)

func setup(t *testing.T) (*fee.Service, fee.StructureRepository, fee.AccountRepository) {
	t.Helper()
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("setup() failed: %v", err)
	}
	structRepo := dummydb.NewStructureRepository(db)
	acctRepo := dummydb.NewAccountRepository(db)
	logger := core.NewStdLogger(log.New(ioutil.Discard, "", 0))
	return fee.NewService(structRepo, acctRepo, logger), structRepo, acctRepo
}

func newPayment(t *testing.T, amount string) fee.NewPayment {
	t.Helper()
	return fee.NewPayment{
		Amount:        testutil.Dec(t, amount),
		Date:          time.Now().UTC(),
		ReceiptNumber: "RCT-" + amount,
		Method:        fee.MethodCash,
	}
}

func TestAssignStructure(t *testing.T) {
	ctx := context.Background()
	svc, structRepo, _ := setup(t)
	s := testutil.CreateStructure(t, structRepo, "Grade 7", "Term 1", "2024", testutil.Dec(t, "800.00"),
		fee.Charge{Label: "PTA", Amount: testutil.Dec(t, "200.00")})

	acct, err := svc.AssignStructure(ctx, 11, s.ID)
	if err != nil {
		t.Fatalf("AssignStructure() failed: %v", err)
	}
	assert.Equal(t, fee.StatusUnpaid, acct.Status)
	assert.True(t, acct.Balance.Equal(testutil.Dec(t, "1000.00")))
	assert.True(t, acct.AmountPaid.IsZero())

	t.Run("unknown structure", func(t *testing.T) {
		_, err := svc.AssignStructure(ctx, 11, 999)
		assert.Equal(t, fee.ErrStructureNotFound, err)
	})

	t.Run("duplicate rejected with pointer to existing", func(t *testing.T) {
		_, err := svc.AssignStructure(ctx, 11, s.ID)
		var dup *fee.DuplicateAccountError
		if !errors.As(err, &dup) {
			t.Fatalf("AssignStructure() error = %v, want DuplicateAccountError", err)
		}
		assert.Equal(t, acct.ID, dup.Existing.ID)
	})
}

func TestRecordPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("sequential payments are additive", func(t *testing.T) {
		svc, structRepo, _ := setup(t)
		s := testutil.CreateStructure(t, structRepo, "Grade 7", "Term 1", "2024", testutil.Dec(t, "1000.00"))
		acct, err := svc.AssignStructure(ctx, 1, s.ID)
		if err != nil {
			t.Fatalf("AssignStructure() failed: %v", err)
		}

		acct, err = svc.RecordPayment(ctx, acct.ID, newPayment(t, "400.00"))
		if err != nil {
			t.Fatalf("RecordPayment() failed: %v", err)
		}
		assert.Equal(t, fee.StatusPartial, acct.Status)
		assert.True(t, acct.Balance.Equal(testutil.Dec(t, "600.00")))

		// overpayment clamps balance, keeps excess for audit
		acct, err = svc.RecordPayment(ctx, acct.ID, newPayment(t, "700.00"))
		if err != nil {
			t.Fatalf("RecordPayment() failed: %v", err)
		}
		assert.True(t, acct.AmountPaid.Equal(testutil.Dec(t, "1100.00")))
		assert.True(t, acct.Balance.IsZero())
		assert.Equal(t, fee.StatusPaid, acct.Status)
		assert.True(t, acct.CreditAmount(s.TotalFee()).Equal(testutil.Dec(t, "100.00")))
		assert.True(t, acct.LastPaymentDate.Valid)
	})

	t.Run("two payments equal one combined payment", func(t *testing.T) {
		svc, structRepo, _ := setup(t)
		s := testutil.CreateStructure(t, structRepo, "Grade 7", "Term 1", "2024", testutil.Dec(t, "1000.00"))

		split, _ := svc.AssignStructure(ctx, 1, s.ID)
		whole, _ := svc.AssignStructure(ctx, 2, s.ID)

		split, err := svc.RecordPayment(ctx, split.ID, newPayment(t, "250.00"))
		if err != nil {
			t.Fatalf("RecordPayment() failed: %v", err)
		}
		split, err = svc.RecordPayment(ctx, split.ID, newPayment(t, "350.00"))
		if err != nil {
			t.Fatalf("RecordPayment() failed: %v", err)
		}
		whole, err = svc.RecordPayment(ctx, whole.ID, newPayment(t, "600.00"))
		if err != nil {
			t.Fatalf("RecordPayment() failed: %v", err)
		}

		assert.True(t, split.AmountPaid.Equal(whole.AmountPaid))
		assert.True(t, split.Balance.Equal(whole.Balance))
		assert.Equal(t, whole.Status, split.Status)
	})

	t.Run("non-positive amount rejected before mutation", func(t *testing.T) {
		svc, structRepo, acctRepo := setup(t)
		s := testutil.CreateStructure(t, structRepo, "Grade 7", "Term 1", "2024", testutil.Dec(t, "1000.00"))
		acct, _ := svc.AssignStructure(ctx, 1, s.ID)

		for _, amount := range []string{"0", "-50.00"} {
			_, err := svc.RecordPayment(ctx, acct.ID, newPayment(t, amount))
			if !errors.Is(err, fee.ErrInvalidAmount) {
				t.Errorf("RecordPayment(%s) error = %v, want ErrInvalidAmount", amount, err)
			}
		}
		stored, _ := acctRepo.GetAccount(ctx, acct.ID)
		assert.True(t, stored.AmountPaid.IsZero(), "rejected payment must not mutate the account")
	})

	t.Run("unknown account", func(t *testing.T) {
		svc, _, _ := setup(t)
		_, err := svc.RecordPayment(ctx, 999, newPayment(t, "100.00"))
		assert.Equal(t, fee.ErrNotFound, err)
	})

	t.Run("concurrent payments lose neither delta", func(t *testing.T) {
		svc, structRepo, acctRepo := setup(t)
		s := testutil.CreateStructure(t, structRepo, "Grade 7", "Term 1", "2024", testutil.Dec(t, "1000.00"))
		acct, _ := svc.AssignStructure(ctx, 1, s.ID)

		var wg sync.WaitGroup
		amounts := []string{"100.00", "200.00", "300.00", "150.00"}
		for _, amount := range amounts {
			wg.Add(1)
			go func(amount string) {
				defer wg.Done()
				if _, err := svc.RecordPayment(ctx, acct.ID, newPayment(t, amount)); err != nil {
					t.Errorf("RecordPayment(%s) failed: %v", amount, err)
				}
			}(amount)
		}
		wg.Wait()

		stored, err := acctRepo.GetAccount(ctx, acct.ID)
		if err != nil {
			t.Fatalf("GetAccount() failed: %v", err)
		}
		assert.True(t, stored.AmountPaid.Equal(testutil.Dec(t, "750.00")),
			"AmountPaid = %s, want 750.00", stored.AmountPaid)
	})
}

func TestDeleteAccount(t *testing.T) {
	ctx := context.Background()
	svc, structRepo, _ := setup(t)
	s := testutil.CreateStructure(t, structRepo, "Grade 7", "Term 1", "2024", testutil.Dec(t, "1000.00"))
	acct, _ := svc.AssignStructure(ctx, 1, s.ID)
	if _, err := svc.RecordPayment(ctx, acct.ID, newPayment(t, "100.00")); err != nil {
		t.Fatalf("RecordPayment() failed: %v", err)
	}

	// refused while payments exist
	assert.Equal(t, fee.ErrAccountHasPayments, svc.DeleteAccount(ctx, acct.ID, false))

	// administrative override
	if err := svc.DeleteAccount(ctx, acct.ID, true); err != nil {
		t.Fatalf("DeleteAccount(force) failed: %v", err)
	}
	_, err := svc.GetAccount(ctx, acct.ID)
	assert.Equal(t, fee.ErrNotFound, err)
}

func TestEstimateCollectionRate(t *testing.T) {
	tests := []struct {
		name         string
		accounts     []fee.Account
		structures   map[int]fee.Structure
		wantExpected string
		wantPercent  int64
	}{
		{
			name: "structures joinable",
			accounts: []fee.Account{
				{StructureID: 1, AmountPaid: dec(t, "400.00"), Balance: dec(t, "600.00")},
				{StructureID: 1, AmountPaid: dec(t, "1000.00"), Balance: dec(t, "0.00")},
			},
			structures: map[int]fee.Structure{
				1: {ID: 1, BasicFee: dec(t, "1000.00")},
			},
			wantExpected: "2000.00",
			wantPercent:  70,
		},
		{
			name: "falls back to balances",
			accounts: []fee.Account{
				{StructureID: 9, AmountPaid: dec(t, "400.00"), Balance: dec(t, "600.00")},
			},
			structures:   map[int]fee.Structure{},
			wantExpected: "1000.00",
			wantPercent:  40,
		},
		{
			name: "falls back to multiplier heuristic",
			accounts: []fee.Account{
				{StructureID: 9, AmountPaid: dec(t, "300.00")},
			},
			structures:   map[int]fee.Structure{},
			wantExpected: "900.00",
			wantPercent:  33,
		},
		{
			name:         "nothing collected avoids division by zero",
			accounts:     nil,
			structures:   map[int]fee.Structure{},
			wantExpected: "1.00",
			wantPercent:  0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rate := fee.EstimateCollectionRate(tt.accounts, tt.structures, 3)
			assert.True(t, rate.Expected.Equal(dec(t, tt.wantExpected)),
				"Expected = %s, want %s", rate.Expected, tt.wantExpected)
			assert.Equal(t, tt.wantPercent, rate.Percent())
		})
	}
}

func TestSummarize(t *testing.T) {
	ctx := context.Background()
	svc, structRepo, _ := setup(t)
	s := testutil.CreateStructure(t, structRepo, "Grade 7", "Term 1", "2024", testutil.Dec(t, "1000.00"))

	unpaid, _ := svc.AssignStructure(ctx, 1, s.ID)
	partial, _ := svc.AssignStructure(ctx, 2, s.ID)
	paid, _ := svc.AssignStructure(ctx, 3, s.ID)
	_ = unpaid
	if _, err := svc.RecordPayment(ctx, partial.ID, newPayment(t, "400.00")); err != nil {
		t.Fatalf("RecordPayment() failed: %v", err)
	}
	if _, err := svc.RecordPayment(ctx, paid.ID, newPayment(t, "1000.00")); err != nil {
		t.Fatalf("RecordPayment() failed: %v", err)
	}

	summary, err := svc.Summarize(ctx, fee.QueryFilter{StructureID: s.ID})
	if err != nil {
		t.Fatalf("Summarize() failed: %v", err)
	}
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 1, summary.Unpaid)
	assert.Equal(t, 1, summary.Partial)
	assert.Equal(t, 1, summary.Paid)
	assert.True(t, summary.Collected.Equal(testutil.Dec(t, "1400.00")))
	assert.True(t, summary.Expected.Equal(testutil.Dec(t, "3000.00")))
}

func TestSummarizeMissingStructure(t *testing.T) {
	ctx := context.Background()
	svc, _, acctRepo := setup(t)

	// account whose structure no longer resolves; expected total must come
	// from the balance fallback, not fail the report
	_, err := acctRepo.CreateAccount(ctx, fee.Account{
		StudentID:   1,
		StructureID: 9,
		AmountPaid:  dec(t, "400.00"),
		Balance:     dec(t, "600.00"),
		Status:      fee.StatusPartial,
	})
	if err != nil {
		t.Fatalf("CreateAccount() failed: %v", err)
	}

	summary, err := svc.Summarize(ctx, fee.QueryFilter{})
	if err != nil {
		t.Fatalf("Summarize() failed: %v", err)
	}
	assert.Equal(t, 1, summary.Total)
	assert.True(t, summary.Collected.Equal(dec(t, "400.00")))
	assert.True(t, summary.Expected.Equal(dec(t, "1000.00")))
}

func dec(t *testing.T, s string) decimal.Decimal { return testutil.Dec(t, s) }
