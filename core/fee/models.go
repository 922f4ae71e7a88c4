package fee

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/karo/core"
)

// PaymentStatus is derived from AmountPaid vs the structure's total fee;
// it is never set directly.
type PaymentStatus string

const (
	StatusUnpaid  PaymentStatus = "unpaid"
	StatusPartial PaymentStatus = "partial"
	StatusPaid    PaymentStatus = "paid"
)

// Payment methods accepted by the bursar's office.
const (
	MethodCash        = "cash"
	MethodCheque      = "cheque"
	MethodMobileMoney = "mobile_money"
	MethodBank        = "bank"
)

type (
	// Charge is a labelled amount added on top of a structure's basic fee.
	Charge struct {
		ID     int             `json:"id"`
		Label  string          `json:"label"`
		Amount decimal.Decimal `json:"amount"`
	}

	// Structure is a priced template of charges for a (grade, term, year).
	// Immutable once assigned to students.
	Structure struct {
		ID           int             `json:"id"`
		Grade        string          `json:"grade"`
		Term         string          `json:"term"`
		AcademicYear string          `json:"academic_year"`
		BasicFee     decimal.Decimal `json:"basic_fee"`
		Charges      []Charge        `json:"charges"`
		CreatedAt    time.Time       `json:"created_at"` // UTC
	}

	// Account is a student's running balance against one fee structure.
	// At most one Account exists per (StudentID, StructureID).
	Account struct {
		ID              int             `json:"id"`
		StudentID       int             `json:"student_id"`
		StructureID     int             `json:"structure_id"`
		AmountPaid      decimal.Decimal `json:"amount_paid"`
		Balance         decimal.Decimal `json:"balance"`
		Status          PaymentStatus   `json:"status"`
		LastPaymentDate null.Time       `json:"last_payment_date"`
		ReceiptNumber   null.String     `json:"receipt_number"`
		Version         int             `json:"-"` // optimistic concurrency check
		CreatedAt       time.Time       `json:"created_at"` // UTC
		UpdatedAt       time.Time       `json:"updated_at"` // UTC
	}
)

// TotalFee is BasicFee plus the sum of all charges, rounded to 2dp.
func (s Structure) TotalFee() decimal.Decimal {
	total := s.BasicFee
	for _, c := range s.Charges {
		total = total.Add(c.Amount)
	}
	return core.Round2(total)
}

// StatusFor derives the payment status from raw amounts:
// paid <= 0 -> unpaid; 0 < paid < total -> partial; paid >= total -> paid.
func StatusFor(paid, total decimal.Decimal) PaymentStatus {
	switch {
	case !paid.IsPositive():
		return StatusUnpaid
	case paid.LessThan(total):
		return StatusPartial
	}
	return StatusPaid
}

// BalanceFor is max(0, total - paid); overpayment clamps to zero.
func BalanceFor(paid, total decimal.Decimal) decimal.Decimal {
	bal := total.Sub(paid)
	if bal.IsNegative() {
		return decimal.Zero
	}
	return core.Round2(bal)
}

// CreditAmount is the excess of AmountPaid over the structure total, zero
// when none. Callers may treat it as a credit/refund signal.
func (a Account) CreditAmount(total decimal.Decimal) decimal.Decimal {
	credit := a.AmountPaid.Sub(total)
	if credit.IsNegative() {
		return decimal.Zero
	}
	return core.Round2(credit)
}

// NewStructure contains information needed to create a fee Structure.
type NewStructure struct {
	Grade        string          `json:"grade" validate:"required"`
	Term         string          `json:"term" validate:"required"`
	AcademicYear string          `json:"academic_year" validate:"required"`
	BasicFee     decimal.Decimal `json:"basic_fee"`
	Charges      []Charge        `json:"charges"`
}

func (ns *NewStructure) Validate() error {
	ns.Grade = core.CleanString(ns.Grade)
	ns.Term = core.CleanString(ns.Term)
	ns.AcademicYear = core.CleanString(ns.AcademicYear)

	if err := core.Validate.Struct(ns); err != nil {
		return err
	}
	if ns.BasicFee.IsNegative() {
		return core.NewValidationError(ErrInvalidAmount, core.FieldError{Field: "basic_fee", Error: ErrInvalidAmount.Error()})
	}
	for _, c := range ns.Charges {
		if c.Amount.IsNegative() {
			return core.NewValidationError(ErrInvalidAmount, core.FieldError{Field: "charges", Error: ErrInvalidAmount.Error()})
		}
	}
	return nil
}

// NewPayment contains information needed to record a payment against an Account.
type NewPayment struct {
	Amount        decimal.Decimal `json:"amount"`
	Date          time.Time       `json:"date"`
	ReceiptNumber string          `json:"receipt_number" validate:"required"`
	Method        string          `json:"method" validate:"required,oneof=cash cheque mobile_money bank"`
}

func (np *NewPayment) Validate() error {
	np.ReceiptNumber = core.CleanString(np.ReceiptNumber)
	np.Method = core.CleanString(np.Method, true /* lower */)

	if !np.Amount.IsPositive() {
		return core.NewValidationError(ErrInvalidAmount, core.FieldError{Field: "amount", Error: ErrInvalidAmount.Error()})
	}
	return core.Validate.Struct(np)
}

// QueryFilter applies AND operation on available fields.
type QueryFilter struct {
	StudentID   int             `query:"student_id"`
	StructureID int             `query:"structure_id"`
	Statuses    []PaymentStatus `query:"status"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.StudentID == 0 && qf.StructureID == 0 && len(qf.Statuses) == 0
}
