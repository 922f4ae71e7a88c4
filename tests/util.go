package testutil

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/trezcool/karo/core/fee"
	"github.com/trezcool/karo/core/notification"
)

func CreateStructure(
	t *testing.T,
	repo fee.StructureRepository,
	grade, term, year string,
	basicFee decimal.Decimal,
	charges ...fee.Charge,
) fee.Structure {
	t.Helper()
	s, err := repo.CreateStructure(context.Background(), fee.Structure{
		Grade:        grade,
		Term:         term,
		AcademicYear: year,
		BasicFee:     basicFee,
		Charges:      charges,
	})
	if err != nil {
		t.Fatalf("CreateStructure() failed: %v", err)
	}
	return s
}

func CreateContact(
	t *testing.T,
	repo notification.ContactRepository,
	studentID int,
	name, phone, email string,
) notification.Contact {
	t.Helper()
	c, err := repo.CreateContact(context.Background(), notification.Contact{
		StudentID: studentID,
		Name:      name,
		Phone:     phone,
		Email:     email,
	})
	if err != nil {
		t.Fatalf("CreateContact() failed: %v", err)
	}
	return c
}

func Dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("Dec(%q) failed: %v", s, err)
	}
	return d
}
