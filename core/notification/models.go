package notification

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/karo/core"
)

// Outcome of one delivery attempt.
type Outcome string

const (
	OutcomeSent   Outcome = "sent"
	OutcomeFailed Outcome = "failed"
)

// Channel selects the contact address a batch delivers to.
type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
)

// Message type tags; free-form classification strings, these are the ones
// the back office uses.
const (
	TypeFeeReminder    = "fee_reminder"
	TypePaymentReceipt = "payment_receipt"
	TypeHomework       = "homework"
	TypeResult         = "result"
	TypeEvent          = "event"
	TypeGeneral        = "general"
)

type (
	// Contact is one notification recipient, usually a student's guardian.
	Contact struct {
		ID        int    `json:"id"`
		StudentID int    `json:"student_id"`
		Name      string `json:"name"`
		Phone     string `json:"phone" validate:"omitempty,phone"` // raw, unnormalized
		Email     string `json:"email" validate:"omitempty,email"`
	}

	// Entry is the immutable record of one delivery attempt. Created exactly
	// once per attempt; never mutated after creation.
	Entry struct {
		ID           string          `json:"id"`
		Recipient    string          `json:"recipient"` // normalized address
		Message      string          `json:"message"`
		Outcome      Outcome         `json:"outcome"`
		CostUnits    decimal.Decimal `json:"cost_units"`
		ErrorMessage null.String     `json:"error_message"`
		MessageType  string          `json:"message_type"`
		ReferenceID  null.String     `json:"reference_id"`
		Initiator    string          `json:"initiator"`
		CreatedAt    time.Time       `json:"created_at"` // UTC
	}

	// BatchResult reports one fan-out invocation over a population.
	// Skipped counts recipients with no usable contact address; they get no
	// log entry and are neither successes nor failures.
	BatchResult struct {
		Sent    int
		Failed  int
		Skipped int

		// FailedRecipients lets a caller explicitly re-invoke the batch over
		// the failed subset; there is no automatic retry.
		FailedRecipients []Contact
	}
)

func (c *Contact) Clean() {
	c.Name = core.CleanString(c.Name)
	c.Phone = core.CleanString(c.Phone)
	c.Email = core.CleanString(c.Email, true /* lower */)
}

func (c Contact) Validate() error { return core.Validate.Struct(c) }

// Address returns the contact's raw address for the given channel,
// empty when unusable.
func (c Contact) Address(ch Channel) string {
	if ch == ChannelEmail {
		return core.CleanString(c.Email, true /* lower */)
	}
	return core.CleanString(c.Phone)
}

// QueryFilter applies AND operation on available fields.
type QueryFilter struct {
	Recipient   string  `query:"recipient"`
	MessageType string  `query:"message_type"`
	ReferenceID string  `query:"reference_id"`
	Outcome     Outcome `query:"outcome"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Recipient == "" && qf.MessageType == "" && qf.ReferenceID == "" && qf.Outcome == ""
}
