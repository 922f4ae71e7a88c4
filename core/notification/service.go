package notification

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/karo/core"
)

var (
	// errors
	ErrNotFound = errors.New("notification log entry not found")

	nowFunc = time.Now // mockable
)

type (
	// LogSink is an append-only store of delivery attempts.
	LogSink interface {
		AppendEntry(ctx context.Context, entry Entry) (Entry, error)
		// HasEntry reports whether any attempt was already logged for
		// (recipient, referenceID); callers wanting at-most-once delivery
		// check this before re-invoking a batch.
		HasEntry(ctx context.Context, recipient, referenceID string) (bool, error)
		FilterEntries(ctx context.Context, filter QueryFilter) ([]Entry, error)
	}

	// ContactRepository looks up guardian contacts for fan-out populations.
	ContactRepository interface {
		CreateContact(ctx context.Context, c Contact) (Contact, error)
		GetStudentContacts(ctx context.Context, studentIDs ...int) ([]Contact, error)
	}

	// RenderFunc produces the message body for one recipient.
	RenderFunc func(Contact) (string, error)

	// BatchOptions tags every log entry of one fan-out invocation.
	// Initiator is the acting back-office user, passed explicitly.
	BatchOptions struct {
		MessageType string
		ReferenceID string
		Initiator   string
		CostUnits   decimal.Decimal // provider-defined units per message
		Channel     Channel         // defaults to ChannelSMS
	}

	Service struct {
		sender core.MessageSender
		sink   LogSink
		logger core.Logger

		countryCode string
		nationalLen int
	}
)

func NewService(sender core.MessageSender, sink LogSink, logger core.Logger) *Service {
	return &Service{
		sender:      sender,
		sink:        sink,
		logger:      logger,
		countryCode: core.Conf.SMS.CountryCode,
		nationalLen: core.Conf.SMS.NationalLen,
	}
}

// SendToPopulation attempts best-effort delivery of a rendered message to
// every usable recipient, independently logging each outcome. One
// recipient's failure never aborts the batch; recipients without a usable
// address are skipped without a log entry. Each call produces a fresh batch
// of log entries — idempotence across calls is the caller's responsibility
// (see LogSink.HasEntry).
//
// Recipients are processed strictly sequentially; a batch, once started,
// runs to completion over its recipient list.
func (svc *Service) SendToPopulation(ctx context.Context, recipients []Contact, render RenderFunc, opts BatchOptions) BatchResult {
	if opts.Channel == "" {
		opts.Channel = ChannelSMS
	}

	var res BatchResult
	for _, recipient := range recipients {
		addr := recipient.Address(opts.Channel)
		if addr == "" {
			res.Skipped++
			continue
		}
		if opts.Channel == ChannelSMS {
			addr = core.NormalizePhone(addr, svc.countryCode, svc.nationalLen)
		}

		body, err := render(recipient)
		if err != nil {
			// rendering failures are recorded like delivery failures so the
			// batch stays inspectable through the log sink
			svc.log(ctx, addr, "", opts, err)
			res.Failed++
			res.FailedRecipients = append(res.FailedRecipients, recipient)
			continue
		}
		body = core.TruncateMessage(body)

		if err := svc.sender.Send(ctx, body, addr); err != nil {
			svc.log(ctx, addr, body, opts, err)
			res.Failed++
			res.FailedRecipients = append(res.FailedRecipients, recipient)
			continue
		}
		svc.log(ctx, addr, body, opts, nil)
		res.Sent++
	}
	return res
}

// SendToContact is the single-recipient convenience wrapper.
func (svc *Service) SendToContact(ctx context.Context, recipient Contact, body string, opts BatchOptions) BatchResult {
	return svc.SendToPopulation(ctx, []Contact{recipient}, func(Contact) (string, error) { return body, nil }, opts)
}

func (svc *Service) log(ctx context.Context, recipient, message string, opts BatchOptions, sendErr error) {
	entry := Entry{
		ID:          uuid.New().String(),
		Recipient:   recipient,
		Message:     message,
		Outcome:     OutcomeSent,
		CostUnits:   opts.CostUnits,
		MessageType: opts.MessageType,
		ReferenceID: null.NewString(opts.ReferenceID, opts.ReferenceID != ""),
		Initiator:   opts.Initiator,
		CreatedAt:   nowFunc().UTC(),
	}
	if sendErr != nil {
		entry.Outcome = OutcomeFailed
		entry.CostUnits = decimal.Zero
		entry.ErrorMessage = null.StringFrom(sendErr.Error())
	}
	if _, err := svc.sink.AppendEntry(ctx, entry); err != nil {
		// the batch must keep going; surface through the logger only
		svc.logger.Error("appending notification log entry: "+err.Error(), err)
	}
}
