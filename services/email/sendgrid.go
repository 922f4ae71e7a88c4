package emailsvc

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/trezcool/karo/core"
)

var (
	host     = "https://api.sendgrid.com"
	endpoint = "/v3/mail/send"
)

// sendgridSender delivers notification bodies as plain-text emails; the
// address is the guardian's email. Satisfies the same MessageSender contract
// as the SMS senders so a batch can fan out over either channel.
type sendgridSender struct {
	key        string
	from       *sgmail.Email
	subjPrefix string
}

var _ core.MessageSender = (*sendgridSender)(nil)

func NewSendgridSender() *sendgridSender {
	from := core.Conf.DefaultFromEmail
	return &sendgridSender{
		key:        core.Conf.SendgridApiKey,
		from:       sgmail.NewEmail(from.Name, from.Address),
		subjPrefix: "[" + core.Conf.AppName + "] ",
	}
}

func (svc sendgridSender) Send(ctx context.Context, body, address string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p := sgmail.NewPersonalization()
	p.Subject = svc.subjPrefix + "Notification"
	p.AddTos(sgmail.NewEmail("", address))

	m := sgmail.NewV3Mail()
	m.SetFrom(svc.from)
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/plain", body))

	req := sendgrid.GetRequest(svc.key, endpoint, host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(m)

	res, err := sendgrid.API(req)
	if err != nil {
		return errors.Wrap(err, "sending email")
	}
	if res.StatusCode >= http.StatusBadRequest {
		return errors.Errorf("sending email - status: %d - Body: %s", res.StatusCode, res.Body)
	}
	return nil
}
