package smssvc

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/trezcool/karo/core"
)

var endpoint = "/messages"

type gatewaySender struct {
	client   rest.Client
	baseURL  string
	apiKey   string
	senderID string
	logger   core.Logger
}

var _ core.MessageSender = (*gatewaySender)(nil)

// NewGatewaySender delivers through the configured HTTP SMS gateway.
// The HTTP client carries the bounded timeout; a hung provider fails the
// attempt instead of stalling the batch.
func NewGatewaySender(logger core.Logger) *gatewaySender {
	return &gatewaySender{
		client:   rest.Client{HTTPClient: &http.Client{Timeout: core.Conf.SMS.Timeout}},
		baseURL:  core.Conf.SMS.GatewayURL,
		apiKey:   core.Conf.SMS.ApiKey,
		senderID: core.Conf.SMS.SenderID,
		logger:   logger,
	}
}

type gatewayPayload struct {
	To       string `json:"to"`
	Message  string `json:"message"`
	SenderID string `json:"sender_id"`
}

func (svc gatewaySender) Send(ctx context.Context, body, address string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(gatewayPayload{To: address, Message: body, SenderID: svc.senderID})
	if err != nil {
		return errors.Wrap(err, "encoding sms payload")
	}

	req := rest.Request{
		Method:  rest.Post,
		BaseURL: svc.baseURL + endpoint,
		Headers: map[string]string{
			"Authorization": "Bearer " + svc.apiKey,
			"Content-Type":  "application/json",
		},
		Body: payload,
	}

	res, err := svc.client.Send(req)
	if err != nil {
		return errors.Wrap(err, "sending sms")
	}
	if res.StatusCode >= http.StatusBadRequest {
		svc.logger.Error("sms gateway rejected message", res.StatusCode, res.Body)
		return errors.Errorf("sms gateway: status %d", res.StatusCode)
	}
	return nil
}
