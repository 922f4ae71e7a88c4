package smssvc

import (
	"context"
	"log"
	"sync"

	"github.com/trezcool/karo/core"
)

// SentMessages captures console/mock deliveries for test inspection.
var (
	SentMessages = make([]SentMessage, 0)
	mu           sync.Mutex
)

type SentMessage struct {
	To   string
	Body string
}

type consoleSender struct {
	senderID      string
	disableOutput bool
}

var _ core.MessageSender = (*consoleSender)(nil)

// NewConsoleSender prints messages to the log instead of delivering them;
// used locally and in DEBUG mode.
func NewConsoleSender() core.MessageSender {
	return &consoleSender{senderID: core.Conf.SMS.SenderID}
}

func (svc consoleSender) Send(_ context.Context, body, address string) error {
	mu.Lock()
	SentMessages = append(SentMessages, SentMessage{To: address, Body: body})
	mu.Unlock()

	if !svc.disableOutput {
		log.Printf("SMS %s -> %s: %s", svc.senderID, address, body)
	}
	return nil
}

// NewConsoleSenderMock is the silent test variant.
func NewConsoleSenderMock() core.MessageSender {
	return &consoleSender{
		senderID:      core.Conf.SMS.SenderID,
		disableOutput: true,
	}
}

// ClearSentMessages resets the captured deliveries between tests.
func ClearSentMessages() {
	mu.Lock()
	SentMessages = SentMessages[:0]
	mu.Unlock()
}
