package main

import (
	"context"
	"io/ioutil"
	"log"
	"testing"

	"github.com/trezcool/karo/core"
	"github.com/trezcool/karo/core/fee"
	"github.com/trezcool/karo/core/notification"
	smssvc "github.com/trezcool/karo/services/sms"
	dummydb "github.com/trezcool/karo/storage/database/dummy"
	testutil "github.com/trezcool/karo/tests"
)

func setup(t *testing.T) (*commandLine, fee.StructureRepository, notification.LogSink) {
	t.Helper()

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("setup() failed: %v", err)
	}
	structRepo := dummydb.NewStructureRepository(db)
	acctRepo := dummydb.NewAccountRepository(db)
	contactRepo := dummydb.NewContactRepository(db)
	sink := dummydb.NewLogSink(db)
	logger := core.NewStdLogger(log.New(ioutil.Discard, "", 0))

	smssvc.ClearSentMessages()

	return &commandLine{
		feeSvc:        fee.NewService(structRepo, acctRepo, logger),
		notifSvc:      notification.NewService(smssvc.NewConsoleSenderMock(), sink, logger),
		emailNotifSvc: notification.NewService(smssvc.NewConsoleSenderMock(), sink, logger),
		contactRepo:   contactRepo,
	}, structRepo, sink
}

type cliTest struct {
	name    string
	args    []string // without program name
	wantErr error
}

func Test_commandLine_run(t *testing.T) {
	cli, structRepo, _ := setup(t)
	s := testutil.CreateStructure(t, structRepo, "Grade 7", "Term 1", "2024", testutil.Dec(t, "1000.00"))
	acct, err := cli.feeSvc.AssignStructure(context.Background(), 1, s.ID)
	if err != nil {
		t.Fatalf("AssignStructure() failed: %v", err)
	}

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "assignfee: no args", args: []string{"assignfee"}, wantErr: errHelp},
		{name: "assignfee: student but no structure", args: []string{"assignfee", "-student", "2"}, wantErr: errHelp},
		{name: "assignfee: unknown structure", args: []string{"assignfee", "-student", "2", "-structure", "999"}, wantErr: fee.ErrStructureNotFound},
		{name: "assignfee", args: []string{"assignfee", "-student", "2", "-structure", "1"}},
		{name: "recordpayment: no args", args: []string{"recordpayment"}, wantErr: errHelp},
		{name: "recordpayment: missing receipt", args: []string{"recordpayment", "-account", "1", "-amount", "400"}, wantErr: errHelp},
		{name: "recordpayment: unknown account", args: []string{"recordpayment", "-account", "999", "-amount", "400", "-receipt", "RCT-1"}, wantErr: fee.ErrNotFound},
		{name: "recordpayment", args: []string{"recordpayment", "-account", "1", "-amount", "400", "-receipt", "RCT-1"}},
		{name: "addcontact: no args", args: []string{"addcontact"}, wantErr: errHelp},
		{name: "addcontact", args: []string{"addcontact", "-student", "1", "-name", "Mrs. Banda", "-phone", "0972266217"}},
		{name: "feereminders: no initiator", args: []string{"feereminders"}, wantErr: errHelp},
		{name: "feereminders: bad channel", args: []string{"feereminders", "-initiator", "bursar", "-channel", "pigeon"}, wantErr: errHelp},
		{name: "feereminders", args: []string{"feereminders", "-initiator", "bursar"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	refreshed, err := cli.feeSvc.GetAccount(context.Background(), acct.ID)
	if err != nil {
		t.Fatalf("GetAccount() failed: %v", err)
	}
	if !refreshed.AmountPaid.Equal(testutil.Dec(t, "400.00")) {
		t.Errorf("AmountPaid = %s, want 400.00", refreshed.AmountPaid)
	}
}

func Test_commandLine_feeReminders(t *testing.T) {
	cli, structRepo, sink := setup(t)
	ctx := context.Background()

	s := testutil.CreateStructure(t, structRepo, "Grade 7", "Term 2", "2024", testutil.Dec(t, "1000.00"))
	if _, err := cli.feeSvc.AssignStructure(ctx, 1, s.ID); err != nil {
		t.Fatalf("AssignStructure() failed: %v", err)
	}
	testutil.CreateContact(t, cli.contactRepo, 1, "Mrs. Banda", "0972266217", "")

	if err := cli.feeReminders(ctx, s.ID, "bursar", notification.ChannelSMS); err != nil {
		t.Fatalf("feeReminders() failed: %v", err)
	}

	if n := len(smssvc.SentMessages); n != 1 {
		t.Fatalf("sent %d messages, want 1", n)
	}
	sent := smssvc.SentMessages[0]
	if sent.To != "260972266217" {
		t.Errorf("sent to %q, want 260972266217", sent.To)
	}

	entries, err := sink.FilterEntries(ctx, notification.QueryFilter{MessageType: notification.TypeFeeReminder})
	if err != nil {
		t.Fatalf("FilterEntries() failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("logged %d entries, want 1", len(entries))
	}
	if entries[0].Initiator != "bursar" {
		t.Errorf("Initiator = %q, want bursar", entries[0].Initiator)
	}
}

func Test_commandLine_feeReminders_email(t *testing.T) {
	cli, structRepo, sink := setup(t)
	ctx := context.Background()

	s := testutil.CreateStructure(t, structRepo, "Grade 7", "Term 2", "2024", testutil.Dec(t, "1000.00"))
	if _, err := cli.feeSvc.AssignStructure(ctx, 1, s.ID); err != nil {
		t.Fatalf("AssignStructure() failed: %v", err)
	}
	testutil.CreateContact(t, cli.contactRepo, 1, "Mrs. Banda", "0972266217", "banda@example.com")

	if err := cli.feeReminders(ctx, s.ID, "bursar", notification.ChannelEmail); err != nil {
		t.Fatalf("feeReminders() failed: %v", err)
	}

	if n := len(smssvc.SentMessages); n != 1 {
		t.Fatalf("sent %d messages, want 1", n)
	}
	if to := smssvc.SentMessages[0].To; to != "banda@example.com" {
		t.Errorf("sent to %q, want banda@example.com", to)
	}

	entries, err := sink.FilterEntries(ctx, notification.QueryFilter{Recipient: "banda@example.com"})
	if err != nil {
		t.Fatalf("FilterEntries() failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("logged %d entries, want 1", len(entries))
	}
	if !entries[0].CostUnits.IsZero() {
		t.Errorf("CostUnits = %s, want 0 for email", entries[0].CostUnits)
	}
}
