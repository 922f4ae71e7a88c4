package main

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/trezcool/karo/core"
	"github.com/trezcool/karo/core/fee"
	"github.com/trezcool/karo/core/notification"
)

func costUnits() decimal.Decimal {
	return decimal.NewFromFloat(core.Conf.SMS.CostUnits)
}

// feeReminders fans a balance reminder out to the guardians of every
// unpaid or partially-paid account, over SMS or email.
func (cli *commandLine) feeReminders(ctx context.Context, structureID int, initiator string, channel notification.Channel) error {
	accounts, err := cli.feeSvc.Filter(ctx, fee.QueryFilter{
		StructureID: structureID,
		Statuses:    []fee.PaymentStatus{fee.StatusUnpaid, fee.StatusPartial},
	})
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		fmt.Println("no accounts with outstanding balances")
		return nil
	}

	byStudent := make(map[int]fee.Account, len(accounts))
	studentIDs := make([]int, 0, len(accounts))
	for _, acct := range accounts {
		byStudent[acct.StudentID] = acct
		studentIDs = append(studentIDs, acct.StudentID)
	}

	contacts, err := cli.contactRepo.GetStudentContacts(ctx, studentIDs...)
	if err != nil {
		return err
	}

	notifSvc, cost := cli.notifSvc, costUnits()
	if channel == notification.ChannelEmail {
		notifSvc, cost = cli.emailNotifSvc, decimal.Zero
	}

	res := notifSvc.SendToPopulation(ctx, contacts, func(c notification.Contact) (string, error) {
		acct := byStudent[c.StudentID]
		s, err := cli.feeSvc.GetStructure(ctx, acct.StructureID)
		if err != nil {
			return "", err
		}
		msg := core.SMSMessage{
			TemplateName: "fee_reminder",
			TemplateData: map[string]interface{}{
				"GuardianName": c.Name,
				"StudentName":  fmt.Sprintf("student #%d", acct.StudentID),
				"Balance":      acct.Balance.StringFixed(2),
				"Term":         s.Term,
				"Year":         s.AcademicYear,
				"SchoolName":   core.Conf.AppName,
			},
		}
		if err := msg.Render(); err != nil {
			return "", err
		}
		return msg.Content, nil
	}, notification.BatchOptions{
		MessageType: notification.TypeFeeReminder,
		Initiator:   initiator,
		CostUnits:   cost,
		Channel:     channel,
	})

	fmt.Printf("reminders: %d sent, %d failed, %d skipped\n", res.Sent, res.Failed, res.Skipped)
	return nil
}
