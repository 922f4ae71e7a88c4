package main

import (
	"context"
	"fmt"

	"github.com/trezcool/karo/core"
	"github.com/trezcool/karo/core/fee"
	"github.com/trezcool/karo/core/notification"
)

func (cli *commandLine) assignFee(ctx context.Context, studentID, structureID int) error {
	acct, err := cli.feeSvc.AssignStructure(ctx, studentID, structureID)
	if err != nil {
		return err
	}
	fmt.Printf("fee account %d opened; balance %s\n", acct.ID, acct.Balance)
	return nil
}

func (cli *commandLine) addContact(ctx context.Context, studentID int, name, phone, email string) error {
	c := notification.Contact{StudentID: studentID, Name: name, Phone: phone, Email: email}
	c.Clean()
	if err := c.Validate(); err != nil {
		return err
	}
	c, err := cli.contactRepo.CreateContact(ctx, c)
	if err != nil {
		return err
	}
	fmt.Printf("contact %d registered for student %d\n", c.ID, c.StudentID)
	return nil
}

func (cli *commandLine) recordPayment(ctx context.Context, accountID int, np fee.NewPayment, notify bool) error {
	acct, err := cli.feeSvc.RecordPayment(ctx, accountID, np)
	if err != nil {
		return err
	}
	fmt.Printf("payment recorded; paid %s, balance %s, status %s\n", acct.AmountPaid, acct.Balance, acct.Status)

	if !notify {
		return nil
	}
	contacts, err := cli.contactRepo.GetStudentContacts(ctx, acct.StudentID)
	if err != nil {
		return err
	}

	res := cli.notifSvc.SendToPopulation(ctx, contacts, func(c notification.Contact) (string, error) {
		msg := core.SMSMessage{
			TemplateName: "payment_receipt",
			TemplateData: map[string]interface{}{
				"GuardianName":  c.Name,
				"StudentName":   fmt.Sprintf("student #%d", acct.StudentID),
				"Amount":        np.Amount.StringFixed(2),
				"ReceiptNumber": np.ReceiptNumber,
				"Balance":       acct.Balance.StringFixed(2),
				"SchoolName":    core.Conf.AppName,
			},
		}
		if err := msg.Render(); err != nil {
			return "", err
		}
		return msg.Content, nil
	}, notification.BatchOptions{
		MessageType: notification.TypePaymentReceipt,
		ReferenceID: np.ReceiptNumber,
		Initiator:   "admin-cli",
		CostUnits:   costUnits(),
	})
	fmt.Printf("receipts: %d sent, %d failed, %d skipped\n", res.Sent, res.Failed, res.Skipped)
	return nil
}
