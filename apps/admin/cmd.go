package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/trezcool/karo/core/fee"
	"github.com/trezcool/karo/core/notification"
	"github.com/trezcool/karo/storage/database"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	db            *sqlx.DB
	feeSvc        *fee.Service
	notifSvc      *notification.Service // SMS-backed
	emailNotifSvc *notification.Service
	contactRepo   notification.ContactRepository
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate                                                             - apply pending DB migrations")
	fmt.Println("  assignfee -student ID -structure ID                                 - open a fee account for a student")
	fmt.Println("  recordpayment -account ID -amount N -receipt NO -method M [-notify] - record a payment (optionally SMS a receipt)")
	fmt.Println("  addcontact -student ID -name NAME -phone PHONE [-email EMAIL]       - register a guardian contact")
	fmt.Println("  feereminders -initiator USER [-structure ID] [-channel sms|email]   - send balance reminders to guardians of unpaid/partial accounts")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()

	assignCmd := flag.NewFlagSet("assignfee", flag.ExitOnError)
	assignStudent := assignCmd.Int("student", 0, "The student's ID.")
	assignStructure := assignCmd.Int("structure", 0, "The fee structure's ID.")

	paymentCmd := flag.NewFlagSet("recordpayment", flag.ExitOnError)
	paymentAccount := paymentCmd.Int("account", 0, "The student fee account's ID.")
	paymentAmount := paymentCmd.String("amount", "", "The payment amount.")
	paymentReceipt := paymentCmd.String("receipt", "", "The receipt number.")
	paymentMethod := paymentCmd.String("method", fee.MethodCash, "cash | cheque | mobile_money | bank.")
	paymentNotify := paymentCmd.Bool("notify", false, "SMS a receipt to the student's guardians.")

	contactCmd := flag.NewFlagSet("addcontact", flag.ExitOnError)
	contactStudent := contactCmd.Int("student", 0, "The student's ID.")
	contactName := contactCmd.String("name", "", "The guardian's name.")
	contactPhone := contactCmd.String("phone", "", "The guardian's phone number.")
	contactEmail := contactCmd.String("email", "", "The guardian's email (optional).")

	remindersCmd := flag.NewFlagSet("feereminders", flag.ExitOnError)
	remindersStructure := remindersCmd.Int("structure", 0, "Limit to one fee structure (optional).")
	remindersInitiator := remindersCmd.String("initiator", "", "The acting back-office user; recorded on every log entry.")
	remindersChannel := remindersCmd.String("channel", "sms", "sms | email.")

	switch args[1] {
	case "migrate":
		return database.Migrate(cli.db.DB)
	case "assignfee":
		if err := assignCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *assignStudent == 0 || *assignStructure == 0 {
			assignCmd.Usage()
			return errHelp
		}
		return cli.assignFee(ctx, *assignStudent, *assignStructure)
	case "recordpayment":
		if err := paymentCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *paymentAccount == 0 || *paymentAmount == "" || *paymentReceipt == "" {
			paymentCmd.Usage()
			return errHelp
		}
		amount, err := decimal.NewFromString(*paymentAmount)
		if err != nil {
			return err
		}
		return cli.recordPayment(ctx, *paymentAccount, fee.NewPayment{
			Amount:        amount,
			Date:          time.Now().UTC(),
			ReceiptNumber: *paymentReceipt,
			Method:        *paymentMethod,
		}, *paymentNotify)
	case "addcontact":
		if err := contactCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *contactStudent == 0 || *contactName == "" || *contactPhone == "" {
			contactCmd.Usage()
			return errHelp
		}
		return cli.addContact(ctx, *contactStudent, *contactName, *contactPhone, *contactEmail)
	case "feereminders":
		if err := remindersCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *remindersInitiator == "" {
			remindersCmd.Usage()
			return errHelp
		}
		if *remindersChannel != "sms" && *remindersChannel != "email" {
			remindersCmd.Usage()
			return errHelp
		}
		return cli.feeReminders(ctx, *remindersStructure, *remindersInitiator, notification.Channel(*remindersChannel))
	default:
		cli.printUsage()
		return errHelp
	}
}
