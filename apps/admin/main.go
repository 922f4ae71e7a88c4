package main

import (
	"log"
	"os"

	"github.com/trezcool/karo/core"
	"github.com/trezcool/karo/core/fee"
	"github.com/trezcool/karo/core/notification"
	emailsvc "github.com/trezcool/karo/services/email"
	logsvc "github.com/trezcool/karo/services/logger"
	smssvc "github.com/trezcool/karo/services/sms"
	"github.com/trezcool/karo/storage/database"
	sqlxrepos "github.com/trezcool/karo/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	conf := core.Conf

	var logSvc core.Logger
	if conf.Debug || conf.RollbarToken == "" {
		logSvc = core.NewStdLogger(logger)
	} else {
		logSvc = logsvc.NewRollbarLogger(logger, conf)
	}

	// set up DB
	errAndDie(database.CreateIfNotExist(conf))
	db, err := database.Open(conf)
	errAndDie(err)
	defer db.Close()
	errAndDie(db.Ping())

	// set up services
	var smsSender, emailSender core.MessageSender
	if conf.Debug {
		smsSender = smssvc.NewConsoleSender()
		emailSender = smssvc.NewConsoleSender()
	} else {
		smsSender = smssvc.NewGatewaySender(logSvc)
		emailSender = emailsvc.NewSendgridSender()
	}
	sink := sqlxrepos.NewLogSink(db)
	feeSvc := fee.NewService(sqlxrepos.NewStructureRepository(db), sqlxrepos.NewAccountRepository(db), logSvc)

	// start CLI
	cli := commandLine{
		db:            db,
		feeSvc:        feeSvc,
		notifSvc:      notification.NewService(smsSender, sink, logSvc),
		emailNotifSvc: notification.NewService(emailSender, sink, logSvc),
		contactRepo:   sqlxrepos.NewContactRepository(db),
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
