package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/schooldesk/core"
	"github.com/trezcool/schooldesk/core/task"
	"github.com/trezcool/schooldesk/core/user"
	"github.com/trezcool/schooldesk/services/filestore"
	logsvc "github.com/trezcool/schooldesk/services/logger"
	"github.com/trezcool/schooldesk/storage/database"
	sqlxrepos "github.com/trezcool/schooldesk/storage/database/sqlx"
)

func main() {
	os.Exit(start())
}

func start() int {
	conf := core.NewConfig()
	ctx := context.Background()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)
	defer logger.Close()

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Error(fmt.Sprintf("opening database: %v", err), err)
		return 1
	}
	defer func() { _ = db.Close() }()
	if err = database.StatusCheck(ctx, db); err != nil {
		logger.Error(fmt.Sprintf("database unreachable: %v", err), err)
		return 1
	}

	// file deletions only, no thumbnails or uploads
	var files core.FileStore = filestore.NewMemory(conf.FrontendBaseURL + "/files")
	if conf.Storage.Provider == "b2" {
		if files, err = filestore.NewB2(ctx, conf.Storage); err != nil {
			logger.Error(fmt.Sprintf("setting up file store: %v", err), err)
			return 1
		}
	}

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	usrSvc := user.NewService(sqlxrepos.NewUserRepository(db))
	policy := core.NewUploadPolicy(conf.Storage)

	// start CLI
	cli := commandLine{
		db:       db.DB,
		usrSvc:   usrSvc,
		taskSvc:  task.NewService(sqlxrepos.NewTaskRepository(db), usrSvc, files, policy, nil, logger),
		validate: validate,
		in:       os.Stdin,
		out:      os.Stdout,
	}
	if err = cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %s", err), err)
		}
		return 1
	}
	return 0
}
