package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	echoapi "github.com/trezcool/schooldesk/apps/api/echo"
	"github.com/trezcool/schooldesk/core"
	"github.com/trezcool/schooldesk/core/analytics"
	"github.com/trezcool/schooldesk/core/document"
	"github.com/trezcool/schooldesk/core/notification"
	"github.com/trezcool/schooldesk/core/org"
	"github.com/trezcool/schooldesk/core/task"
	"github.com/trezcool/schooldesk/core/user"
	emailsvc "github.com/trezcool/schooldesk/services/email"
	"github.com/trezcool/schooldesk/services/filestore"
	"github.com/trezcool/schooldesk/services/identity"
	logsvc "github.com/trezcool/schooldesk/services/logger"
	"github.com/trezcool/schooldesk/storage/database"
	boiledrepos "github.com/trezcool/schooldesk/storage/database/sqlboiler"
	sqlxrepos "github.com/trezcool/schooldesk/storage/database/sqlx"
	mongostore "github.com/trezcool/schooldesk/storage/mongo"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()
	ctx := context.Background()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)
	defer logger.Close()

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger.Enable(!conf.Debug)
	defer dbLogger.Close()

	// set up DB
	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			dbLogger.Error("Failed to close", err)
		}
	}()

	mongoClient, err := mongostore.Connect(ctx, conf.Mongo)
	if err != nil {
		logger.Fatal(fmt.Sprintf("connecting to mongo: %v", err), err)
	}
	defer func() {
		if err = mongoClient.Disconnect(context.Background()); err != nil {
			dbLogger.Error("Failed to disconnect from mongo", err)
		}
	}()
	notifRepo, err := mongostore.NewNotificationRepository(ctx, mongoClient.Database(conf.Mongo.Database))
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up notifications: %v", err), err)
	}

	// set up file store
	files, filesHealth, err := setUpFileStore(ctx, conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up file store: %v", err), err)
	}

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	policy := core.NewUploadPolicy(conf.Storage)
	usrSvc := user.NewService(sqlxrepos.NewUserRepository(db))
	notifSvc := notification.NewService(notifRepo, usrSvc, mailSvc, logger)
	taskSvc := task.NewService(sqlxrepos.NewTaskRepository(db), usrSvc, files, policy, notifSvc, logger)
	docSvc := document.NewService(sqlxrepos.NewDocumentRepository(db), usrSvc, notifSvc, logger, document.Options{
		Files:         files,
		Policy:        policy,
		Thumbnail:     filestore.Thumbnail,
		ThumbnailSize: conf.Storage.ThumbnailSize,
	})
	orgSvc := org.NewService(sqlxrepos.NewOrgRepository(db), usrSvc)
	analyticsSvc := analytics.NewService(boiledrepos.NewAnalyticsLoader(db), taskSvc)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	core.ParseEmailTemplates(conf, logger)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:            conf,
			Logger:          logger,
			Validate:        validate,
			Translator:      translator,
			Verifier:        identity.NewGoogleVerifier(conf.GoogleClientIDs),
			UserSvc:         usrSvc,
			OrgSvc:          orgSvc,
			TaskSvc:         taskSvc,
			AnalyticsSvc:    analyticsSvc,
			DocumentSvc:     docSvc,
			NotificationSvc: notifSvc,
			HealthChecks: map[string]echoapi.HealthCheck{
				"db": func(ctx context.Context) error {
					return database.StatusCheck(ctx, db)
				},
				"mongo": func(ctx context.Context) error {
					return mongostore.StatusCheck(ctx, mongoClient)
				},
				"files": filesHealth,
			},
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Error(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Error(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db.DB); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// setUpFileStore picks the configured provider. The memory store only suits local development.
func setUpFileStore(ctx context.Context, conf *core.Config) (core.FileStore, echoapi.HealthCheck, error) {
	if conf.Storage.Provider == "b2" {
		b2, err := filestore.NewB2(ctx, conf.Storage)
		if err != nil {
			return nil, nil, err
		}
		return b2, b2.Health, nil
	}
	mem := filestore.NewMemory(conf.FrontendBaseURL + "/files")
	return mem, mem.Health, nil
}
