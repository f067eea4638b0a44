package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/taskflowhq/taskflow/auth"
	"github.com/taskflowhq/taskflow/broker"
	"github.com/taskflowhq/taskflow/db"
	"github.com/taskflowhq/taskflow/external"
	"github.com/taskflowhq/taskflow/issue"
	"github.com/taskflowhq/taskflow/project"
	"github.com/taskflowhq/taskflow/subscription"
	"github.com/taskflowhq/taskflow/summary"
	"github.com/taskflowhq/taskflow/task"

	"github.com/TheZeroSlave/zapsentry"
	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Build-time injected variables
var (
	Version = ""
)

// The task binary runs once per invocation and is scheduled externally
// (cron). It enqueues a summary request for every project, and with
// -subscription it also reconciles subscription statuses with Stripe.
func main() {
	var logger *zap.Logger
	var authEnvironment auth.Environment
	var dotFile string
	var err error

	subscriptionTaskCapable := flag.Bool("subscription", false, "task instance will also reconcile subscription statuses with Stripe")
	flag.Parse()

	// Determine running environment and initialize structural logger
	env := os.Getenv("API_ENV")
	if "production" == env {
		dotFile = ".env.production"
		authEnvironment = auth.EnvProduction
		logger, err = zap.NewProduction()
	} else {
		dotFile = ".env.development"
		authEnvironment = auth.EnvDevelopment
		logger, err = zap.NewDevelopment()
	}

	if err != nil {
		log.Fatalf("Cannot initialize logger: %v\n", err)
	}
	logger = logger.With(zap.String("Version", Version))
	defer logger.Sync()

	// Load configurations from dotFile
	if err := godotenv.Load(dotFile); err != nil {
		logger.Fatal("Cannot load configurations from .env",
			zap.Error(err),
		)
	}

	// Initialize sentry for error reporting
	if err := sentry.Init(sentry.ClientOptions{
		Environment: string(authEnvironment),
		Debug:       authEnvironment == auth.EnvDevelopment,
	}); err != nil {
		logger.Fatal("Cannot initialize sentry",
			zap.Error(err),
		)
	}
	defer sentry.Flush(time.Second * 2)

	// Attach sentry to zap so we can do automatic error capturing
	cfg := zapsentry.Configuration{
		Level: zapcore.ErrorLevel,
		Tags: map[string]string{
			"component": "task",
		},
	}
	core, err := zapsentry.NewCore(cfg, zapsentry.NewSentryClientFromClient(sentry.CurrentHub().Client()))
	logger = zapsentry.AttachCoreToLogger(core, logger)

	stripeClient := external.NewStripeClient(os.Getenv("STRIPE_KEY"))

	// Initialize backend connections
	db, err := db.New(db.Options{
		URI:    os.Getenv("POSTGRES_URI"),
		Logger: logger,
	})
	if err != nil {
		logger.Fatal("Cannot connect to Postgres",
			zap.Error(err),
		)
	}

	amqpBroker, err := broker.NewAMQPBroker(logger, os.Getenv("AMQP_URI"))
	if err != nil {
		logger.Fatal("Cannot connect to Broker",
			zap.Error(err),
		)
	}
	defer amqpBroker.Close()

	projectManager, err := project.NewManager(logger, db)
	if err != nil {
		logger.Fatal("Cannot initialize ProjectManager",
			zap.Error(err),
		)
	}

	issueManager, err := issue.NewManager(logger, db)
	if err != nil {
		logger.Fatal("Cannot initialize IssueManager",
			zap.Error(err),
		)
	}

	summaryManager, err := summary.NewManager(summary.ManagerOptions{
		DB:             db,
		Logger:         logger,
		IssueManager:   issueManager,
		ProjectManager: projectManager,
	})
	if err != nil {
		logger.Fatal("Cannot initialize SummaryManager",
			zap.Error(err),
		)
	}

	summaryTask, err := task.NewSummaryTask(task.SummaryOptions{
		ProjectManager: projectManager,
		SummaryManager: summaryManager,
		Producer:       amqpBroker,
		Logger:         logger,
	})
	if err != nil {
		logger.Fatal("Cannot get summary task",
			zap.Error(err),
		)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute*10)
	defer cancel()

	if err := summaryTask.EnqueueAll(ctx, time.Now()); err != nil {
		logger.Fatal("Cannot enqueue summary requests",
			zap.Error(err),
		)
	}

	if *subscriptionTaskCapable {
		subscriptionManager, err := subscription.NewManager(subscription.ManagerOptions{
			StripeClient:   stripeClient,
			DB:             db,
			Logger:         logger,
			PathToPlanJSON: "plans.json",
		})
		if err != nil {
			logger.Fatal("Cannot initialize SubscriptionManager",
				zap.Error(err),
			)
		}
		subs, err := subscriptionManager.ListStripeBacked(ctx)
		if err != nil {
			logger.Fatal("Cannot list Stripe-backed subscriptions",
				zap.Error(err),
			)
		}
		for _, sub := range subs {
			if err := subscriptionManager.SynchronizeSubscriptionStatus(ctx, sub.StripeSubscriptionID); err != nil {
				logger.Error("Cannot reconcile subscription status",
					zap.String("SubscriptionID", sub.ID),
					zap.Error(err),
				)
			}
		}
		logger.Info("Reconciled subscription statuses with Stripe",
			zap.Int("Subscriptions", len(subs)),
		)
	}

	logger.Info("Task run finished")
}
