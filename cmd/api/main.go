package main

import (
	"fmt"
	"log"
	"net/http"
	"net/http/pprof"
	"net/smtp"
	"os"
	"time"

	"github.com/taskflowhq/taskflow/auth"
	"github.com/taskflowhq/taskflow/db"
	"github.com/taskflowhq/taskflow/external"
	"github.com/taskflowhq/taskflow/issue"
	"github.com/taskflowhq/taskflow/organization"
	"github.com/taskflowhq/taskflow/project"
	"github.com/taskflowhq/taskflow/ratelimit"
	"github.com/taskflowhq/taskflow/sprint"
	"github.com/taskflowhq/taskflow/subscription"
	"github.com/taskflowhq/taskflow/summary"
	"github.com/taskflowhq/taskflow/usage"
	"github.com/taskflowhq/taskflow/user"

	"github.com/TheZeroSlave/zapsentry"
	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v7"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Build-time injected variables
var (
	Version = ""
)

func main() {
	var logger *zap.Logger
	var authEnvironment auth.Environment
	var dotFile string
	var err error

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
			"component": "api",
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

	rdb := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{os.Getenv("REDIS_URI")},
		Password: os.Getenv("REDIS_PW"),
		DB:       0,
	})
	if _, err := rdb.Ping().Result(); err != nil {
		logger.Fatal("Cannot connect to Redis",
			zap.Error(err),
		)
	}
	defer rdb.Close()

	smtpAuth := smtp.PlainAuth("", os.Getenv("SMTP_USERNAME"), os.Getenv("SMTP_PASSWORD"), os.Getenv("SMTP_HOST"))

	authManager, err := auth.New(auth.Options{
		Redis:  rdb,
		Logger: logger,

		JWTSigningKey: os.Getenv("JWT_SIGNING_KEY"),

		Environment: authEnvironment,
		SMTPAuth:    smtpAuth,
		From:        os.Getenv("SMTP_FROM"),
		Hostname:    os.Getenv("SMTP_HOST") + ":" + os.Getenv("SMTP_PORT"),
		EmailOption: auth.EmailOption{
			Name: os.Getenv("SITE_NAME"),
			LinkGenerator: func(uid, token string) string {
				return fmt.Sprintf("%s/login/%s/%s", os.Getenv("SITE_URL"), uid, token)
			},
		},
	})
	if err != nil {
		logger.Fatal("Cannot initialize Auth",
			zap.Error(err),
		)
	}

	userManager, err := user.NewManager(logger, db)
	if err != nil {
		logger.Fatal("Cannot initialize UserManager",
			zap.Error(err),
		)
	}

	organizationManager, err := organization.NewManager(logger, db)
	if err != nil {
		logger.Fatal("Cannot initialize OrganizationManager",
			zap.Error(err),
		)
	}

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

	usageManager, err := usage.NewManager(usage.ManagerOptions{
		DB:                  db,
		Logger:              logger,
		SubscriptionManager: subscriptionManager,
	})
	if err != nil {
		logger.Fatal("Cannot initialize UsageManager",
			zap.Error(err),
		)
	}

	projectManager, err := project.NewManager(logger, db)
	if err != nil {
		logger.Fatal("Cannot initialize ProjectManager",
			zap.Error(err),
		)
	}

	sprintManager, err := sprint.NewManager(logger, db)
	if err != nil {
		logger.Fatal("Cannot initialize SprintManager",
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

	burstLimiter, err := ratelimit.New(ratelimit.Options{
		Redis:  rdb,
		Logger: logger,
		Limit:  10,
		Window: time.Second * 10,
	})
	if err != nil {
		logger.Fatal("Cannot initialize burst Limiter",
			zap.Error(err),
		)
	}

	userRouter, err := user.NewService(user.ServiceOptions{
		Auth:        authManager,
		UserManager: userManager,
		Logger:      logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize User Service Router",
			zap.Error(err),
		)
	}

	organizationRouter, err := organization.NewService(organization.ServiceOptions{
		OrganizationManager: organizationManager,
		Logger:              logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize Organization Service Router",
			zap.Error(err),
		)
	}

	subscriptionRouter, err := subscription.NewService(subscription.ServiceOptions{
		SubscriptionManager: subscriptionManager,
		Logger:              logger,
		FrontendURL:         os.Getenv("SITE_URL"),
	})
	if err != nil {
		logger.Fatal("Cannot initialize Subscription Service Router",
			zap.Error(err),
		)
	}

	stripeWebhook, err := subscription.NewWebhook(subscription.WebhookOptions{
		SubscriptionManager: subscriptionManager,
		Logger:              logger,
		EndpointSecret:      os.Getenv("STRIPE_WEBHOOK_SECRET"),
	})
	if err != nil {
		logger.Fatal("Cannot initialize Stripe Webhook handler",
			zap.Error(err),
		)
	}

	usageRouter, err := usage.NewService(usage.ServiceOptions{
		UsageManager: usageManager,
		Logger:       logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize Usage Service Router",
			zap.Error(err),
		)
	}

	projectRouter, err := project.NewService(project.ServiceOptions{
		ProjectManager: projectManager,
		Logger:         logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize Project Service Router",
			zap.Error(err),
		)
	}

	sprintRouter, err := sprint.NewService(sprint.ServiceOptions{
		SprintManager:  sprintManager,
		ProjectManager: projectManager,
		Logger:         logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize Sprint Service Router",
			zap.Error(err),
		)
	}

	issueRouter, err := issue.NewService(issue.ServiceOptions{
		IssueManager:   issueManager,
		ProjectManager: projectManager,
		Logger:         logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize Issue Service Router",
			zap.Error(err),
		)
	}

	summaryRouter, err := summary.NewService(summary.ServiceOptions{
		SummaryManager: summaryManager,
		ProjectManager: projectManager,
		Logger:         logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize Summary Service Router",
			zap.Error(err),
		)
	}

	rootRouter := chi.NewRouter()

	rootRouter.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{os.Getenv("SITE_URL")},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	rootRouter.Mount("/users", userRouter.Router())
	rootRouter.Mount("/plans", subscriptionRouter.PlansRouter())
	rootRouter.Handle("/webhooks/stripe", stripeWebhook)

	rootRouter.Route("/organizations", func(r chi.Router) {
		r.Use(authManager.Middleware())
		r.Use(burstLimiter.Middleware())

		r.Mount("/", organizationRouter.Router())

		r.Route("/{orgID}", func(d chi.Router) {
			d.Use(organizationRouter.RequireMember())

			d.Mount("/", organizationRouter.DetailRouter())
			d.Mount("/subscription", subscriptionRouter.Router(organizationRouter.RequireAdmin()))
			d.Mount("/usage", usageRouter.Router())

			// everything below counts against the plan quota
			d.Group(func(g chi.Router) {
				g.Use(usageManager.Gate())

				g.Mount("/projects", projectRouter.Router())
				g.Mount("/sprints", sprintRouter.Router(organizationRouter.RequireAdmin()))
				g.Mount("/issues", issueRouter.Router())
				g.Mount("/summaries", summaryRouter.Router())
				g.Mount("/reports", summaryRouter.ReportsRouter())
			})
		})
	})

	rootRouter.HandleFunc("/pprof/*", pprof.Index)
	rootRouter.HandleFunc("/pprof/cmdline", pprof.Cmdline)
	rootRouter.HandleFunc("/pprof/profile", pprof.Profile)
	rootRouter.HandleFunc("/pprof/symbol", pprof.Symbol)
	rootRouter.HandleFunc("/pprof/trace", pprof.Trace)

	rootRouter.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, os.Getenv("SITE_URL"), http.StatusFound)
	})

	srv := &http.Server{
		Handler: rootRouter,
		Addr:    ":42069",
	}

	logger.Info("API started")

	log.Fatalln(srv.ListenAndServe())
}
