package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/mail"
	"os"
	"os/signal"
	"syscall"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"ticketing/config"
	"ticketing/internal/handlers"
	"ticketing/internal/notify"
	"ticketing/internal/qr"
	"ticketing/internal/services"
	"ticketing/internal/store"
	_ "ticketing/migrations"
	"ticketing/monitoring"
	"ticketing/security"
	"ticketing/utils"
)

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize the ticketing database
	st, err := store.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return err
	}
	defer st.Close()

	// Initialize Redis; the service runs without it
	var redisClient redis.Cmdable
	if cfg.RedisURL != "" {
		client, err := utils.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer client.Close()
		redisClient = client
	} else {
		slog.Warn("REDIS_URL is not set; caching, rate limiting and the bookable event set are disabled")
	}

	// Notification channels
	channels := []notify.Channel{
		notify.NewEmailChannel(app.NewMailClient, mail.Address{Name: cfg.MailFromName, Address: cfg.MailFromAddress}),
	}
	if cfg.PubNubEnabled() {
		pub := notify.NewPubNubPublisher(cfg.PubNubPublishKey, cfg.PubNubSubscribeKey, cfg.PubNubSecretKey, "ticketing-server")
		channels = append(channels, notify.NewPushChannel(pub))
	}
	dispatcher := notify.NewDispatcher(cfg.NotifyTimeout, channels...)
	defer dispatcher.Wait()

	tokens, err := security.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		return fmt.Errorf("JWT_SECRET: %w", err)
	}
	signer, err := qr.NewSigner(cfg.AppSecret)
	if err != nil {
		return fmt.Errorf("APP_SECRET: %w", err)
	}

	// Initialize services
	authService := services.NewAuthService(st, tokens, dispatcher, cfg.OTPTTL)
	userService := services.NewUserService(st, dispatcher, cfg.OTPTTL)
	categoryService := services.NewCategoryService(st, redisClient, cfg.CategoryCacheTTL)
	eventService := services.NewEventService(st, redisClient, dispatcher)
	ticketTypeService := services.NewTicketTypeService(st)
	orderService := services.NewOrderService(st, signer, dispatcher)
	ticketService := services.NewTicketService(st, signer, dispatcher)
	uploadService := services.NewUploadService(st, services.NewPocketBaseFiles(app.NewFilesystem), cfg.UploadMaxBytes)
	dashboardService := services.NewDashboardService(st)

	api := &handlers.API{
		Auth:          handlers.NewAuthHandler(authService),
		Events:        handlers.NewEventHandler(eventService),
		Categories:    handlers.NewCategoryHandler(categoryService),
		TicketTypes:   handlers.NewTicketTypeHandler(ticketTypeService),
		Orders:        handlers.NewOrderHandler(orderService),
		Tickets:       handlers.NewTicketHandler(ticketService),
		Users:         handlers.NewUserHandler(userService),
		Uploads:       handlers.NewUploadHandler(uploadService),
		Admin:         handlers.NewAdminHandler(dashboardService, st, redisClient),
		Authenticator: security.NewAuthenticator(tokens, authService),
		EnableMetrics: cfg.EnableMetrics,
	}
	if redisClient != nil {
		api.Limiter = security.NewRateLimiter(redisClient, cfg.RateLimitPerMinute)
	}

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: true,
	})
	app.RootCmd.AddCommand(createAdminCommand(userService))

	// Default to serving on the configured port when started without arguments
	if len(os.Args) == 1 {
		app.RootCmd.SetArgs([]string{"serve", "--http", "0.0.0.0:" + cfg.Port})
	}

	// Setup graceful shutdown
	go handleShutdown(cancel)

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		if err := eventService.SyncBookable(ctx); err != nil {
			slog.Error("Failed to sync bookable events", "error", err)
		}
		if redisClient != nil && cfg.EnableMetrics {
			go monitoring.NewMonitor(redisClient).Run(ctx)
		}

		api.Register(e.Router)
		log.Println("Server routes registered")

		return e.Next()
	})

	app.OnTerminate().BindFunc(func(e *core.TerminateEvent) error {
		cancel()
		return e.Next()
	})

	// Start server
	return app.Start()
}

// createAdminCommand bootstraps the first administrator account.
func createAdminCommand(users *services.UserService) *cobra.Command {
	var name, email, password string

	c := &cobra.Command{
		Use:          "create-admin",
		Short:        "Creates a verified administrator account",
		SilenceUsage: true,
		RunE: func(c *cobra.Command, _ []string) error {
			if email == "" || password == "" {
				return errors.New("--email and --password are required")
			}
			u, err := users.CreateAdmin(c.Context(), name, email, password)
			if err != nil {
				return err
			}
			log.Printf("Administrator %s created with id %s", u.Email, u.ID)
			return nil
		},
	}
	c.Flags().StringVar(&name, "name", "Administrator", "display name")
	c.Flags().StringVar(&email, "email", "", "login email")
	c.Flags().StringVar(&password, "password", "", "login password")
	return c
}

// handleShutdown handles graceful shutdown
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")
	cancel()
}
