package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/yukikurage/team-taskboard/internal/broadcast"
	"github.com/yukikurage/team-taskboard/internal/config"
	"github.com/yukikurage/team-taskboard/internal/constants"
	"github.com/yukikurage/team-taskboard/internal/database"
	"github.com/yukikurage/team-taskboard/internal/repository"
	"github.com/yukikurage/team-taskboard/internal/router"
	"github.com/yukikurage/team-taskboard/internal/services"
	"github.com/yukikurage/team-taskboard/internal/utils"
)

const shutdownTimeout = 30 * time.Second

func runServe(cmd *cobra.Command, opts *rootOptions) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg)
}

func serve(ctx context.Context, cfg *config.Config) error {
	// Set Gin mode
	gin.SetMode(cfg.GinMode)

	// Connect to database
	db, err := database.Connect(cfg.DatabaseURL, !cfg.IsRelease())
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	// Run migrations
	if err := database.Migrate(db); err != nil {
		return err
	}

	hub := broadcast.NewHub(constants.SubscriberBuffer)
	defer hub.Close()

	emitter, closeEmitters, err := buildEmitter(ctx, cfg, hub)
	if err != nil {
		return err
	}
	defer closeEmitters()

	// Initialize AI service
	var suggester services.TaskSuggester
	if cfg.OpenAIAPIKey != "" {
		suggester = services.NewAIService(cfg.OpenAIAPIKey)
	}

	if cfg.JWTSecret == config.Default().JWTSecret {
		log.Println("auth: JWT_SECRET is not set, using the built-in development secret")
	}

	userRepo := repository.NewUserRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	authService := services.NewAuthService(userRepo, utils.NewTokenManager(cfg.JWTSecret, constants.SessionTTL), cfg.AdminEmails)
	taskService := services.NewTaskService(taskRepo, userRepo, emitter, suggester)

	r, err := router.New(router.Deps{
		AuthService:    authService,
		TaskService:    taskService,
		Hub:            hub,
		AllowedOrigins: cfg.AllowedOrigins,
		SecureCookie:   cfg.IsRelease(),
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("Server starting on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	log.Println("Shutting down server...")
	// Event streams never end on their own.
	hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	log.Println("Server stopped")
	return nil
}

// buildEmitter wires the optional Redis relay and AMQP audit queue around
// the local hub. The returned func releases their connections.
func buildEmitter(ctx context.Context, cfg *config.Config, hub *broadcast.Hub) (broadcast.Emitter, func(), error) {
	var primary broadcast.Emitter = hub
	var closers []func()

	if cfg.RedisURL != "" {
		client, err := broadcast.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, func() { _ = client.Close() })

		relay := broadcast.NewRedisRelay(client, hub)
		closers = append(closers, relay.Close)
		// A relay whose subscription ends delivers to the hub directly.
		go func() {
			if err := relay.Run(ctx); err != nil {
				log.Printf("broadcast: redis relay stopped: %v", err)
			}
		}()
		primary = relay
		log.Printf("broadcast: relaying events through redis channel %s", broadcast.RedisChannel)
	}

	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	emitters := []broadcast.Emitter{primary}
	if cfg.AMQPURL != "" {
		publisher, err := broadcast.DialAMQP(cfg.AMQPURL)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, func() { _ = publisher.Close() })
		emitters = append(emitters, publisher)
		log.Printf("broadcast: publishing task events to queue %s", broadcast.AMQPQueue)
	}

	return broadcast.Multi(emitters...), closeAll, nil
}
