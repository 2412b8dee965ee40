package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"speech-practice/config"
	"speech-practice/handlers"
	"speech-practice/observe"
	"speech-practice/pronunciation"
	"speech-practice/services"
	"speech-practice/storage"
	"speech-practice/utils"

	"github.com/spf13/cobra"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd)
	},
}

func init() {
	serveCmd.Flags().Bool("migrate", true, "Run schema migration before serving")
}

func runServe(cmd *cobra.Command) error {
	ctx := cmd.Context()
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	shutdownMetrics, err := observe.InitProvider(ctx, "speech-practice", version)
	if err != nil {
		return fmt.Errorf("failed to init metrics: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = shutdownMetrics(sctx)
	}()

	db, err := openDB(cmd, cfg)
	if err != nil {
		return err
	}
	defer closeDB(db)

	// The bare root command has no --migrate flag and always migrates.
	if doMigrate, err := cmd.Flags().GetBool("migrate"); err != nil || doMigrate {
		if err := migrate(db); err != nil {
			return err
		}
	}

	store, err := storage.NewS3Store(ctx, storage.Config{
		Endpoint:      cfg.S3EndpointURL,
		Region:        cfg.S3Region,
		AccessKey:     cfg.S3AccessKey,
		SecretKey:     cfg.S3SecretKey,
		Bucket:        cfg.S3BucketName,
		PublicBaseURL: cfg.S3PublicBaseURL,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize object storage: %w", err)
	}
	if cfg.S3CreateBucket {
		if err := store.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure bucket: %w", err)
		}
	}

	assessor := pronunciation.NewAzure(pronunciation.AzureConfig{
		Key:     cfg.AzureSpeechKey,
		Region:  cfg.AzureSpeechRegion,
		Timeout: cfg.SpeechAPITimeout,
	})

	registry := services.NewUploadRegistry(cfg.UploadSessionTTL)
	sweeper, err := services.StartUploadSweeper(registry, time.Hour, observe.DefaultMetrics())
	if err != nil {
		return fmt.Errorf("failed to start upload sweeper: %w", err)
	}
	defer func() { _ = sweeper.Shutdown() }()

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	auth := services.NewAuthService(db, services.NewTokenIssuer(cfg.JWTSecretKey, cfg.JWTExpiration, cfg.RefreshTokenTTL))
	if cfg.GoogleTokenLogin {
		auth.SocialVerifier = services.NewGoogleUserInfoVerifier(utils.NewHTTPClient(cfg.SpeechAPITimeout))
	}
	app := handlers.NewApp(handlers.Deps{
		Auth:     auth,
		Users:    services.NewUserService(db),
		Games:    services.NewGameService(db),
		Speeches: services.NewSpeechService(db, store, cfg.SignedURLTTL),
		Tags:     services.NewTagService(db),
		Imports:  services.NewImportService(db, store, registry),
		Scoring:  services.NewScoringService(assessor, "azure", cfg.SpeechLanguage),
		Metrics:  observe.DefaultMetrics(),
		Checkers: []handlers.Checker{
			{Name: "database", Check: sqlDB.PingContext},
			{Name: "storage", Check: store.Ping},
		},

		AllowedOrigins:    cfg.AllowedOrigins,
		GatewayToken:      cfg.GatewayServiceToken,
		AdminUsername:     cfg.AdminUsername,
		AdminPasswordHash: cfg.AdminPasswordHash,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(":" + cfg.Port)
	}()
	log.Printf("✅ Server running on http://localhost:%s", cfg.Port)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	log.Println("Shutting down server...")
	return app.ShutdownWithTimeout(shutdownTimeout)
}
