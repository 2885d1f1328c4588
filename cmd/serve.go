package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/vaxboard/internal/api"
	"github.com/jon4hz/vaxboard/internal/config"
	"github.com/jon4hz/vaxboard/internal/database"
	"github.com/jon4hz/vaxboard/internal/engine"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the vaxboard server",
	Long:  `Start the vaxboard server. The dataset is loaded in the background if the local cache is still empty.`,
	Example: `vaxboard serve --config config.yml
vaxboard serve -c /path/to/config.yml --log-level debug
`,
	Run: startServer,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func startServer(cmd *cobra.Command, _ []string) {
	cfg, err := config.Load(rootCmdPersistentFlags.ConfigFile)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := database.New(cfg.Database.UsersPath)
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}
	defer db.Close() //nolint:errcheck

	engine, err := engine.New(cfg, db)
	if err != nil {
		log.Fatalf("failed to create engine: %v", err)
	}
	defer engine.Close() //nolint:errcheck

	server, err := api.New(cfg, engine, log.GetLevel() == log.DebugLevel)
	if err != nil {
		log.Fatalf("failed to create API server: %v", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start the engine in a goroutine
	go func() {
		if err := engine.Run(ctx); err != nil {
			log.Error("engine error", "error", err)
		}
	}()

	log.Info("vaxboard started successfully")
	if err := server.Run(ctx); err != nil {
		log.Error("API server error", "error", err)
		stop()
	}
	<-ctx.Done()
	log.Info("shutting down gracefully...")
}

// openEngine loads the config and opens both stores for one-shot commands.
func openEngine() (*engine.Engine, func(), error) {
	cfg, err := config.Load(rootCmdPersistentFlags.ConfigFile)
	if err != nil {
		return nil, nil, err
	}
	db, err := database.New(cfg.Database.UsersPath)
	if err != nil {
		return nil, nil, err
	}
	eng, err := engine.New(cfg, db)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return eng, func() {
		if err := eng.Close(); err != nil {
			log.Error("failed to close engine", "error", err)
		}
		if err := db.Close(); err != nil {
			log.Error("failed to close database", "error", err)
		}
	}, nil
}

