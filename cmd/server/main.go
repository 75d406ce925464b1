// Command server runs the rendezvous-engine control/tunnel listeners
// alongside the read-only admin observability plane.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/voidrelay/tunnelbroker/internal/adminapi"
	"github.com/voidrelay/tunnelbroker/internal/config"
	"github.com/voidrelay/tunnelbroker/internal/configstore"
	"github.com/voidrelay/tunnelbroker/internal/database"
	"github.com/voidrelay/tunnelbroker/internal/tunnelserver"
)

func main() {
	cfg := config.LoadServer()

	var controlPort int
	var adminPort string
	var configDSN string
	var seedFile string

	root := &cobra.Command{
		Use:   "server",
		Short: "Run the tunnelbroker rendezvous engine and admin API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if controlPort != 0 {
				cfg.ControlPort = controlPort
			}
			if adminPort != "" {
				cfg.AdminPort = adminPort
			}
			if configDSN != "" {
				cfg.ConfigStoreDSN = configDSN
			}
			if seedFile != "" {
				cfg.SeedFile = seedFile
			}
			return run(cfg)
		},
	}

	root.Flags().IntVar(&controlPort, "control-port", 0, "control listener port (overrides CONTROL_PORT)")
	root.Flags().StringVar(&adminPort, "admin-port", "", "admin HTTP port (overrides ADMIN_PORT)")
	root.Flags().StringVar(&configDSN, "config-dsn", "", "tunnel-user config store DSN (overrides CONFIG_STORE_DSN)")
	root.Flags().StringVar(&seedFile, "seed-file", "", "YAML seed file for first boot (overrides CONFIG_SEED_FILE)")

	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}

func run(cfg *config.ServerConfig) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := configstore.Open(ctx, cfg.ConfigStoreDSN)
	if err != nil {
		log.Fatalf("open config store: %v", err)
	}
	defer store.Close()

	if sqliteStore, ok := store.(*configstore.SQLiteStore); ok && cfg.SeedFile != "" {
		seed, err := configstore.LoadSeedFile(cfg.SeedFile)
		if err != nil {
			log.Fatalf("load seed file: %v", err)
		}
		if err := sqliteStore.SeedFromYAML(ctx, seed); err != nil {
			log.Fatalf("seed config store: %v", err)
		}
	}

	users, err := store.Load(ctx)
	if err != nil {
		log.Fatalf("load tunnel users: %v", err)
	}
	log.Printf("loaded %d tunnel user(s)", len(users))

	if err := database.Connect(cfg.OperatorDatabaseURL); err != nil {
		log.Printf("operator database unavailable, admin auth will fail until it is: %v", err)
	} else {
		defer database.Close()
		if err := database.RunMigrations(); err != nil {
			log.Fatalf("run operator-account migrations: %v", err)
		}
	}

	engine := tunnelserver.New(cfg.ControlPort, users)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutting down...")
		cancel()
	}()

	go adminapi.RefreshMetrics(ctx, engine)

	router := adminapi.NewRouter(cfg, engine)
	go func() {
		addr := cfg.AdminHost + ":" + cfg.AdminPort
		log.Printf("admin API listening on %s", addr)
		if err := router.Run(addr); err != nil {
			log.Printf("admin API stopped: %v", err)
		}
	}()

	log.Printf("rendezvous engine listening on control port %d", cfg.ControlPort)
	return engine.Run(ctx)
}
