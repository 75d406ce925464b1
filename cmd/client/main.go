// Command client dials a tunnelbroker server's control port and
// serves local TCP ports back to it.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/voidrelay/tunnelbroker/internal/config"
	"github.com/voidrelay/tunnelbroker/internal/tunnelclient"
)

func main() {
	cfg := config.LoadClient()

	var serverAddr string
	var identifier string

	root := &cobra.Command{
		Use:   "client",
		Short: "Run the tunnelbroker client control loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			if serverAddr != "" {
				cfg.ServerAddr = serverAddr
			}
			if identifier != "" {
				id, err := uuid.Parse(identifier)
				if err != nil {
					log.Fatalf("invalid --identifier: %v", err)
				}
				cfg.Identifier = id
			}
			if cfg.Identifier == uuid.Nil {
				log.Fatal("no identifier configured: set TUNNEL_IDENTIFIER or pass --identifier")
			}
			return run(cfg)
		},
	}

	root.Flags().StringVar(&serverAddr, "server", "", "server control address host:port (overrides TUNNEL_SERVER_ADDR)")
	root.Flags().StringVar(&identifier, "identifier", "", "128-bit tunnel user identifier (overrides TUNNEL_IDENTIFIER)")

	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}

func run(cfg *config.ClientConfig) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutting down...")
		cancel()
	}()

	cl := tunnelclient.New(tunnelclient.Config{
		ServerAddr: cfg.ServerAddr,
		Identifier: cfg.Identifier,
	})

	if err := cl.Run(ctx); err != nil {
		log.Fatalf("control loop exited: %v", err)
	}
	return nil
}
