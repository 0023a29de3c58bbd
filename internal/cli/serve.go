package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/rflorenc/shop-migration-workbench/internal/api"
	"github.com/rflorenc/shop-migration-workbench/internal/config"
	"github.com/rflorenc/shop-migration-workbench/internal/history"
	"github.com/rflorenc/shop-migration-workbench/internal/migration"
	"github.com/rflorenc/shop-migration-workbench/internal/models"
	"github.com/rflorenc/shop-migration-workbench/internal/platform"
)

func newServeCmd(g *globalOptions) *cobra.Command {
	var listen, historyDB string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Starts the HTTP API. Shops listed in the config file are loaded as
connections and checked once at startup.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("listen") {
				cfg.Listen = listen
			}
			if cmd.Flags().Changed("history-db") {
				cfg.HistoryDB = historyDB
			}

			out := cmd.OutOrStdout()
			server, err := buildServer(cmd.Context(), cfg, out)
			if err != nil {
				return err
			}
			if server.History != nil {
				defer server.History.Close()
			}

			fmt.Fprintf(out, "Shop Migration Workbench %s starting on %s\n", version, cfg.Listen)
			return http.ListenAndServe(cfg.Listen, api.NewRouter(server))
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address")
	cmd.Flags().StringVar(&historyDB, "history-db", "", "Path to the run archive database")
	return cmd
}

// buildServer wires the API server and loads the configured shops as
// connections, checking each one.
func buildServer(ctx context.Context, cfg *config.Config, out io.Writer) (*api.Server, error) {
	requester := platform.NewRequester(cfg.PlatformOptions())
	server := &api.Server{
		Connections: models.NewConnectionStore(),
		Jobs:        models.NewJobStore(),
		Conflicts:   api.NewConflictStore(),
		Runner:      migration.NewRunner(requester, cfg.APIVersion),
	}

	if cfg.HistoryDB != "" {
		store, err := history.Open(cfg.HistoryDB)
		if err != nil {
			return nil, fmt.Errorf("opening run archive: %w", err)
		}
		server.History = store
		fmt.Fprintf(out, "Run archive: %s\n", store.Path())
	}
	if cfg.ProxyURL != "" {
		fmt.Fprintf(out, "Relaying shop requests through %s\n", cfg.ProxyURL)
	}

	for _, sc := range cfg.Shops {
		conn := &models.Connection{Name: sc.Name, Role: sc.Role, URL: sc.URL, Token: sc.Token}
		if conn.Role == "" {
			conn.Role = "source"
		}
		server.Connections.Create(conn)
		fmt.Fprintf(out, "Loaded shop: %s (%s)\n", conn.Name, conn.Host())

		if conn.Token == "" {
			server.Connections.SetHealth(conn.ID, "error", "no token configured", "")
			fmt.Fprintf(out, "  CHECK: %s: no token configured (set %s)\n", conn.Name, config.TokenEnv(conn.Name))
			continue
		}
		_ = platform.CheckAndStore(ctx, server.Runner.Sessions(conn.Shop()), conn, server.Connections)
	}
	return server, nil
}
