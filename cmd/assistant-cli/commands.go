package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/app"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/assistant"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/auth"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/ingest"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/storage"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/pkg/client"
)

func openApp(ctx context.Context, opts app.Options) (*app.App, error) {
	a, err := app.New(ctx, cfg, logger, opts)
	if err != nil {
		return nil, fmt.Errorf("initialize assistant: %w", err)
	}
	return a, nil
}

func parseUser(raw string) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid --user: %w", err)
	}
	return &id, nil
}

func newQueryCmd() *cobra.Command {
	var (
		hint   string
		user   string
		server string
		token  string
	)

	cmd := &cobra.Command{
		Use:   "query [question]",
		Short: "Ask a shopping question",
		Long: `Query classifies the question, runs the matching retrieval procedure and
prints the fused context. With --server the question is sent to a running API.`,
		Example: `  assistant-cli query "compare iphone 15 vs samsung s24"
  assistant-cli query --user 6f1c... "where is my order"
  assistant-cli query --server http://localhost:8085 "best gaming laptop under 1 lakh"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()

			question := strings.Join(args, " ")
			userID, err := parseUser(user)
			if err != nil {
				return err
			}

			spin := ui.NewSpinner("Retrieving context")
			spin.Start()
			fc, latency, err := runQuery(ctx, question, hint, userID, server, token)
			spin.Stop()
			if err != nil {
				return err
			}

			if outputJSON {
				return printJSON(cmd, fc)
			}
			renderContext(ui, fc, latency)
			return nil
		},
	}

	cmd.Flags().StringVar(&hint, "hint", "", "intent hint (e.g. product_comparison)")
	cmd.Flags().StringVar(&user, "user", "", "caller user ID")
	cmd.Flags().StringVar(&server, "server", "", "API base URL; runs locally when empty")
	cmd.Flags().StringVar(&token, "token", "", "bearer token for --server")
	return cmd
}

func runQuery(ctx context.Context, question, hint string, userID *uuid.UUID, server, token string) (client.Context, int64, error) {
	if server != "" {
		cc := client.Config{BaseURL: server, Token: token}
		if userID != nil {
			cc.UserID = userID.String()
		}
		resp, err := client.New(cc).Query(ctx, client.QueryRequest{Query: question, IntentHint: hint})
		if err != nil {
			return client.Context{}, 0, err
		}
		return resp.Context, resp.LatencyMs, nil
	}

	a, err := openApp(ctx, app.Options{WarmIndex: cfg.Vector.Adapter == "memory"})
	if err != nil {
		return client.Context{}, 0, err
	}
	defer a.Close()

	start := time.Now()
	fc, err := a.Service.Query(ctx, assistant.Request{Query: question, IntentHint: hint, UserID: userID})
	if err != nil {
		return client.Context{}, 0, err
	}
	out, err := toClientContext(fc)
	return out, time.Since(start).Milliseconds(), err
}

func newSeedCmd() *cobra.Command {
	var (
		file      string
		skipIndex bool
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load products, users and orders from a YAML seed",
		Long: `Seed applies pending migrations, upserts the seed's products and users,
creates its orders and embeds everything into the vector index. Without
--file the bundled demo catalog is loaded.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			defer cancel()

			a, err := openApp(ctx, app.Options{AutoMigrate: true})
			if err != nil {
				return err
			}
			defer a.Close()

			report, finish := ui.NewProgress("Indexing")
			req := ingest.IngestionRequest{Path: file, SkipIndex: skipIndex, Progress: report}
			if file == "" {
				req.Source = ingest.DemoCatalog()
			}

			res, err := a.Ingest.Ingest(ctx, req)
			finish()
			if err != nil {
				return err
			}

			if outputJSON {
				return printJSON(cmd, res)
			}
			ui.Success("Seed loaded in %s", res.Duration.Round(time.Millisecond))
			ui.Table([]string{"PRODUCTS", "USERS", "ORDERS NEW", "ORDERS EXISTING", "INDEXED"}, [][]string{{
				fmt.Sprint(res.ProductsLoaded), fmt.Sprint(res.UsersLoaded),
				fmt.Sprint(res.OrdersCreated), fmt.Sprint(res.OrdersExisting),
				fmt.Sprint(res.Indexed.Products + res.Indexed.Orders),
			}})
			for _, e := range res.Errors {
				ui.Warning("Skipped %s", e)
			}
			if cfg.Vector.Adapter == "memory" && !skipIndex {
				ui.Info("The memory vector adapter does not persist; servers rebuild the index at startup")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "seed YAML file (default: bundled demo catalog)")
	cmd.Flags().BoolVar(&skipIndex, "skip-index", false, "do not embed the loaded entities")
	return cmd
}

func newReindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild product and order embeddings",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
			defer cancel()

			a, err := openApp(ctx, app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()

			report, finish := ui.NewProgress("Reindexing")
			stats, err := a.Reindex(ctx, report)
			finish()
			if err != nil {
				return err
			}

			if outputJSON {
				return printJSON(cmd, stats)
			}
			ui.Success("Indexed %d products and %d orders", stats.Products, stats.Orders)
			if stats.Skipped > 0 {
				ui.Warning("%d entities produced zero embeddings and were skipped", stats.Skipped)
			}
			return nil
		},
	}
}

func newMigrateCmd() *cobra.Command {
	var status bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()

			db, err := app.OpenDB(ctx, cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			migrator := storage.NewMigrator(db, cfg.Database.Driver)

			if status {
				st, err := migrator.Status(ctx)
				if err != nil {
					return err
				}
				if outputJSON {
					return printJSON(cmd, st)
				}
				ui.KeyValue("Applied", strings.Join(st.Applied, ", "))
				ui.KeyValue("Pending", strings.Join(st.Pending, ", "))
				return nil
			}

			applied, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			if outputJSON {
				return printJSON(cmd, map[string]interface{}{"applied": applied})
			}
			if len(applied) == 0 {
				ui.Info("Database is up to date")
				return nil
			}
			ui.Success("Applied %s on %s", strings.Join(applied, ", "), cfg.Database.Driver)
			return nil
		},
	}

	cmd.Flags().BoolVar(&status, "status", false, "show applied and pending migrations only")
	return cmd
}

func newTokenCmd() *cobra.Command {
	var (
		user string
		ttl  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed JWT bearer token for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Auth.SigningSecret == "" {
				return errors.New("auth.signing_secret (or AUTH_SIGNING_SECRET) is not set")
			}
			userID, err := parseUser(user)
			if err != nil {
				return err
			}
			if userID == nil {
				return errors.New("--user is required")
			}

			token, err := auth.NewSigner(cfg.Auth.SigningSecret).Sign(*userID, ttl)
			if err != nil {
				return err
			}
			if outputJSON {
				return printJSON(cmd, map[string]string{"token": token, "expiresIn": ttl.String()})
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "user ID to issue the token for")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
