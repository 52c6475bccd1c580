package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"chat_engine/internal/config"
	"chat_engine/internal/domain"
	"chat_engine/internal/middleware"
	"chat_engine/internal/repository"
	"chat_engine/internal/service"
	"chat_engine/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type env struct {
	cfg  *config.Config
	log  logger.Logger
	pool *pgxpool.Pool
}

func (e *env) Close() {
	if e.pool != nil {
		e.pool.Close()
	}
}

func loadEnv(cmd *cobra.Command, withDB bool) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	level, _ := cmd.Flags().GetString("log-level")
	if level == "" {
		level = cfg.Log.Level
	}
	e := &env{cfg: cfg, log: logger.New(level)}
	if !withDB {
		return e, nil
	}

	pool, err := pgxpool.New(cmd.Context(), cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(cmd.Context()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	e.pool = pool
	return e, nil
}

func (e *env) retention() (service.RetentionService, error) {
	services, err := service.NewServices(service.Dependencies{
		Store:  repository.NewPostgresStore(e.pool, e.log),
		Config: e.cfg.Chat,
	}, e.log)
	if err != nil {
		return nil, err
	}
	return services.Retention, nil
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "chatctl",
		Short:         "Operator tool for the chat engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("log-level", "", "override LOG_LEVEL")

	root.AddCommand(
		newMigrateCmd(),
		newPurgeCmd(),
		newCleanupCmd(),
		newConfigCmd(),
		newTokenCmd(),
	)
	return root
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd, true)
			if err != nil {
				return err
			}
			defer e.Close()

			if err := repository.Migrate(cmd.Context(), e.pool); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		},
	}
}

type purgeTarget struct {
	use   string
	short string
	days  func(cfg config.RetentionConfig) *int
	run   func(ctx context.Context, r service.RetentionService, days int) (int64, error)
}

var purgeTargets = []purgeTarget{
	{
		use:   "deleted-messages",
		short: "Hard-delete messages soft-deleted more than --days ago",
		days:  func(cfg config.RetentionConfig) *int { return cfg.DeletedMessagesDays },
		run: func(ctx context.Context, r service.RetentionService, days int) (int64, error) {
			return r.PurgeDeletedMessages(ctx, days)
		},
	},
	{
		use:   "deliveries",
		short: "Remove delivery records older than --days",
		days:  func(cfg config.RetentionConfig) *int { return cfg.DeliveryRecordsDays },
		run: func(ctx context.Context, r service.RetentionService, days int) (int64, error) {
			return r.PurgeOldDeliveries(ctx, days)
		},
	},
	{
		use:   "versions",
		short: "Remove message versions older than --days",
		days:  func(cfg config.RetentionConfig) *int { return cfg.VersionsDays },
		run: func(ctx context.Context, r service.RetentionService, days int) (int64, error) {
			return r.PurgeOldVersions(ctx, days)
		},
	},
}

func newPurgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Run a single retention purge",
	}

	for _, target := range purgeTargets {
		target := target
		sub := &cobra.Command{
			Use:   target.use,
			Short: target.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				e, err := loadEnv(cmd, true)
				if err != nil {
					return err
				}
				defer e.Close()

				days, _ := cmd.Flags().GetInt("days")
				if !cmd.Flags().Changed("days") {
					configured := target.days(e.cfg.Chat.Retention)
					if configured == nil {
						return fmt.Errorf("retention for %s is not configured, pass --days", target.use)
					}
					days = *configured
				}
				if days < 0 {
					return fmt.Errorf("invalid --days value: %d", days)
				}

				r, err := e.retention()
				if err != nil {
					return err
				}
				n, err := target.run(cmd.Context(), r, days)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d removed\n", target.use, n)
				return nil
			},
		}
		sub.Flags().Int("days", 0, "age threshold in days (defaults to the configured value)")
		cmd.AddCommand(sub)
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "orphaned-deletions",
		Short: "Remove per-actor deletions of messages that no longer exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd, true)
			if err != nil {
				return err
			}
			defer e.Close()

			r, err := e.retention()
			if err != nil {
				return err
			}
			n, err := r.PurgeOrphanedDeletions(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "orphaned-deletions: %d removed\n", n)
			return nil
		},
	})
	return cmd
}

func newCleanupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Run every configured retention purge",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd, true)
			if err != nil {
				return err
			}
			defer e.Close()

			r, err := e.retention()
			if err != nil {
				return err
			}
			results, err := r.RunCleanup(cmd.Context())
			if err != nil {
				return err
			}

			asJSON, _ := cmd.Flags().GetBool("json")
			return printResults(cmd, results, asJSON)
		},
	}
	cmd.Flags().Bool("json", false, "output results as JSON")
	return cmd
}

func printResults(cmd *cobra.Command, results map[string]int64, asJSON bool) error {
	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	keys := make([]string, 0, len(results))
	for k := range results {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(out, "%-20s %d\n", k, results[k])
	}
	return nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective chat configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd, false)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(map[string]config.ChatConfig{"chat": e.cfg.Chat})
		},
	}
}

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token <type:id>",
		Short: "Issue an access token for an actor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := domain.ParseActor(args[0])
			if err != nil {
				return err
			}
			e, err := loadEnv(cmd, false)
			if err != nil {
				return err
			}
			ttl, _ := cmd.Flags().GetDuration("ttl")
			if ttl <= 0 {
				ttl = e.cfg.JWT.AccessTTL
			}

			auth := middleware.NewAuthMiddleware(e.cfg.JWT.AccessSecret, e.cfg.JWT.Issuer, e.cfg.JWT.DefaultActorType, e.log)
			token, err := auth.IssueToken(actor, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().Duration("ttl", time.Duration(0), "token lifetime (defaults to JWT_ACCESS_TTL)")
	return cmd
}
