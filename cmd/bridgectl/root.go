package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	dbembed "github.com/memohai/msgbridge/db"
	"github.com/memohai/msgbridge/internal/auth"
	"github.com/memohai/msgbridge/internal/config"
	"github.com/memohai/msgbridge/internal/db"
	"github.com/memohai/msgbridge/internal/identity"
	"github.com/memohai/msgbridge/internal/logger"
	"github.com/memohai/msgbridge/internal/version"
)

type rootOptions struct {
	configPath string
}

func (o *rootOptions) load() (config.Config, *slog.Logger, error) {
	path := o.configPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, logger.New(os.Stderr, cfg.Log.Level, cfg.Log.Format), nil
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "bridgectl",
		Short:         "Operate the message bridge",
		Version:       version.Get().Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default $CONFIG_PATH or "+config.DefaultConfigPath+")")
	root.SetVersionTemplate("{{.Name}} version {{.Version}}\n")

	root.AddCommand(
		newMigrateCmd(opts),
		newTokenCmd(opts),
		newUserIDCmd(),
		newVersionCmd(),
	)
	return root
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate <" + strings.Join(db.MigrateCommands, "|") + "> [version]",
		Short:     "Apply or roll back database migrations",
		Args:      cobra.RangeArgs(1, 2),
		ValidArgs: db.MigrateCommands,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			return db.RunMigrate(log, cfg.Postgres, dbembed.Migrations(), args[0], args[1:])
		},
	}
}

func newTokenCmd(opts *rootOptions) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a JWT for the admin API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := opts.load()
			if err != nil {
				return err
			}
			if cfg.Admin.JWTSecret == "" {
				return errors.New("admin.jwt_secret is not configured")
			}
			if ttl <= 0 {
				ttl, err = time.ParseDuration(cfg.Admin.JWTExpiresIn)
				if err != nil {
					return fmt.Errorf("invalid admin.jwt_expires_in: %w", err)
				}
			}
			token, expiresAt, err := auth.GenerateToken(subject, cfg.Admin.JWTSecret, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires at %s\n", expiresAt.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "admin", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default admin.jwt_expires_in)")
	return cmd
}

func newUserIDCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "userid <channel> <author>",
		Short: "Print the storage user id for a channel author",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), identity.UserID(args[0], args[1]))
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), version.Get().String())
			return nil
		},
	}
}
