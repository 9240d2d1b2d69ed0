// Command admin provides operator utilities: creating the first admin,
// promoting accounts, counter reconciliation and dashboard totals.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"charityfeed/internal/bootstrap"
	"charityfeed/internal/cache"
	"charityfeed/internal/config"
	"charityfeed/internal/featureflags"
	"charityfeed/internal/repository"
	"charityfeed/internal/service"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed)
	bold   = color.New(color.Bold)
)

// app holds the services the subcommands share. It is built once in
// PersistentPreRunE.
type app struct {
	rt         *bootstrap.Runtime
	auth       *service.AuthService
	posts      *service.PostService
	engagement *service.EngagementService
}

var current app

var rootCmd = &cobra.Command{
	Use:           "admin",
	Short:         "Operator utilities for the charity feed",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		rt, err := bootstrap.InitRuntime(cmd.Context(), cfg, bootstrap.Options{ApplySchema: true, SkipStorage: true})
		if err != nil {
			return err
		}

		users := repository.NewUserRepository(rt.DB)
		posts := repository.NewPostRepository(rt.DB)
		engagement := repository.NewEngagementRepository(rt.DB)
		cacheStore := cache.NewStore(rt.Redis)
		auth := service.NewAuthService(users, cacheStore, featureflags.NewManager(cfg.FeatureFlags), service.AuthServiceConfig{
			Secret:   cfg.JWTSecret,
			TokenTTL: time.Duration(cfg.JWTTTLHours) * time.Hour,
		})
		current = app{
			rt:         rt,
			auth:       auth,
			posts:      service.NewPostService(posts, engagement, users, nil, cacheStore, nil, auth, service.PostServiceConfig{}),
			engagement: service.NewEngagementService(engagement, posts, cacheStore, nil),
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
		if current.rt == nil {
			return nil
		}
		return current.rt.Close(cmd.Context())
	},
}

func main() {
	rootCmd.AddCommand(setupCmd(), promoteCmd(), reconcileCmd(), statsCmd())
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		red.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
