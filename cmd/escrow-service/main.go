package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/freelancedao/escrow-service/internal/auth"
	"github.com/freelancedao/escrow-service/internal/config"
	"github.com/freelancedao/escrow-service/internal/db"
	httphandler "github.com/freelancedao/escrow-service/internal/http"
	"github.com/freelancedao/escrow-service/internal/http/middleware"
	"github.com/freelancedao/escrow-service/internal/logger"
	"github.com/freelancedao/escrow-service/internal/model"
)

const shutdownTimeout = 15 * time.Second

func main() {
	rootCmd := &cobra.Command{
		Use:   "escrow-service",
		Short: "Contract and escrow lifecycle service",
		Long: `escrow-service runs the HTTP API for proposals, contracts, milestones
and escrow payments, plus maintenance commands for operators.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(reconcileCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			log := logger.New(cfg.Environment)

			a, err := newApp(cfg, log)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.close(); err != nil {
					log.Error().Err(err).Msg("shutdown incomplete")
				}
			}()

			tokenParser := auth.NewParser(cfg.Auth.AccessSecret)
			handler := httphandler.NewHandler(a.services, log)
			router := httphandler.NewRouter(handler, middleware.Auth(tokenParser), httphandler.RouterConfig{
				Environment:    cfg.Environment,
				AllowedOrigins: cfg.CORS.AllowedOrigins,
				Ready:          a.ready,
			}, log)

			addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
			srv := &http.Server{
				Addr:              addr,
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				log.Info().Str("addr", addr).Msg("starting escrow service")
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("server stopped: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			log.Info().Msg("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			log := logger.New(cfg.Environment)

			database, err := db.New(cfg, log)
			if err != nil {
				return err
			}
			sqlDB, err := database.DB()
			if err != nil {
				return err
			}
			defer sqlDB.Close()

			fmt.Println(color.New(color.FgGreen).Sprint("migrations applied"))
			return nil
		},
	}
}

func reconcileCmd() *cobra.Command {
	var reportPath string

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Copy contract milestones onto jobs that drifted from them",
		Long: `Runs one milestone reconciliation pass over every contract with milestones.
Jobs whose milestones differ from their contract's are overwritten and their
progress recomputed. Running it again right away syncs nothing.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			log := logger.New(cfg.Environment)

			a, err := newApp(cfg, log)
			if err != nil {
				return err
			}
			defer a.close()

			operator := model.Actor{ID: uuid.Nil, Kind: model.ActorAdmin}
			ctx := cmd.Context()

			var summary *model.ReconcileSummary
			if reportPath != "" {
				result, err := a.services.Reports.GenerateReconcileReport(ctx, operator)
				if err != nil {
					return err
				}
				if err := os.WriteFile(reportPath, result.Content, 0o644); err != nil {
					return fmt.Errorf("write report: %w", err)
				}
				summary = result.Summary
			} else {
				summary, err = a.services.Milestones.Reconcile(ctx, operator)
				if err != nil {
					return err
				}
			}

			printSummary(summary)
			if reportPath != "" {
				fmt.Printf("Report: %s\n", reportPath)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&reportPath, "report", "", "write an .xlsx report to this path")
	return cmd
}

func printSummary(s *model.ReconcileSummary) {
	fmt.Printf("Contracts checked: %d\n", s.Total)
	fmt.Printf("  %s %d\n", color.New(color.FgGreen).Sprint("synced:   "), s.Synced)
	fmt.Printf("  %s %d\n", color.New(color.FgBlue).Sprint("unchanged:"), s.Unchanged)
	fmt.Printf("  %s %d\n", color.New(color.FgYellow).Sprint("skipped:  "), s.Skipped)
	fmt.Printf("  %s %d\n", color.New(color.FgRed).Sprint("errors:   "), s.Failed)
	for _, detail := range s.ErrorDetail {
		fmt.Printf("    %s\n", detail)
	}
	fmt.Printf("Took %s\n", s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond))
}

func tokenCmd() *cobra.Command {
	var (
		subject string
		role    string
		email   string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			kind, ok := model.ParseActorKind(role)
			if !ok {
				return fmt.Errorf("unknown role %q", role)
			}
			id := uuid.New()
			if subject != "" {
				if id, err = uuid.Parse(subject); err != nil {
					return fmt.Errorf("invalid subject: %w", err)
				}
			}

			token, err := auth.NewParser(cfg.Auth.AccessSecret).Issue(model.Actor{ID: id, Kind: kind, Email: email}, ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "sub", "", "user id (random when empty)")
	cmd.Flags().StringVar(&role, "role", string(model.ActorClient), "client, freelancer or admin")
	cmd.Flags().StringVar(&email, "email", "", "email claim")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
