package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/chative-realty/leadbot/internal/agent/model"
	"github.com/chative-realty/leadbot/internal/agent/repo"
	logx "github.com/chative-realty/leadbot/pkg/logger"
)

const shutdownTimeout = 20 * time.Second

func newRootCmd() *cobra.Command {
	var envFile string
	root := &cobra.Command{
		Use:           "leadbot",
		Short:         "Real-estate lead generation chatbot",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")

	root.AddCommand(newServeCmd(&envFile), newChatCmd(&envFile), newSeedCmd(&envFile))
	return root
}

func newServeCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP chat API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*envFile)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, false)
			if err != nil {
				return err
			}

			srv := &http.Server{
				Addr:              cfg.HTTPAddr,
				Handler:           a.handler().Routes(),
				ReadHeaderTimeout: 10 * time.Second,
				ReadTimeout:       30 * time.Second,
				WriteTimeout:      90 * time.Second,
				IdleTimeout:       120 * time.Second,
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				logx.Info().Str("addr", cfg.HTTPAddr).Str("environment", cfg.Environment.String()).Msg("server listening")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("http server: %w", err)
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				logx.Info().Msg("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				err := srv.Shutdown(shutdownCtx)
				a.close(shutdownCtx)
				return err
			})
			return g.Wait()
		},
	}
}

func newChatCmd(envFile *string) *cobra.Command {
	var (
		agentID   string
		sessionID string
		userName  string
		inMemory  bool
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the bot in the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*envFile)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := newApp(ctx, cfg, inMemory)
			if err != nil {
				return err
			}
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				a.close(closeCtx)
			}()

			agent := model.CommonAgent(cfg.Prompt.BotName)
			if agentID != "" {
				found, err := a.store.GetAgent(ctx, agentID)
				if err != nil {
					return err
				}
				agent = *found
			}
			if sessionID == "" {
				sessionID = uuid.NewString()
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Chatting with %s (session %s). Type /quit to exit.\n", agent.DisplayName(), sessionID)
			scanner := bufio.NewScanner(cmd.InOrStdin())
			for {
				fmt.Fprint(out, "> ")
				if !scanner.Scan() {
					return scanner.Err()
				}
				line := strings.TrimSpace(scanner.Text())
				switch line {
				case "":
					continue
				case "/quit", "/exit":
					return nil
				}

				res, err := a.router.Route(ctx, model.RouteInput{
					SessionID: sessionID,
					Message:   line,
					UserName:  userName,
					Agent:     agent,
				})
				if err != nil {
					fmt.Fprintf(out, "error: %v\n", err)
					continue
				}
				fmt.Fprintf(out, "%s: %s\n", agent.DisplayName(), res.Reply)
				logx.Debug().Strs("steps", res.Steps).Float64("cost_usd", res.CostUSD).Msg("turn")
			}
		},
	}
	cmd.Flags().StringVar(&agentID, "agent", "", "agent id; empty uses the common chatbot")
	cmd.Flags().StringVar(&sessionID, "session", "", "session id to resume")
	cmd.Flags().StringVar(&userName, "name", "", "user display name")
	cmd.Flags().BoolVar(&inMemory, "memory", false, "keep session state in memory instead of Redis")
	return cmd
}

func newSeedCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <fixtures.yaml>",
		Short: "Load agents, listings and knowledge base documents from YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*envFile)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			db, err := cfg.Database.New()
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()
			store, err := repo.NewSQLStore(ctx, db)
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			fx, err := repo.LoadFixtures(f)
			if err != nil {
				return err
			}
			if err := store.Seed(ctx, fx); err != nil {
				return err
			}
			logx.Info().
				Str("file", args[0]).
				Int("agents", len(fx.Agents)).
				Int("properties", len(fx.Properties)).
				Msg("fixtures loaded")
			return nil
		},
	}
}
