package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sameehj/xweb/internal/db"
	"github.com/sameehj/xweb/pkg/api"
	"github.com/sameehj/xweb/pkg/config"
	"github.com/sameehj/xweb/pkg/diagnostics"
	"github.com/sameehj/xweb/pkg/env"
	"github.com/sameehj/xweb/pkg/exec"
	"github.com/sameehj/xweb/pkg/files"
	"github.com/sameehj/xweb/pkg/gateway"
	"github.com/sameehj/xweb/pkg/irc"
	"github.com/sameehj/xweb/pkg/rss"
	"github.com/sameehj/xweb/pkg/runtime/logging"
	"github.com/sameehj/xweb/pkg/session"
	"github.com/sameehj/xweb/pkg/social"
	"github.com/sameehj/xweb/pkg/version"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var cfgFile string

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "xweb",
		Short:         "xweb dashboard server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.xweb/config.yaml)")

	root.AddCommand(serveCmd())
	root.AddCommand(execCmd())
	root.AddCommand(versionCmd())
	return root
}

func serveCmd() *cobra.Command {
	var addr string
	var maxSessions int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the dashboard and its command channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Address = addr
			}
			if maxSessions > 0 {
				cfg.Server.MaxSessions = maxSessions
			}
			logger := logging.New(cfg.LogLevel, cfg.LogFormat)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address")
	cmd.Flags().IntVar(&maxSessions, "max-sessions", 0, "maximum concurrent channel connections (0 = unlimited)")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	executor := newExecutor(cfg)
	executor.SetLogger(logger)

	channel := gateway.NewServer(executor, session.NewRegistry())
	channel.SetLogger(logger)
	channel.SetQueueSize(cfg.Exec.QueueSize)
	channel.SetMaxSessions(cfg.Server.MaxSessions)

	chat := irc.NewManager(cfg.IRC.HistoryLimit)
	chat.SetLogger(logger)
	defer chat.Disconnect()
	channel.Handle("irc", ircHandler(chat))

	store, err := db.Open(ctx, cfg.RSS.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := db.ApplyMigrations(ctx, store.DB()); err != nil {
		return err
	}
	reader := rss.NewReader(store, nil)
	reader.SetLogger(logger)
	subs := make([]rss.Subscription, 0, len(cfg.RSS.Seed))
	for _, s := range cfg.RSS.Seed {
		subs = append(subs, rss.Subscription{Name: s.Name, URL: s.URL})
	}
	if err := reader.Seed(ctx, subs...); err != nil {
		return fmt.Errorf("seed feeds: %w", err)
	}
	go func() {
		if err := reader.Run(ctx, cfg.RSS.RefreshInterval.Std()); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("rss_refresh_stopped", "error", err)
		}
	}()

	workspace, err := files.NewWorkspace(cfg.Workspace.Root, cfg.Workspace.MaxFileSize, cfg.Workspace.MaxDepth)
	if err != nil {
		return err
	}

	router := api.NewRouter(api.Services{
		Channel:     channel,
		Sessions:    channel.Registry(),
		Feeds:       reader,
		IRC:         chat,
		Social:      social.NewService(),
		Diagnostics: diagnostics.NewCollector(executor),
		Files:       workspace,
		StaticDir:   cfg.Server.StaticDir,
		Logger:      logger,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	logger.Info("server_listening", "addr", cfg.Server.Address, "version", version.Version,
		"shell", fmt.Sprint(executor.Interpreter), "workspace", workspace.Root())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("server_shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err = srv.Shutdown(shutdownCtx)
	if cerr := channel.Close(); cerr != nil {
		logger.Warn("channel_close_failed", "error", cerr)
	}
	return err
}

func execCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exec <command>",
		Short: "Run one command through the sanitizer and bounded executor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			executor := newExecutor(cfg)
			executor.SetLogger(logging.NewWithWriter(cmd.ErrOrStderr(), cfg.LogLevel, "text"))

			outcome := executor.Execute(exec.Sanitize(args[0]))
			fmt.Fprint(cmd.OutOrStdout(), outcome.Text())
			if outcome.Status != exec.StatusSuccess {
				return fmt.Errorf("command %s", outcome.Status)
			}
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}

// loadConfig reads .env from the working directory, then the config file.
func loadConfig() (*config.Config, error) {
	if cwd, err := os.Getwd(); err == nil {
		if _, err := env.LoadFromDir(cwd); err != nil {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}
	return config.LoadConfig(configPath(cfgFile))
}

// configPath falls back to the default location only when a file exists there.
func configPath(flag string) string {
	if flag != "" {
		return flag
	}
	path := config.DefaultConfigPath()
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return ""
}

func newExecutor(cfg *config.Config) *exec.Executor {
	var shell exec.Interpreter = exec.DefaultShell()
	if cfg.Exec.Shell != "" {
		shell = exec.ParseShell(cfg.Exec.Shell)
	}
	return &exec.Executor{
		Timeout:     cfg.Exec.Timeout.Std(),
		MaxOutput:   cfg.Exec.MaxOutput,
		KillGrace:   cfg.Exec.KillGrace.Std(),
		Interpreter: shell,
	}
}

type ircRequest struct {
	Channel string `json:"channel"`
}

type ircReply struct {
	Type string  `json:"type"`
	Data ircData `json:"data"`
}

type ircData struct {
	Channel  string        `json:"channel,omitempty"`
	Channels []irc.Channel `json:"channels"`
	Messages []irc.Message `json:"messages"`
}

// ircHandler answers {"type":"irc"} envelopes with the channel history.
func ircHandler(m *irc.Manager) gateway.HandlerFunc {
	return func(ctx context.Context, payload json.RawMessage) (any, error) {
		var req ircRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, err
		}
		data := ircData{Channel: req.Channel, Channels: m.Channels(), Messages: []irc.Message{}}
		if req.Channel != "" {
			data.Messages = m.Messages(req.Channel)
		}
		return ircReply{Type: "irc", Data: data}, nil
	}
}
