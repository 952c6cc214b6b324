package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/leonvanzyl/autocoder-chat/internal/conversations"
	"github.com/leonvanzyl/autocoder-chat/internal/infrastructure/config"
	"github.com/leonvanzyl/autocoder-chat/internal/infrastructure/logging"
	"github.com/leonvanzyl/autocoder-chat/internal/infrastructure/monitoring"
)

// cli holds flag values and the dependencies built from them
type cli struct {
	baseURL     string
	logLevel    string
	dev         bool
	metricsAddr string
	token       string

	cfg     *config.Config
	log     *logging.Logger
	logger  *zap.Logger
	metrics *monitoring.Metrics
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "chatclient",
		Short: "Talk to an autocoder project from the terminal",
		Long: `chatclient opens realtime chat sessions against an autocoder server.

Sessions:
  assistant   ask questions about a project, with saved conversations
  expand      let the agent add features to an existing project
  features    review feature suggestions one by one

Configuration is read from the environment (CHAT_BASE_URL, LOG_LEVEL, ...)
and can be overridden with flags.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.log != nil {
				c.log.Close()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.baseURL, "base-url", "", "Chat server address (overrides CHAT_BASE_URL)")
	flags.StringVar(&c.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")
	flags.BoolVar(&c.dev, "dev", false, "Development logging")
	flags.StringVar(&c.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	flags.StringVar(&c.token, "token", "", "Bearer token for the conversation API (overrides CHAT_API_TOKEN)")

	root.AddCommand(
		c.sessionCmd(featureAssistant),
		c.sessionCmd(featureExpand),
		c.sessionCmd(featureFeatures),
		c.conversationsCmd(),
	)
	return root
}

// setup loads configuration, applies flag overrides and builds the logger
func (c *cli) setup(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("base-url") {
		cfg.Server.BaseURL = c.baseURL
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = c.logLevel
	}
	if flags.Changed("dev") {
		cfg.Logging.Development = c.dev
	}
	if flags.Changed("metrics-addr") {
		cfg.Metrics.Address = c.metricsAddr
	}
	if flags.Changed("token") {
		cfg.REST.AuthToken = c.token
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.Development = cfg.Logging.Development
	logger, err := logging.New(logCfg)
	if err != nil {
		return err
	}

	c.cfg = cfg
	c.log = logger
	c.logger = logger.Logger
	c.metrics = monitoring.NewMetrics()
	return nil
}

func (c *cli) conversationClient() *conversations.Client {
	return conversations.NewClient(conversations.Options{
		BaseURL:           c.cfg.Server.BaseURL,
		Timeout:           c.cfg.REST.Timeout,
		RetryMax:          c.cfg.REST.RetryMax,
		RetryWaitMin:      c.cfg.REST.RetryWaitMin,
		RetryWaitMax:      c.cfg.REST.RetryWaitMax,
		RequestsPerSecond: c.cfg.REST.RequestsPerSecond,
		AuthToken:         c.cfg.REST.AuthToken,
		BreakerThreshold:  c.cfg.REST.BreakerThreshold,
		BreakerTimeout:    c.cfg.REST.BreakerTimeout,
		Logger:            c.logger,
		Metrics:           c.metrics,
	})
}

// run executes fn alongside the metrics listener, if one is configured.
// The listener stops when fn returns.
func (c *cli) run(ctx context.Context, fn func(ctx context.Context) error) error {
	if c.cfg.Metrics.Address == "" {
		return fn(ctx)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	srv := &http.Server{
		Addr:              c.cfg.Metrics.Address,
		Handler:           c.metrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c.logger.Info("serving metrics", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics listener: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
		defer done()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		defer cancel()
		return fn(ctx)
	})
	return g.Wait()
}
