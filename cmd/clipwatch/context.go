package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"clipwatch/internal/api"
	"clipwatch/internal/config"
	"clipwatch/internal/logging"
	"clipwatch/internal/queue"
)

type commandContext struct {
	configFlag  *string
	gatewayFlag *string
	tokenFlag   *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, gatewayFlag, tokenFlag *string) *commandContext {
	return &commandContext{
		configFlag:  configFlag,
		gatewayFlag: gatewayFlag,
		tokenFlag:   tokenFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) gatewayURL() string {
	if c.gatewayFlag != nil {
		if value := strings.TrimRight(strings.TrimSpace(*c.gatewayFlag), "/"); value != "" {
			return value
		}
	}
	cfg, err := c.ensureConfig()
	if err != nil || cfg == nil {
		return "http://" + config.Default().Server.Bind
	}
	return cfg.Recorder.GatewayURL
}

func (c *commandContext) token() string {
	if c.tokenFlag != nil {
		if value := strings.TrimSpace(*c.tokenFlag); value != "" {
			return value
		}
	}
	if cfg, err := c.ensureConfig(); err == nil && cfg != nil {
		return cfg.Server.APIToken
	}
	return ""
}

func (c *commandContext) gatewayClient() *api.Client {
	var opts []api.ClientOption
	if token := c.token(); token != "" {
		opts = append(opts, api.WithToken(token))
	}
	return api.NewClient(c.gatewayURL(), opts...)
}

// withStore opens the job store for local inspection.
func (c *commandContext) withStore(fn func(*queue.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()
	return fn(store)
}

// logger builds a stderr-only logger for long-running commands.
func (c *commandContext) logger(verbose bool) (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	return logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	})
}

func wrapGatewayError(err error, baseURL string) error {
	var httpErr *api.HTTPError
	switch {
	case errors.As(err, &httpErr):
		return err
	case errors.Is(err, syscall.ECONNREFUSED):
		return fmt.Errorf("connect to gateway: %s refused the connection; start it with `clipwatch serve`", baseURL)
	default:
		return fmt.Errorf("gateway request: %w", err)
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
