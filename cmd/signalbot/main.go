package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"signalbot/internal/audit"
	"signalbot/internal/config"
	"signalbot/internal/domain"
	"signalbot/internal/metrics"
	"signalbot/internal/sender"
	"signalbot/internal/transport"

	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = newLogger("info")

	root := &cobra.Command{
		Use:     "signalbot",
		Short:   "Send Signal bot replies, reactions and read receipts",
		Long:    "signalbot builds signald payloads for bot replies and delivers them over a socket, WebSocket bridge or Redis.",
		Version: version,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json or config.yaml (default: ~/.signalbot/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(sendCmd())
	root.AddCommand(reactCmd())
	root.AddCommand(readCmd())
	root.AddCommand(relayCmd())
	root.AddCommand(auditCmd())
	root.AddCommand(configCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

func loadConfig() (*config.Config, error) {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger = newLogger(cfg.Bot.LogLevel)
	return cfg, nil
}

// runtime bundles what every sending command needs.
type runtime struct {
	cfg       *config.Config
	transport domain.Transport
	sender    *sender.MessageSender
	auditLog  *audit.SQLiteLog
}

func openRuntime(cfg *config.Config) (*runtime, error) {
	rt := &runtime{cfg: cfg}
	opts := transport.Options{Logger: logger}

	if cfg.Audit.Enabled {
		l, err := audit.Open(cfg.Audit.DBPath, logger)
		if err != nil {
			return nil, err
		}
		rt.auditLog = l
		opts.Recorder = l
	}
	if cfg.Metrics.Enabled {
		opts.Collector = metrics.Default
	}

	t, err := transport.New(cfg.Transport, opts)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.transport = t
	rt.sender = sender.New(cfg.Bot.Username, t, logger)
	return rt, nil
}

func (rt *runtime) Close() {
	if rt.transport != nil {
		if err := rt.transport.Close(); err != nil {
			logger.Debug("transport close", "err", err)
		}
	}
	if rt.auditLog != nil {
		rt.auditLog.Close()
	}
}

func initCmd() *cobra.Command {
	var username string
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			if _, err := os.Stat(cfgPath); err == nil && !force {
				return fmt.Errorf("config already exists at %s (use --force to overwrite)", cfgPath)
			}
			cfg := config.Defaults()
			cfg.Bot.Username = username
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath)
			if username == "" {
				logger.Warn("bot.username is empty; set it with: signalbot config set bot.username +15550000000")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "the bot's Signal number")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and modify configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get [path]",
		Short: "Get a config value (e.g. transport.kind)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			val, err := config.GetByPath(config.Sanitize(cfg), args[0])
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(val, "", "  ")
			if err != nil {
				return fmt.Errorf("encode value: %w", err)
			}
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set [path] [value]",
		Short: "Set a config value (e.g. transport.kind redis)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			// Load without validation so an incomplete config can be fixed.
			cfg, err := config.LoadUnvalidated(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := config.SetByPath(cfg, args[0], args[1]); err != nil {
				return fmt.Errorf("set value: %w", err)
			}
			if err := config.Save(cfgPath, cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			logger.Info("config updated", "path", args[0], "file", cfgPath)
			if err := config.Validate(cfg); err != nil {
				logger.Warn("config is not valid yet", "err", err)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the config with credentials masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(config.Sanitize(cfg), "", "  ")
			if err != nil {
				return fmt.Errorf("encode value: %w", err)
			}
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(resolveConfigPath())
		},
	})

	return cmd
}
