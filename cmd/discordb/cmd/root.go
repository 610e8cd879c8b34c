package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/unkn0wn-root/discordb"
)

var rootCmd = &cobra.Command{
	Use:   "discordb",
	Short: "Discord channels as a record store",
	Long: `CLI for storing, reading and deleting records kept as messages in discord channels.

Containers are channel ids or names mapped in the config file:

  containers:
    users: "111111111111111111"

Container names are case-insensitive.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ~/.config/discordb/config.yaml)")
	pf.String("token", "", "discord token")
	pf.Bool("bot", true, "token is a bot token")
	pf.StringToString("container", nil, "container mapping name=channel_id (repeatable)")
	pf.String("base-url", "", "discord api base url")
	pf.String("cache", "memory", "cache backend: memory, ristretto, redis or none")
	pf.Duration("cache-ttl", 0, "cache entry ttl (default 10m)")
	pf.Int64("cache-max-mb", 64, "ristretto cache size in MiB")
	pf.String("redis-addr", "localhost:6379", "redis address for --cache=redis")
	pf.String("redis-prefix", "discordb:", "redis key prefix")
	pf.String("codec", "json", "cache codec: json, msgpack or cbor")
	pf.Bool("compress", false, "zstd-compress cached values")
	pf.String("log-level", "warn", "log level: debug, info, warn, error")

	for key, flag := range map[string]string{
		"token":        "token",
		"bot":          "bot",
		"containers":   "container",
		"base_url":     "base-url",
		"cache":        "cache",
		"cache_ttl":    "cache-ttl",
		"cache_max_mb": "cache-max-mb",
		"redis_addr":   "redis-addr",
		"redis_prefix": "redis-prefix",
		"codec":        "codec",
		"compress":     "compress",
		"log_level":    "log-level",
	} {
		viper.BindPFlag(key, pf.Lookup(flag))
	}
}

func initConfig() {
	if cfg := rootCmd.PersistentFlags().Lookup("config").Value.String(); cfg != "" {
		viper.SetConfigFile(cfg)
	} else {
		viper.AddConfigPath(configDir())
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("DISCORDB")
	viper.AutomaticEnv()

	viper.ReadInConfig()
}

func configDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "discordb")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "discordb")
	}
	return ".discordb"
}

// withDB opens the store from config, runs fn and closes it.
func withDB(cmd *cobra.Command, fn func(ctx context.Context, db *discordb.DB) error) (err error) {
	cfg := loadConfig()
	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.L.Sync() }()

	opts, closeCache, err := buildOptions(cfg, log)
	if err != nil {
		return err
	}
	defer closeCache()

	db, err := discordb.New(opts)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	defer func() {
		if cerr := db.Close(context.WithoutCancel(ctx)); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(ctx, db)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
