package cmd

import (
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/unkn0wn-root/discordb"
	"github.com/unkn0wn-root/discordb/codec"
	"github.com/unkn0wn-root/discordb/genstore"
	zaplog "github.com/unkn0wn-root/discordb/log/zap"
	"github.com/unkn0wn-root/discordb/provider/bigcache"
	"github.com/unkn0wn-root/discordb/provider/redis"
	"github.com/unkn0wn-root/discordb/provider/ristretto"
)

// genTTL keeps redis generations well past any cache entry written under them.
const genTTL = 30 * 24 * time.Hour

type config struct {
	Token       string
	Bot         bool
	Containers  map[string]string
	BaseURL     string
	Cache       string
	CacheTTL    time.Duration
	CacheMaxMB  int64
	RedisAddr   string
	RedisPrefix string
	Codec       string
	Compress    bool
	LogLevel    string
}

// containerArg normalizes a container name given on the command line.
// viper lowercases map keys, so mapped names only match in lower case.
// Channel ids are digits and pass through unchanged.
func containerArg(s string) string { return strings.ToLower(s) }

func loadConfig() config {
	return config{
		Token:       viper.GetString("token"),
		Bot:         viper.GetBool("bot"),
		Containers:  viper.GetStringMapString("containers"),
		BaseURL:     viper.GetString("base_url"),
		Cache:       strings.ToLower(viper.GetString("cache")),
		CacheTTL:    viper.GetDuration("cache_ttl"),
		CacheMaxMB:  viper.GetInt64("cache_max_mb"),
		RedisAddr:   viper.GetString("redis_addr"),
		RedisPrefix: viper.GetString("redis_prefix"),
		Codec:       strings.ToLower(viper.GetString("codec")),
		Compress:    viper.GetBool("compress"),
		LogLevel:    viper.GetString("log_level"),
	}
}

func newLogger(level string) (zaplog.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return zaplog.Logger{}, fmt.Errorf("log level: %w", err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.OutputPaths = []string{"stderr"}
	l, err := zc.Build()
	if err != nil {
		return zaplog.Logger{}, err
	}
	return zaplog.New(l), nil
}

// buildOptions turns cfg into discordb.Options. The returned func releases
// codec resources and must run after the DB is closed.
func buildOptions(cfg config, log discordb.Logger) (discordb.Options, func(), error) {
	opts := discordb.Options{
		Token:      cfg.Token,
		Bot:        cfg.Bot,
		Containers: cfg.Containers,
		BaseURL:    cfg.BaseURL,
		TTL:        cfg.CacheTTL,
		Logger:     log,
	}
	noop := func() {}
	if cfg.Cache == "none" {
		opts.DisableCache = true
		return opts, noop, nil
	}

	rc, closeRecord, err := pickCodec[discordb.Record](cfg.Codec, cfg.Compress)
	if err != nil {
		return opts, noop, err
	}
	lc, closeList, err := pickCodec[[]discordb.Record](cfg.Codec, cfg.Compress)
	if err != nil {
		closeRecord()
		return opts, noop, err
	}
	release := func() { closeRecord(); closeList() }
	opts.RecordCodec = rc
	opts.ListCodec = lc

	if err := setProvider(&opts, cfg); err != nil {
		release()
		return opts, noop, err
	}
	return opts, release, nil
}

func setProvider(opts *discordb.Options, cfg config) error {
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	switch cfg.Cache {
	case "", "memory":
		p, err := bigcache.New(bigcache.Config{LifeWindow: ttl})
		if err != nil {
			return err
		}
		opts.Provider = p
	case "ristretto":
		maxCost := cfg.CacheMaxMB << 20
		if maxCost <= 0 {
			return fmt.Errorf("cache-max-mb must be positive")
		}
		p, err := ristretto.New(ristretto.Config{MaxCost: maxCost})
		if err != nil {
			return err
		}
		opts.Provider = p
	case "redis":
		rdb := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		p, err := redis.New(redis.Config{Client: rdb, Prefix: cfg.RedisPrefix, CloseClient: true})
		if err != nil {
			return err
		}
		opts.Provider = p
		// generations must be shared wherever the entries are
		opts.GenStore = genstore.NewRedisGenStoreWithTTL(rdb, strings.TrimSuffix(cfg.RedisPrefix, ":"), genTTL)
	default:
		return fmt.Errorf("unknown cache backend %q", cfg.Cache)
	}
	return nil
}

func pickCodec[V any](name string, compress bool) (codec.Codec[V], func(), error) {
	var c codec.Codec[V]
	switch name {
	case "", "json":
		c = codec.JSON[V]{}
	case "msgpack":
		c = codec.Msgpack[V]{}
	case "cbor":
		cb, err := codec.NewCBOR[V](true)
		if err != nil {
			return nil, nil, err
		}
		c = cb
	default:
		return nil, nil, fmt.Errorf("unknown codec %q", name)
	}
	if !compress {
		return c, func() {}, nil
	}
	z, err := codec.NewZstd[V](c, 0)
	if err != nil {
		return nil, nil, err
	}
	return z, z.Close, nil
}
