package discordb

import (
	"net/http"
	"time"

	"golang.org/x/time/rate"

	c "github.com/unkn0wn-root/discordb/codec"
	gen "github.com/unkn0wn-root/discordb/genstore"
	"github.com/unkn0wn-root/discordb/internal/rest"
	pr "github.com/unkn0wn-root/discordb/provider"
	"github.com/unkn0wn-root/discordb/provider/bigcache"
)

const defaultSweepInterval = 250 * time.Millisecond

// Options configure a DB. Only Token and Containers are required.
type Options struct {
	// Required
	Token      string
	Containers map[string]string // logical name -> channel id

	// Bot marks Token as a bot token. Bot tokens are sent as "Bot <token>"
	// and let GetOne fetch a single message instead of scanning the listing.
	Bot bool

	Remote     Remote       // nil => REST client for Token/Bot/BaseURL/HTTPClient
	BaseURL    string       // "" => https://discord.com/api/v10
	HTTPClient *http.Client // nil => otelhttp-instrumented client

	Provider        pr.Provider       // nil => bigcache with life window TTL
	DisableCache    bool              // pass-through mode; Provider is ignored
	GenStore        gen.GenStore      // nil => LocalGenStore (in-process)
	RecordCodec     c.Codec[Record]   // nil => JSON
	ListCodec       c.Codec[[]Record] // nil => JSON
	TTL             time.Duration     // 0 => 10m
	CleanupInterval time.Duration     // local gen store sweep; 0 => 1h
	GenRetention    time.Duration     // 0 => 30d; must exceed TTL
	ComputeSetCost  SetCostFunc       // nil => framed size

	// SweepInterval spaces the deletes issued by DeleteAll.
	// 0 => 250ms, negative => no pacing.
	SweepInterval time.Duration

	Logger Logger // nil => NopLogger
	Hooks  Hooks  // nil => NopHooks
}

// New validates opts and wires the resolver, remote and caches.
// Close releases the provider and generation store, including ones passed in.
func New(opts Options) (*DB, error) {
	if opts.Token == "" {
		return nil, &ConfigurationError{Field: "token", Reason: "is required"}
	}
	resolver, err := NewResolver(opts.Containers)
	if err != nil {
		return nil, err
	}

	db := &DB{
		resolver: resolver,
		bot:      opts.Bot,
		log:      coalesce[Logger](opts.Logger, NopLogger{}),
		hooks:    coalesce[Hooks](opts.Hooks, NopHooks{}),
	}

	if opts.Remote != nil {
		db.remote = opts.Remote
	} else {
		rr, err := newRESTRemote(rest.Config{
			Token:      opts.Token,
			Bot:        opts.Bot,
			BaseURL:    opts.BaseURL,
			HTTPClient: opts.HTTPClient,
		})
		if err != nil {
			return nil, err
		}
		db.remote = rr
	}

	if opts.SweepInterval < 0 {
		db.pace = rate.NewLimiter(rate.Inf, 1)
	} else {
		db.pace = rate.NewLimiter(rate.Every(coalesce(opts.SweepInterval, defaultSweepInterval)), 1)
	}

	if opts.DisableCache {
		db.records = NopCache[Record]{}
		db.lists = NopCache[[]Record]{}
		db.log.Info("discordb: cache disabled", nil)
		return db, nil
	}
	if err := db.initCache(opts); err != nil {
		return nil, err
	}
	return db, nil
}

func (db *DB) initCache(opts Options) error {
	ttl := coalesce(opts.TTL, defaultTTL)
	retention := coalesce(opts.GenRetention, defaultGenRetention)
	if retention <= ttl {
		return &ConfigurationError{Field: "gen_retention", Reason: "must be longer than the cache TTL"}
	}

	provider := opts.Provider
	if provider == nil {
		bp, err := bigcache.New(bigcache.Config{LifeWindow: ttl})
		if err != nil {
			return &ConfigurationError{Field: "provider", Reason: err.Error()}
		}
		provider = bp
	}
	gens := opts.GenStore
	if gens == nil {
		gens = gen.NewLocalGenStore(coalesce(opts.CleanupInterval, defaultCleanupInterval), retention)
	}
	db.provider = provider
	db.gens = gens

	records, err := newCache(CacheOptions[Record]{
		Namespace:      nsRecord,
		Provider:       provider,
		Codec:          opts.RecordCodec,
		GenStore:       gens,
		TTL:            ttl,
		ComputeSetCost: opts.ComputeSetCost,
		Logger:         db.log,
		Hooks:          db.hooks,
	})
	if err != nil {
		return err
	}
	lists, err := newCache(CacheOptions[[]Record]{
		Namespace:      nsContainer,
		Provider:       provider,
		Codec:          opts.ListCodec,
		GenStore:       gens,
		TTL:            ttl,
		ComputeSetCost: opts.ComputeSetCost,
		Logger:         db.log,
		Hooks:          db.hooks,
	})
	if err != nil {
		return err
	}
	db.records = records
	db.lists = lists
	return nil
}
