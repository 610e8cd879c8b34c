// Package ristretto is a cost-bounded in-process provider with per-entry TTL.
// Writes are admitted asynchronously and may be dropped under contention.
package ristretto

import (
	"context"
	"errors"
	"time"

	rc "github.com/dgraph-io/ristretto"

	pr "github.com/unkn0wn-root/discordb/provider"
)

type Provider struct {
	c        *rc.Cache
	counters int64
}

var _ pr.Provider = (*Provider)(nil)

// Config sizes the cache. Only MaxCost is required; the rest is derived from
// it assuming entries around avgEntryCost, which fits a framed record of a
// few hundred bytes of content. Container listings cost more and are
// counted by their framed size.
type Config struct {
	MaxCost     int64 // bytes, since discordb passes the framed size as cost
	NumCounters int64 // 0 => 10x the expected entry count
	BufferItems int64 // 0 => 64
}

const (
	avgEntryCost       = 1 << 10
	defaultBufferItems = 64
)

func New(cfg Config) (*Provider, error) {
	if cfg.MaxCost <= 0 || cfg.NumCounters < 0 || cfg.BufferItems < 0 {
		return nil, errors.New("ristretto: invalid config")
	}
	if cfg.NumCounters == 0 {
		cfg.NumCounters = max(10*cfg.MaxCost/avgEntryCost, 100)
	}
	if cfg.BufferItems == 0 {
		cfg.BufferItems = defaultBufferItems
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
	})
	if err != nil {
		return nil, err
	}
	return &Provider{c: c, counters: cfg.NumCounters}, nil
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := p.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, _ := v.([]byte)
	if b == nil {
		// self-heal: drop unexpected entry shape
		p.c.Del(key)
		return nil, false, nil
	}
	return b, true, nil
}

func (p *Provider) Set(_ context.Context, key string, value []byte, cost int64, ttl time.Duration) (bool, error) {
	return p.c.SetWithTTL(key, value, cost, ttl), nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	p.c.Del(key)
	return nil
}

// Wait blocks until buffered writes have been applied.
func (p *Provider) Wait() { p.c.Wait() }

func (p *Provider) Close(_ context.Context) error {
	p.c.Wait()
	p.c.Close()
	return nil
}
