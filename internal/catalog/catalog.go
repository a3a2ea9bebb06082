// Package catalog serves product reads for the chat flows, cached in Redis.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ops-bot/internal/cache"
	"ops-bot/internal/metrics"
	"ops-bot/internal/repo"
)

// DefaultKeyPrefix namespaces every catalog key.
const DefaultKeyPrefix = "opsbot:catalog:"

// Source is the subset of the repository the catalog reads from.
type Source interface {
	ListProducts(ctx context.Context, p repo.Page) ([]repo.Product, int, error)
	GetProduct(ctx context.Context, id string) (*repo.Product, error)
	GetProductByCode(ctx context.Context, code string) (*repo.Product, error)
}

// Catalog is a read-through cache over Source. With no Redis configured it
// passes every call straight through.
type Catalog struct {
	source  Source
	cache   *cache.Redis
	ttl     time.Duration
	prefix  string
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Config tunes the cache.
type Config struct {
	TTL       time.Duration
	KeyPrefix string
}

type cachedPage struct {
	Products []repo.Product `json:"products"`
	Total    int            `json:"total"`
}

// New builds a catalog. redis and m may be nil.
func New(source Source, redis *cache.Redis, cfg Config, m *metrics.Metrics, logger *slog.Logger) *Catalog {
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultKeyPrefix
	}
	return &Catalog{
		source:  source,
		cache:   redis,
		ttl:     cfg.TTL,
		prefix:  cfg.KeyPrefix,
		logger:  logger.With("component", "catalog"),
		metrics: m,
	}
}

// ListProducts returns one page of active products.
func (c *Catalog) ListProducts(ctx context.Context, p repo.Page) ([]repo.Product, int, error) {
	key := fmt.Sprintf("%spage:%d:%d", c.prefix, p.Offset, p.Limit)
	var cached cachedPage
	if c.lookup(ctx, key, &cached) {
		return cached.Products, cached.Total, nil
	}

	products, total, err := c.source.ListProducts(ctx, p)
	if err != nil {
		return nil, 0, err
	}
	c.store(ctx, key, cachedPage{Products: products, Total: total})
	return products, total, nil
}

// GetProduct returns a product by id. Misses are never cached.
func (c *Catalog) GetProduct(ctx context.Context, id string) (*repo.Product, error) {
	key := c.prefix + "id:" + id
	var cached repo.Product
	if c.lookup(ctx, key, &cached) {
		return &cached, nil
	}

	p, err := c.source.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, p)
	return p, nil
}

// GetProductByCode returns an active product by its case-insensitive code.
func (c *Catalog) GetProductByCode(ctx context.Context, code string) (*repo.Product, error) {
	code = strings.TrimSpace(code)
	key := c.prefix + "code:" + strings.ToUpper(code)
	var cached repo.Product
	if c.lookup(ctx, key, &cached) {
		return &cached, nil
	}

	p, err := c.source.GetProductByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, p)
	return p, nil
}

// Reload drops every cached entry and returns the number of active products.
func (c *Catalog) Reload(ctx context.Context) (int, error) {
	if c.cache != nil {
		n, err := c.cache.DeletePrefix(ctx, c.prefix)
		if err != nil {
			return 0, fmt.Errorf("reload catalog: %w", err)
		}
		c.logger.Info("catalog cache cleared", "keys", n)
	}
	_, total, err := c.ListProducts(ctx, repo.Page{Offset: 0, Limit: 1})
	if err != nil {
		return 0, fmt.Errorf("reload catalog: %w", err)
	}
	return total, nil
}

func (c *Catalog) lookup(ctx context.Context, key string, dest any) bool {
	if c.cache == nil {
		return false
	}
	ok, err := c.cache.GetJSON(ctx, key, dest)
	if err != nil {
		c.logger.Warn("read catalog cache failed", "key", key, "error", err)
		c.count("error")
		return false
	}
	if ok {
		c.count("hit")
	} else {
		c.count("miss")
	}
	return ok
}

func (c *Catalog) store(ctx context.Context, key string, value any) {
	if c.cache == nil {
		return
	}
	if err := c.cache.SetJSON(ctx, key, value, c.ttl); err != nil {
		c.logger.Warn("set catalog cache failed", "key", key, "error", err)
	}
}

func (c *Catalog) count(result string) {
	if c.metrics != nil {
		c.metrics.CatalogLookups.WithLabelValues(result).Inc()
	}
}
