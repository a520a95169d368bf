package keys

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/commercekit/paywall/internal/config"
	"github.com/commercekit/paywall/internal/identity/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const fetchTimeout = 10 * time.Second

// Cache holds the identity provider's current public-key set. The
// snapshot is swapped atomically on refresh so concurrent readers always
// observe a consistent (old-then-new) key set, and concurrent refreshes
// collapse to a single in-flight fetch.
type Cache struct {
	cfg     config.IdentityConfig
	log     *zap.Logger
	client  *http.Client
	current atomic.Pointer[domain.KeySnapshot]
	group   singleflight.Group
}

func NewCache(cfg config.IdentityConfig, log *zap.Logger) *Cache {
	return &Cache{
		cfg:    cfg,
		log:    log.Named("identity.keys"),
		client: &http.Client{Timeout: fetchTimeout},
	}
}

// Snapshot returns the current key snapshot, fetching it from the
// provider on first use or when forceRefresh is set. A fetch failure is
// transient: the previous snapshot, if any, stays in place.
func (c *Cache) Snapshot(ctx context.Context, forceRefresh bool) (*domain.KeySnapshot, error) {
	if !c.cfg.Configured() {
		return nil, domain.ErrNotConfigured
	}

	if !forceRefresh {
		if snap := c.current.Load(); snap != nil {
			return snap, nil
		}
	}

	v, err, _ := c.group.Do("jwks", func() (any, error) {
		snap, err := c.fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.current.Store(snap)
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.KeySnapshot), nil
}

func (c *Cache) fetch(ctx context.Context) (*domain.KeySnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.jwksURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrKeyFetch, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrKeyFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: jwks endpoint returned %d", domain.ErrKeyFetch, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrKeyFetch, err)
	}

	parsed, err := parseJWKS(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrKeyFetch, err)
	}

	snap := domain.NewKeySnapshot(parsed, time.Now().UTC())
	c.log.Info("refreshed signing key set", zap.Int("keys", snap.Len()))
	return snap, nil
}

func (c *Cache) jwksURL() string {
	if c.cfg.JWKSURL != "" {
		return c.cfg.JWKSURL
	}
	domainName := strings.TrimSuffix(c.cfg.Domain, "/")
	if !strings.HasPrefix(domainName, "http://") && !strings.HasPrefix(domainName, "https://") {
		domainName = "https://" + domainName
	}
	return domainName + "/.well-known/jwks.json"
}
