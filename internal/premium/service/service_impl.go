package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/zonekeeper/registro/internal/clock"
	premiumdomain "github.com/zonekeeper/registro/internal/premium/domain"
	"github.com/zonekeeper/registro/internal/tldconfig"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service answers premium lookups from the premium_labels table, falling
// back to the TLD's standard schedule for non-premium labels.
type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	tldCfg *tldconfig.Holder
}

type ServiceParam struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	TLDCfg *tldconfig.Holder
}

func NewService(p ServiceParam) premiumdomain.Service {
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("premium.service"),
		tldCfg: p.TLDCfg,
	}
}

func (s *Service) GetPrices(ctx context.Context, tld, label string, asOf time.Time) (premiumdomain.Prices, error) {
	tldCfg, ok := s.tldCfg.Get().Get(tld)
	if !ok {
		return premiumdomain.Prices{}, premiumdomain.ErrUnknownTLD
	}

	var entry premiumdomain.PremiumLabel
	err := s.db.WithContext(ctx).
		Where("tld = ? AND label = ?", strings.ToLower(tld), strings.ToLower(label)).
		First(&entry).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return premiumdomain.Prices{}, err
		}
		return premiumdomain.Prices{
			IsPremium:       false,
			Currency:        tldCfg.Currency,
			CreateCostMinor: tldCfg.CreateCostMinor,
			RenewCostMinor:  tldCfg.RenewCostMinorAt(asOf),
		}, nil
	}

	return premiumdomain.Prices{
		IsPremium:       true,
		Currency:        entry.Currency,
		CreateCostMinor: entry.CreateCostMinor,
		RenewCostMinor:  entry.RenewCostMinor,
	}, nil
}

// cachedEntry memoizes whether a label is premium and, if so, its
// priced row. Standard prices are never stored: they depend on the
// query date through the TLD's effective-dated schedule.
type cachedEntry struct {
	isPremium bool
	prices    premiumdomain.Prices
	expiresAt time.Time
}

// CachedService memoizes premium-list membership with a TTL. Premium
// rows carry no effective dating so their prices are safe to cache;
// non-premium answers are recomputed from the TLD schedule at every
// call's asOf. The clock is injected so expiry is deterministic under
// test, and Invalidate drops a whole TLD after a premium-list import.
type CachedService struct {
	next   premiumdomain.Service
	tldCfg *tldconfig.Holder
	clock  clock.Clock
	ttl    time.Duration

	mu      sync.Mutex
	entries map[string]cachedEntry
}

const defaultPremiumTTL = 30 * time.Minute

func NewCachedService(next premiumdomain.Service, tldCfg *tldconfig.Holder, clk clock.Clock, ttl time.Duration) *CachedService {
	if ttl <= 0 {
		ttl = defaultPremiumTTL
	}
	return &CachedService{
		next:    next,
		tldCfg:  tldCfg,
		clock:   clk,
		ttl:     ttl,
		entries: make(map[string]cachedEntry),
	}
}

func (s *CachedService) GetPrices(ctx context.Context, tld, label string, asOf time.Time) (premiumdomain.Prices, error) {
	key := cacheKey(tld, label)
	now := s.clock.Now()

	s.mu.Lock()
	entry, ok := s.entries[key]
	s.mu.Unlock()
	if ok && now.Before(entry.expiresAt) {
		if entry.isPremium {
			return entry.prices, nil
		}
		return s.standardPrices(tld, asOf)
	}

	prices, err := s.next.GetPrices(ctx, tld, label, asOf)
	if err != nil {
		return premiumdomain.Prices{}, err
	}

	cached := cachedEntry{isPremium: prices.IsPremium, expiresAt: now.Add(s.ttl)}
	if prices.IsPremium {
		cached.prices = prices
	}
	s.mu.Lock()
	s.entries[key] = cached
	s.mu.Unlock()
	return prices, nil
}

// standardPrices resolves the TLD schedule at asOf for a label known to
// be absent from the premium list.
func (s *CachedService) standardPrices(tld string, asOf time.Time) (premiumdomain.Prices, error) {
	tldCfg, ok := s.tldCfg.Get().Get(tld)
	if !ok {
		return premiumdomain.Prices{}, premiumdomain.ErrUnknownTLD
	}
	return premiumdomain.Prices{
		IsPremium:       false,
		Currency:        tldCfg.Currency,
		CreateCostMinor: tldCfg.CreateCostMinor,
		RenewCostMinor:  tldCfg.RenewCostMinorAt(asOf),
	}, nil
}

// Invalidate drops every cached label under the TLD.
func (s *CachedService) Invalidate(tld string) {
	prefix := strings.ToLower(strings.TrimSpace(tld)) + "|"
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.entries {
		if strings.HasPrefix(key, prefix) {
			delete(s.entries, key)
		}
	}
}

func cacheKey(tld, label string) string {
	return strings.ToLower(strings.TrimSpace(tld)) + "|" + strings.ToLower(strings.TrimSpace(label))
}
