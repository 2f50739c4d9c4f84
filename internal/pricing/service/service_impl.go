package service

import (
	"context"
	"strings"
	"time"

	billingdomain "github.com/zonekeeper/registro/internal/billing/domain"
	feedomain "github.com/zonekeeper/registro/internal/fee/domain"
	premiumdomain "github.com/zonekeeper/registro/internal/premium/domain"
	pricingdomain "github.com/zonekeeper/registro/internal/pricing/domain"
	"github.com/zonekeeper/registro/internal/tldconfig"
	tokendomain "github.com/zonekeeper/registro/internal/token/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Service struct {
	log        *zap.Logger
	tldCfg     *tldconfig.Holder
	premiumSvc premiumdomain.Service
}

type ServiceParam struct {
	fx.In

	Log        *zap.Logger
	TLDCfg     *tldconfig.Holder
	PremiumSvc premiumdomain.Service
}

func NewService(p ServiceParam) pricingdomain.Service {
	return &Service{
		log:        p.Log.Named("pricing.service"),
		tldCfg:     p.TLDCfg,
		premiumSvc: p.PremiumSvc,
	}
}

func (s *Service) CreatePrice(ctx context.Context, tld, domainName string, asOf time.Time, opts pricingdomain.CreateOptions) (feedomain.FeesAndCredits, error) {
	if opts.Years <= 0 {
		return feedomain.FeesAndCredits{}, pricingdomain.ErrNonPositiveYears
	}
	tldCfg, ok := s.tldCfg.Get().Get(tld)
	if !ok {
		return feedomain.FeesAndCredits{}, pricingdomain.ErrUnknownTLD
	}

	fees := feedomain.FeesAndCredits{Currency: tldCfg.Currency}

	isAnchorTenant := opts.IsAnchorTenant ||
		(opts.Token != nil && opts.Token.RegistrationBehavior == tokendomain.RegistrationBehaviorAnchorTenant)
	if isAnchorTenant {
		// Anchor tenants register free regardless of premium status, and
		// are exempt from early-access fees.
		fees.Append(feedomain.Fee{Type: feedomain.FeeTypeCreate, Description: "create", AmountMinor: 0})
		return fees, nil
	}

	prices, err := s.premiumPrices(ctx, tldCfg, tld, domainName, asOf)
	if err != nil {
		return feedomain.FeesAndCredits{}, err
	}
	if err := validateTokenForPremium(opts.Token, prices.IsPremium); err != nil {
		return feedomain.FeesAndCredits{}, err
	}

	total := discountedYearTotal(prices.CreateCostMinor, prices.RenewCostMinor, opts.Years, opts.Token)

	if opts.IsSunriseCreate {
		total = feedomain.ApplyFraction(total, 1-tldCfg.SunriseDiscount)
	}

	fees.Append(feedomain.Fee{
		Type:        feedomain.FeeTypeCreate,
		Description: "create",
		AmountMinor: total,
		Premium:     prices.IsPremium,
	})

	if eap := tldCfg.EAPFeeMinorAt(asOf); eap > 0 {
		fees.Append(feedomain.Fee{
			Type:        feedomain.FeeTypeEAP,
			Description: "Early Access Period",
			AmountMinor: eap,
		})
	}
	return fees, nil
}

func (s *Service) RenewPrice(ctx context.Context, tld, domainName string, asOf time.Time, years int, recurrence *billingdomain.Recurrence, token *tokendomain.AllocationToken) (feedomain.FeesAndCredits, error) {
	if years <= 0 {
		return feedomain.FeesAndCredits{}, pricingdomain.ErrNonPositiveYears
	}
	tldCfg, ok := s.tldCfg.Get().Get(tld)
	if !ok {
		return feedomain.FeesAndCredits{}, pricingdomain.ErrUnknownTLD
	}

	// A token that registers an anchor tenant or pins non-premium
	// renewals forces the standard rate without a premium lookup.
	if token != nil &&
		(token.RegistrationBehavior == tokendomain.RegistrationBehaviorAnchorTenant ||
			token.RenewalBehavior == tokendomain.RenewalBehaviorNonPremium) {
		return s.standardRenew(tldCfg, asOf, years, token)
	}

	if recurrence == nil {
		return s.defaultRenew(ctx, tldCfg, tld, domainName, asOf, years, token)
	}

	switch recurrence.RenewalPriceBehavior {
	case billingdomain.RenewalPriceBehaviorDefault:
		return s.defaultRenew(ctx, tldCfg, tld, domainName, asOf, years, token)
	case billingdomain.RenewalPriceBehaviorSpecified:
		if recurrence.RenewalPriceMinor == nil {
			return feedomain.FeesAndCredits{}, pricingdomain.ErrMissingSpecifiedPrice
		}
		currency := tldCfg.Currency
		if recurrence.RenewalPriceCurrency != nil {
			currency = *recurrence.RenewalPriceCurrency
		}
		fees := feedomain.FeesAndCredits{Currency: currency}
		fees.Append(feedomain.Fee{
			Type:        feedomain.FeeTypeRenew,
			Description: "renew",
			AmountMinor: *recurrence.RenewalPriceMinor * int64(years),
		})
		return fees, nil
	case billingdomain.RenewalPriceBehaviorNonPremium:
		return s.standardRenew(tldCfg, asOf, years, token)
	default:
		return feedomain.FeesAndCredits{}, pricingdomain.ErrInvalidRenewalBehavior
	}
}

func (s *Service) RestorePrice(ctx context.Context, tld, domainName string, asOf time.Time, isExpired bool) (feedomain.FeesAndCredits, error) {
	tldCfg, ok := s.tldCfg.Get().Get(tld)
	if !ok {
		return feedomain.FeesAndCredits{}, pricingdomain.ErrUnknownTLD
	}

	fees := feedomain.FeesAndCredits{Currency: tldCfg.Currency}
	fees.Append(feedomain.Fee{
		Type:        feedomain.FeeTypeRestore,
		Description: "restore",
		AmountMinor: tldCfg.RestoreCostMinor,
	})

	if isExpired {
		prices, err := s.premiumPrices(ctx, tldCfg, tld, domainName, asOf)
		if err != nil {
			return feedomain.FeesAndCredits{}, err
		}
		fees.Append(feedomain.Fee{
			Type:        feedomain.FeeTypeRenew,
			Description: "renew",
			AmountMinor: prices.RenewCostMinor,
			Premium:     prices.IsPremium,
		})
	}
	return fees, nil
}

func (s *Service) TransferPrice(ctx context.Context, tld, domainName string, asOf time.Time, recurrence *billingdomain.Recurrence) (feedomain.FeesAndCredits, error) {
	renew, err := s.RenewPrice(ctx, tld, domainName, asOf, 1, recurrence, nil)
	if err != nil {
		return feedomain.FeesAndCredits{}, err
	}

	fees := feedomain.FeesAndCredits{Currency: renew.Currency}
	fees.Append(feedomain.Fee{
		Type:        feedomain.FeeTypeTransfer,
		Description: "transfer",
		AmountMinor: renew.TotalMinor(),
		Premium:     renew.HasPremium(),
	})
	return fees, nil
}

func (s *Service) defaultRenew(ctx context.Context, tldCfg tldconfig.TLD, tld, domainName string, asOf time.Time, years int, token *tokendomain.AllocationToken) (feedomain.FeesAndCredits, error) {
	prices, err := s.premiumPrices(ctx, tldCfg, tld, domainName, asOf)
	if err != nil {
		return feedomain.FeesAndCredits{}, err
	}
	if err := validateTokenForPremium(token, prices.IsPremium); err != nil {
		return feedomain.FeesAndCredits{}, err
	}

	total := discountedYearTotal(prices.RenewCostMinor, prices.RenewCostMinor, years, token)
	fees := feedomain.FeesAndCredits{Currency: tldCfg.Currency}
	fees.Append(feedomain.Fee{
		Type:        feedomain.FeeTypeRenew,
		Description: "renew",
		AmountMinor: total,
		Premium:     prices.IsPremium,
	})
	return fees, nil
}

func (s *Service) standardRenew(tldCfg tldconfig.TLD, asOf time.Time, years int, token *tokendomain.AllocationToken) (feedomain.FeesAndCredits, error) {
	cost := tldCfg.RenewCostMinorAt(asOf)
	total := discountedYearTotal(cost, cost, years, token)

	fees := feedomain.FeesAndCredits{Currency: tldCfg.Currency}
	fees.Append(feedomain.Fee{
		Type:        feedomain.FeeTypeRenew,
		Description: "renew",
		AmountMinor: total,
	})
	return fees, nil
}

// discountedYearTotal sums per-year costs, applying the token's discount
// fraction to the first min(years, token.DiscountYears) years. The first
// year costs firstYearMinor, every later year costs laterYearMinor.
func discountedYearTotal(firstYearMinor, laterYearMinor int64, years int, token *tokendomain.AllocationToken) int64 {
	discountYears := 0
	fraction := 0.0
	if token != nil && token.RegistrationBehavior == tokendomain.RegistrationBehaviorDefault && token.Discounts() {
		discountYears = token.DiscountYears
		if discountYears > years {
			discountYears = years
		}
		fraction = token.DiscountFraction
	}

	var total int64
	for year := 1; year <= years; year++ {
		cost := laterYearMinor
		if year == 1 {
			cost = firstYearMinor
		}
		if year <= discountYears {
			cost -= feedomain.ApplyFraction(cost, fraction)
		}
		total += cost
	}
	return total
}

// premiumPrices resolves the create/renew schedule for a label and
// rejects premium entries denominated in a different currency than the
// TLD.
func (s *Service) premiumPrices(ctx context.Context, tldCfg tldconfig.TLD, tld, domainName string, asOf time.Time) (premiumdomain.Prices, error) {
	prices, err := s.premiumSvc.GetPrices(ctx, tld, label(domainName), asOf)
	if err != nil {
		return premiumdomain.Prices{}, err
	}
	if prices.IsPremium && prices.Currency != "" && prices.Currency != tldCfg.Currency {
		s.log.Error("premium label currency disagrees with tld",
			zap.String("tld", tld),
			zap.String("label", label(domainName)),
			zap.String("premium_currency", prices.Currency),
			zap.String("tld_currency", tldCfg.Currency),
		)
		return premiumdomain.Prices{}, pricingdomain.ErrCurrencyMismatch
	}
	return prices, nil
}

func validateTokenForPremium(token *tokendomain.AllocationToken, isPremium bool) error {
	if token == nil || !isPremium {
		return nil
	}
	if token.Discounts() && !token.DiscountPremiums {
		return pricingdomain.ErrTokenInvalidForPremiumName
	}
	return nil
}

func label(domainName string) string {
	name := strings.ToLower(strings.TrimSpace(domainName))
	if i := strings.IndexByte(name, '.'); i >= 0 {
		return name[:i]
	}
	return name
}
