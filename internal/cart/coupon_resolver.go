package cart

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	pkgerrors "github.com/airink/storefront-backend/pkg/errors"
	"github.com/airink/storefront-backend/pkg/logger"
	"github.com/airink/storefront-backend/pkg/metrics"
)

// ErrInvalidCoupon is returned when neither the remote catalog nor the
// fallback table validates a code.
var ErrInvalidCoupon = pkgerrors.New(pkgerrors.CodeValidation, "invalid coupon code")

// CouponSource looks coupons up in the remote catalog. Absent codes return (nil, nil).
type CouponSource interface {
	FindCoupon(ctx context.Context, code string) (*Coupon, error)
}

// FallbackTable is the local coupon table consulted when the remote catalog
// is unreachable or does not know a code. Keys are normalized codes.
type FallbackTable map[string]Coupon

// DefaultFallbackTable returns the demo codes shipped with the storefront.
func DefaultFallbackTable() FallbackTable {
	return FallbackTable{
		"ECO10":     {Code: "ECO10", Kind: CouponPercentage, Value: 10, IsActive: true},
		"WELCOME15": {Code: "WELCOME15", Kind: CouponPercentage, Value: 15, IsActive: true},
		"AIRINK20":  {Code: "AIRINK20", Kind: CouponPercentage, Value: 20, IsActive: true},
		"FREESHIP":  {Code: "FREESHIP", Kind: CouponFreeShipping, IsActive: true},
	}
}

type fallbackFile struct {
	Coupons []Coupon `yaml:"coupons"`
}

// LoadFallbackTable reads a YAML coupon table. An empty path yields the defaults.
func LoadFallbackTable(path string) (FallbackTable, error) {
	if path == "" {
		return DefaultFallbackTable(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading coupon fallback file: %w", err)
	}
	return ParseFallbackTable(raw)
}

// ParseFallbackTable decodes a YAML document of the form `coupons: [...]`.
func ParseFallbackTable(raw []byte) (FallbackTable, error) {
	var doc fallbackFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing coupon fallback file: %w", err)
	}
	table := FallbackTable{}
	for _, c := range doc.Coupons {
		code := NormalizeCode(c.Code)
		if code == "" {
			return nil, fmt.Errorf("coupon fallback entry missing code")
		}
		if !c.Kind.IsValid() {
			return nil, fmt.Errorf("coupon %s has unknown type %q", code, c.Kind)
		}
		c.Code = code
		table[code] = c
	}
	return table, nil
}

func (t FallbackTable) lookup(code string) (*Coupon, bool) {
	c, ok := t[code]
	if !ok {
		return nil, false
	}
	return &c, true
}

// CouponResolver validates codes against the remote catalog first and the
// fallback table second.
type CouponResolver struct {
	remote   CouponSource
	fallback FallbackTable
	now      func() time.Time
	logg     *logger.Logger
	metrics  *metrics.CartMetrics
}

// NewCouponResolver builds a resolver. remote may be nil for local-only setups.
func NewCouponResolver(remote CouponSource, fallback FallbackTable) *CouponResolver {
	if fallback == nil {
		fallback = FallbackTable{}
	}
	return &CouponResolver{
		remote:   remote,
		fallback: fallback,
		now:      time.Now,
	}
}

// WithObservability reports remote lookup failures through logg and m.
// Call it during wiring, before the resolver is shared.
func (r *CouponResolver) WithObservability(logg *logger.Logger, m *metrics.CartMetrics) *CouponResolver {
	r.logg = logg
	r.metrics = m
	return r
}

// Resolve returns a valid coupon for code or ErrInvalidCoupon.
func (r *CouponResolver) Resolve(ctx context.Context, code string) (*Coupon, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, ErrInvalidCoupon
	}
	now := r.now()

	if r.remote != nil {
		coupon, err := r.remote.FindCoupon(ctx, code)
		switch {
		case err != nil:
			r.metrics.IncRemoteFailure("coupon_lookup")
			if r.logg != nil {
				r.logg.WarnErr(r.logg.WithField(ctx, "coupon_code", code), "cart.coupon_lookup_failed", err)
			}
		case coupon != nil && coupon.IsValid(now):
			coupon.Code = code
			return coupon, nil
		}
	}

	if coupon, ok := r.fallback.lookup(code); ok && coupon.IsValid(now) {
		return coupon, nil
	}
	return nil, ErrInvalidCoupon
}
