package cart

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CouponKind selects how a coupon's value is turned into a discount.
type CouponKind string

const (
	CouponPercentage   CouponKind = "percentage"
	CouponFixed        CouponKind = "fixed"
	CouponFreeShipping CouponKind = "free_shipping"
)

func (k CouponKind) IsValid() bool {
	switch k {
	case CouponPercentage, CouponFixed, CouponFreeShipping:
		return true
	}
	return false
}

// Coupon is a discount definition as stored in the coupon catalog.
type Coupon struct {
	Code       string     `json:"code" yaml:"code" firestore:"code"`
	Kind       CouponKind `json:"type" yaml:"type" firestore:"type"`
	Value      float64    `json:"value" yaml:"value" firestore:"value"`
	IsActive   bool       `json:"isActive" yaml:"isActive" firestore:"isActive"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty" yaml:"expiresAt,omitempty" firestore:"expiresAt,omitempty"`
	UsageLimit *int       `json:"usageLimit,omitempty" yaml:"usageLimit,omitempty" firestore:"usageLimit,omitempty"`
	UsageCount int        `json:"usageCount" yaml:"usageCount" firestore:"usageCount"`
}

// NormalizeCode trims and upper-cases a user supplied coupon code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsValid reports whether the coupon is active, not expired and under its usage cap.
func (c Coupon) IsValid(now time.Time) bool {
	if !c.IsActive || !c.Kind.IsValid() {
		return false
	}
	if c.ExpiresAt != nil && !c.ExpiresAt.IsZero() && now.After(*c.ExpiresAt) {
		return false
	}
	if c.UsageLimit != nil && c.UsageCount >= *c.UsageLimit {
		return false
	}
	return true
}

// Applied returns the terms stored on a cart once the coupon is accepted.
func (c Coupon) Applied() *AppliedCoupon {
	return &AppliedCoupon{
		Code:  NormalizeCode(c.Code),
		Kind:  c.Kind,
		Value: c.Value,
	}
}

// discount never exceeds the amount it applies to: merchandise for
// percentage/fixed coupons, the shipping fee for free-shipping coupons.
func (a AppliedCoupon) discount(subtotal, shipping decimal.Decimal) decimal.Decimal {
	value := decimal.NewFromFloat(a.Value)
	if value.IsNegative() {
		return decimal.Zero
	}

	var amount decimal.Decimal
	switch a.Kind {
	case CouponPercentage:
		if value.GreaterThan(decimal.NewFromInt(100)) {
			value = decimal.NewFromInt(100)
		}
		amount = subtotal.Mul(value).Div(decimal.NewFromInt(100))
	case CouponFixed:
		amount = decimal.Min(value, subtotal)
	case CouponFreeShipping:
		amount = shipping
	default:
		return decimal.Zero
	}
	return amount.Round(2)
}
