package cart

import (
	"github.com/shopspring/decimal"
)

const (
	DefaultTaxRate               = 0.08
	DefaultFreeShippingThreshold = 50.0
	DefaultFlatShippingFee       = 5.99
)

// Pricing holds the constants of the totals algorithm.
type Pricing struct {
	TaxRate               float64
	FreeShippingThreshold float64
	FlatShippingFee       float64
}

// DefaultPricing returns the storefront's standard tax and shipping terms.
func DefaultPricing() Pricing {
	return Pricing{
		TaxRate:               DefaultTaxRate,
		FreeShippingThreshold: DefaultFreeShippingThreshold,
		FlatShippingFee:       DefaultFlatShippingFee,
	}
}

// Recalculate rewrites every derived field of c from its items and coupon.
// Components are rounded to cents and total is the exact decimal sum of the
// rounded parts. Each field is then converted to float64 on its own, so a float
// recomputation of the sum may be off by one ulp while the cent values agree.
func (p Pricing) Recalculate(c *Cart) {
	c.normalize()

	subtotal := decimal.Zero
	for _, it := range c.Items {
		line := decimal.NewFromFloat(it.Price).Mul(decimal.NewFromInt(int64(it.Quantity)))
		subtotal = subtotal.Add(line)
	}
	subtotal = subtotal.Round(2)

	tax := subtotal.Mul(decimal.NewFromFloat(p.TaxRate)).Round(2)

	shipping := decimal.Zero
	if len(c.Items) > 0 && !subtotal.GreaterThan(decimal.NewFromFloat(p.FreeShippingThreshold)) {
		shipping = decimal.NewFromFloat(p.FlatShippingFee).Round(2)
	}

	discount := decimal.Zero
	if c.Coupon != nil {
		discount = c.Coupon.discount(subtotal, shipping)
	}

	total := subtotal.Add(tax).Add(shipping).Sub(discount)

	c.Subtotal = subtotal.InexactFloat64()
	c.Tax = tax.InexactFloat64()
	c.Shipping = shipping.InexactFloat64()
	c.Discount = discount.InexactFloat64()
	c.Total = total.InexactFloat64()
}
