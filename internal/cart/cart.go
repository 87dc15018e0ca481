package cart

import (
	"strings"
	"time"
)

// Product is the catalog data needed to place a product in the cart.
type Product struct {
	ID    string  `json:"id" validate:"required"`
	Name  string  `json:"name" validate:"required"`
	Price float64 `json:"price" validate:"gte=0"`
	Image string  `json:"image,omitempty"`
}

// Variant narrows a product to a specific option (size, ink colour...).
type Variant struct {
	ID   string `json:"id" validate:"required"`
	Name string `json:"name,omitempty"`
}

// Item is one line of the cart. Identity is (ProductID, VariantID).
type Item struct {
	ID          string  `json:"id" firestore:"id"`
	ProductID   string  `json:"productId" firestore:"productId"`
	VariantID   string  `json:"variantId,omitempty" firestore:"variantId,omitempty"`
	VariantName string  `json:"variantName,omitempty" firestore:"variantName,omitempty"`
	Name        string  `json:"name" firestore:"name"`
	Price       float64 `json:"price" firestore:"price"`
	Quantity    int     `json:"quantity" firestore:"quantity"`
	Image       string  `json:"image,omitempty" firestore:"image,omitempty"`
}

// AppliedCoupon remembers the coupon terms so the discount can be recomputed
// whenever the subtotal moves.
type AppliedCoupon struct {
	Code  string     `json:"code" firestore:"code"`
	Kind  CouponKind `json:"kind" firestore:"kind"`
	Value float64    `json:"value" firestore:"value"`
}

// Cart is the persisted cart shape. Totals are derived and always recomputed
// from Items and Coupon.
type Cart struct {
	Items      []Item         `json:"items" firestore:"items"`
	Subtotal   float64        `json:"subtotal" firestore:"subtotal"`
	Tax        float64        `json:"tax" firestore:"tax"`
	Shipping   float64        `json:"shipping" firestore:"shipping"`
	Discount   float64        `json:"discount" firestore:"discount"`
	Total      float64        `json:"total" firestore:"total"`
	CouponCode string         `json:"couponCode,omitempty" firestore:"couponCode,omitempty"`
	Coupon     *AppliedCoupon `json:"coupon,omitempty" firestore:"coupon,omitempty"`
	UpdatedAt  time.Time      `json:"updatedAt" firestore:"updatedAt"`
}

// Empty returns the default cart: no items, zero totals, no coupon.
func Empty() *Cart {
	return &Cart{Items: []Item{}}
}

// ItemID builds the line identifier for a product/variant pair.
func ItemID(productID, variantID string) string {
	productID = strings.TrimSpace(productID)
	variantID = strings.TrimSpace(variantID)
	if variantID == "" {
		return productID
	}
	return productID + ":" + variantID
}

// Clone returns a deep copy safe to hand to callers.
func (c *Cart) Clone() *Cart {
	if c == nil {
		return Empty()
	}
	out := *c
	out.Items = make([]Item, len(c.Items))
	copy(out.Items, c.Items)
	if c.Coupon != nil {
		coupon := *c.Coupon
		out.Coupon = &coupon
	}
	return &out
}

// HasItems reports whether the cart holds at least one line.
func (c *Cart) HasItems() bool {
	return c != nil && len(c.Items) > 0
}

func (c *Cart) indexOf(itemID string) int {
	for i := range c.Items {
		if c.Items[i].ID == itemID {
			return i
		}
	}
	return -1
}

// normalize repairs documents written by older clients: missing line ids,
// nil slices and sub-1 quantities.
func (c *Cart) normalize() {
	if c.Items == nil {
		c.Items = []Item{}
	}
	kept := c.Items[:0]
	for _, it := range c.Items {
		if it.Quantity < 1 {
			continue
		}
		if it.ID == "" {
			it.ID = ItemID(it.ProductID, it.VariantID)
		}
		kept = append(kept, it)
	}
	c.Items = kept
	if c.Coupon == nil {
		c.CouponCode = ""
	} else {
		c.CouponCode = c.Coupon.Code
	}
}
