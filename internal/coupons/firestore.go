package coupons

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/airink/storefront-backend/internal/cart"
)

const couponsCollection = "coupons"

// FirestoreSource reads coupons/<CODE> documents.
type FirestoreSource struct {
	client *firestore.Client
}

func NewFirestoreSource(client *firestore.Client) *FirestoreSource {
	return &FirestoreSource{client: client}
}

func (s *FirestoreSource) FindCoupon(ctx context.Context, code string) (*cart.Coupon, error) {
	if s == nil || s.client == nil {
		return nil, errors.New("firestore client is nil")
	}
	code = cart.NormalizeCode(code)
	if code == "" {
		return nil, nil
	}
	snap, err := s.client.Collection(couponsCollection).Doc(code).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get coupon: %w", err)
	}
	var c cart.Coupon
	if err := snap.DataTo(&c); err != nil {
		return nil, fmt.Errorf("decode coupon %s: %w", code, err)
	}
	if c.Code == "" {
		c.Code = code
	}
	return &c, nil
}

// Seed creates coupons/<CODE> for every entry of table that has no document
// yet. Existing documents are never overwritten.
func (s *FirestoreSource) Seed(ctx context.Context, table cart.FallbackTable) (int, error) {
	if s == nil || s.client == nil {
		return 0, errors.New("firestore client is nil")
	}
	created := 0
	for _, c := range table {
		c.Code = cart.NormalizeCode(c.Code)
		if c.Code == "" {
			continue
		}
		_, err := s.client.Collection(couponsCollection).Doc(c.Code).Create(ctx, c)
		switch {
		case err == nil:
			created++
		case status.Code(err) == codes.AlreadyExists:
		default:
			return created, fmt.Errorf("create coupon %s: %w", c.Code, err)
		}
	}
	return created, nil
}
