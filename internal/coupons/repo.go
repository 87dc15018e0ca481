package coupons

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/airink/storefront-backend/internal/cart"
	"github.com/airink/storefront-backend/internal/repo"
	"github.com/airink/storefront-backend/pkg/db"
	"github.com/airink/storefront-backend/pkg/db/models"
	pkgerrors "github.com/airink/storefront-backend/pkg/errors"
)

// Repository reads the coupons table.
type Repository struct {
	repo.Base
}

func NewRepository(conn *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(conn)}
}

// FindCoupon returns (nil, nil) for unknown codes.
func (r *Repository) FindCoupon(ctx context.Context, code string) (*cart.Coupon, error) {
	var row models.Coupon
	err := r.DB(ctx).Where("code = ?", cart.NormalizeCode(code)).Take(&row).Error
	if err != nil {
		if db.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("select coupon: %w", err)
	}
	return toDomain(row), nil
}

// Create inserts a coupon. Existing codes yield a CONFLICT error.
func (r *Repository) Create(ctx context.Context, c cart.Coupon) error {
	row := fromDomain(c)
	if row.Code == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "coupon code is required")
	}
	if !c.Kind.IsValid() || c.Value < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("coupon %s has an invalid type or value", row.Code))
	}
	if err := r.DB(ctx).Create(&row).Error; err != nil {
		if db.IsUniqueViolation(err) {
			return pkgerrors.Wrap(pkgerrors.CodeConflict, err, fmt.Sprintf("coupon %s already exists", row.Code))
		}
		return fmt.Errorf("insert coupon: %w", err)
	}
	return nil
}

func toDomain(row models.Coupon) *cart.Coupon {
	return &cart.Coupon{
		Code:       row.Code,
		Kind:       cart.CouponKind(strings.ToLower(row.Type)),
		Value:      row.Value.InexactFloat64(),
		IsActive:   row.IsActive,
		ExpiresAt:  row.ExpiresAt,
		UsageLimit: row.UsageLimit,
		UsageCount: row.UsageCount,
	}
}

func fromDomain(c cart.Coupon) models.Coupon {
	return models.Coupon{
		Code:       cart.NormalizeCode(c.Code),
		Type:       string(c.Kind),
		Value:      decimal.NewFromFloat(c.Value),
		IsActive:   c.IsActive,
		ExpiresAt:  c.ExpiresAt,
		UsageLimit: c.UsageLimit,
		UsageCount: c.UsageCount,
	}
}

// Seed inserts every coupon of table that is not already present, in one
// transaction, and reports how many rows were created. Existing codes are left
// untouched.
func (r *Repository) Seed(ctx context.Context, table cart.FallbackTable) (int, error) {
	created := 0
	err := r.Transaction(ctx, func(tx repo.Base) error {
		for _, c := range table {
			row := fromDomain(c)
			if row.Code == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "coupon code is required")
			}
			res := tx.DB(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
			if res.Error != nil {
				return fmt.Errorf("seed coupon %s: %w", row.Code, res.Error)
			}
			created += int(res.RowsAffected)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}
