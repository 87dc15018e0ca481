package cartstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/airink/storefront-backend/internal/cart"
	"github.com/airink/storefront-backend/internal/repo"
	"github.com/airink/storefront-backend/pkg/db"
	"github.com/airink/storefront-backend/pkg/db/models"
	"github.com/airink/storefront-backend/pkg/logger"
	"github.com/airink/storefront-backend/pkg/redis"
)

const watchBuffer = 4

// Notifier fans cart writes out to other processes holding the same user's cart.
type Notifier interface {
	Publish(ctx context.Context, channel string, payload string) error
	Subscribe(ctx context.Context, channel string) (redis.Subscription, error)
	CartUpdatesChannel(userID string) string
}

// PostgresRemote stores one cart document per user in cart_documents and
// announces writes on a per-user channel.
type PostgresRemote struct {
	repo.Base
	client   *db.Client
	notifier Notifier
	logg     *logger.Logger
}

// NewPostgresRemote builds a RemoteStore. notifier may be nil, in which case
// Watch reports no live updates.
func NewPostgresRemote(client *db.Client, notifier Notifier, logg *logger.Logger) *PostgresRemote {
	return &PostgresRemote{
		Base:     repo.NewBase(client.DB()),
		client:   client,
		notifier: notifier,
		logg:     logg,
	}
}

func (r *PostgresRemote) Get(ctx context.Context, userID string) (*cart.Cart, error) {
	var doc models.CartDocument
	err := r.DB(ctx).Where("user_id = ?", strings.TrimSpace(userID)).Take(&doc).Error
	if err != nil {
		if db.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("select cart document: %w", err)
	}
	var c cart.Cart
	if err := json.Unmarshal(doc.Payload, &c); err != nil {
		return nil, fmt.Errorf("decode cart document: %w", err)
	}
	return &c, nil
}

func (r *PostgresRemote) Put(ctx context.Context, userID string, c *cart.Cart) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode cart document: %w", err)
	}
	doc := &models.CartDocument{
		UserID:    strings.TrimSpace(userID),
		Payload:   payload,
		UpdatedAt: c.UpdatedAt,
	}
	if err := r.client.Upsert(ctx, doc, []string{"user_id"}, []string{"payload", "updated_at"}); err != nil {
		return fmt.Errorf("upsert cart document: %w", err)
	}
	if r.notifier == nil {
		return nil
	}
	if err := r.notifier.Publish(ctx, r.notifier.CartUpdatesChannel(doc.UserID), string(payload)); err != nil {
		return fmt.Errorf("notify cart update: %w", err)
	}
	return nil
}

// Watch streams documents published for userID until ctx is cancelled.
func (r *PostgresRemote) Watch(ctx context.Context, userID string) (<-chan *cart.Cart, error) {
	if r.notifier == nil {
		return nil, nil
	}
	sub, err := r.notifier.Subscribe(ctx, r.notifier.CartUpdatesChannel(strings.TrimSpace(userID)))
	if err != nil {
		return nil, err
	}

	out := make(chan *cart.Cart, watchBuffer)
	go func() {
		defer close(out)
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case payload, ok := <-sub.Messages():
				if !ok {
					return
				}
				var c cart.Cart
				if err := json.Unmarshal([]byte(payload), &c); err != nil {
					if r.logg != nil {
						r.logg.WarnErr(ctx, "cartstore.bad_update_payload", err)
					}
					continue
				}
				select {
				case out <- &c:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
