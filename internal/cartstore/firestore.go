package cartstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/airink/storefront-backend/internal/cart"
	"github.com/airink/storefront-backend/pkg/logger"
)

const cartsCollection = "carts"

// FirestoreRemote keeps carts in the carts collection, docId = user id.
type FirestoreRemote struct {
	client *firestore.Client
	logg   *logger.Logger
}

func NewFirestoreRemote(client *firestore.Client, logg *logger.Logger) *FirestoreRemote {
	return &FirestoreRemote{client: client, logg: logg}
}

func (r *FirestoreRemote) doc(userID string) (*firestore.DocumentRef, error) {
	if r == nil || r.client == nil {
		return nil, errors.New("firestore client is nil")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return nil, errors.New("user id is empty")
	}
	return r.client.Collection(cartsCollection).Doc(uid), nil
}

// Get returns (nil, nil) when the user has no cart document.
func (r *FirestoreRemote) Get(ctx context.Context, userID string) (*cart.Cart, error) {
	ref, err := r.doc(userID)
	if err != nil {
		return nil, err
	}
	snap, err := ref.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get cart document: %w", err)
	}
	var c cart.Cart
	if err := snap.DataTo(&c); err != nil {
		return nil, fmt.Errorf("decode cart document: %w", err)
	}
	return &c, nil
}

// Put overwrites the whole document.
func (r *FirestoreRemote) Put(ctx context.Context, userID string, c *cart.Cart) error {
	ref, err := r.doc(userID)
	if err != nil {
		return err
	}
	if _, err := ref.Set(ctx, c); err != nil {
		return fmt.Errorf("set cart document: %w", err)
	}
	return nil
}

// Watch follows the user's document through Firestore snapshot listeners.
func (r *FirestoreRemote) Watch(ctx context.Context, userID string) (<-chan *cart.Cart, error) {
	ref, err := r.doc(userID)
	if err != nil {
		return nil, err
	}
	it := ref.Snapshots(ctx)
	out := make(chan *cart.Cart, watchBuffer)
	go func() {
		defer close(out)
		defer it.Stop()
		for {
			snap, err := it.Next()
			if err != nil {
				if ctx.Err() == nil && status.Code(err) != codes.Canceled && r.logg != nil {
					r.logg.WarnErr(ctx, "cartstore.firestore_watch_stopped", err)
				}
				return
			}
			if !snap.Exists() {
				continue
			}
			var c cart.Cart
			if err := snap.DataTo(&c); err != nil {
				if r.logg != nil {
					r.logg.WarnErr(ctx, "cartstore.bad_snapshot", err)
				}
				continue
			}
			select {
			case out <- &c:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
