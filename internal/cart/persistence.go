package cart

import (
	"context"
	"fmt"

	"github.com/airink/storefront-backend/pkg/logger"
	"github.com/airink/storefront-backend/pkg/metrics"
)

// LocalStore is the guaranteed backend, keyed by guest session id.
// Get returns (nil, nil) when the session has no cart yet.
type LocalStore interface {
	Get(ctx context.Context, sessionID string) (*Cart, error)
	Put(ctx context.Context, sessionID string, c *Cart) error
}

// RemoteStore keeps one cart document per signed-in user.
// Get returns (nil, nil) when the user has no document yet.
type RemoteStore interface {
	Get(ctx context.Context, userID string) (*Cart, error)
	Put(ctx context.Context, userID string, c *Cart) error
	Watch(ctx context.Context, userID string) (<-chan *Cart, error)
}

// Backend is the persistence strategy bound to one session.
type Backend interface {
	Mode() string
	Load(ctx context.Context) (*Cart, error)
	Save(ctx context.Context, c *Cart) error
	Watch(ctx context.Context) (<-chan *Cart, error)
}

const (
	ModeLocalOnly       = "local_only"
	ModeLocalPlusRemote = "local_plus_remote"
)

// BackendParams collects the collaborators used to select a Backend.
type BackendParams struct {
	Session Session
	Local   LocalStore
	Remote  RemoteStore
	Logger  *logger.Logger
	Metrics *metrics.CartMetrics
}

// NewBackend selects local+remote persistence when the session carries a user
// id and a remote store is configured, local-only persistence otherwise.
func NewBackend(p BackendParams) (Backend, error) {
	if p.Local == nil {
		return nil, fmt.Errorf("local cart store required")
	}
	local := &localOnly{sessionID: p.Session.ID, local: p.Local}
	if p.Remote == nil || !p.Session.Authenticated() {
		return local, nil
	}
	return &localPlusRemote{
		localOnly: local,
		userID:    p.Session.UserID,
		remote:    p.Remote,
		logg:      p.Logger,
		metrics:   p.Metrics,
	}, nil
}

type localOnly struct {
	sessionID string
	local     LocalStore
}

func (b *localOnly) Mode() string { return ModeLocalOnly }

func (b *localOnly) Load(ctx context.Context) (*Cart, error) {
	c, err := b.local.Get(ctx, b.sessionID)
	if err != nil {
		return nil, fmt.Errorf("load local cart: %w", err)
	}
	if c == nil {
		return Empty(), nil
	}
	return c, nil
}

func (b *localOnly) Save(ctx context.Context, c *Cart) error {
	if err := b.local.Put(ctx, b.sessionID, c); err != nil {
		return fmt.Errorf("save local cart: %w", err)
	}
	return nil
}

func (b *localOnly) Watch(context.Context) (<-chan *Cart, error) {
	return nil, nil
}

// localPlusRemote writes through to both stores. Remote failures are logged
// and counted, never returned.
type localPlusRemote struct {
	*localOnly
	userID  string
	remote  RemoteStore
	logg    *logger.Logger
	metrics *metrics.CartMetrics
}

func (b *localPlusRemote) Mode() string { return ModeLocalPlusRemote }

func (b *localPlusRemote) Load(ctx context.Context) (*Cart, error) {
	doc, err := b.remote.Get(ctx, b.userID)
	if err != nil {
		b.remoteFailed(ctx, "get", err)
		return b.localOnly.Load(ctx)
	}
	if doc != nil {
		if err := b.localOnly.Save(ctx, doc); err != nil {
			return nil, err
		}
		return doc, nil
	}

	guest, err := b.localOnly.Load(ctx)
	if err != nil {
		return nil, err
	}
	if guest.HasItems() {
		if err := b.remote.Put(ctx, b.userID, guest); err != nil {
			b.remoteFailed(ctx, "promote", err)
		} else if b.logg != nil {
			b.logg.Info(b.logg.WithField(ctx, "items", len(guest.Items)), "cart.promoted_guest_cart")
		}
	}
	return guest, nil
}

func (b *localPlusRemote) Save(ctx context.Context, c *Cart) error {
	if err := b.localOnly.Save(ctx, c); err != nil {
		return err
	}
	if err := b.remote.Put(ctx, b.userID, c); err != nil {
		b.remoteFailed(ctx, "put", err)
	}
	return nil
}

func (b *localPlusRemote) Watch(ctx context.Context) (<-chan *Cart, error) {
	ch, err := b.remote.Watch(ctx, b.userID)
	if err != nil {
		b.remoteFailed(ctx, "watch", err)
		return nil, nil
	}
	return ch, nil
}

func (b *localPlusRemote) remoteFailed(ctx context.Context, op string, err error) {
	b.metrics.IncRemoteFailure(op)
	if b.logg == nil {
		return
	}
	ctx = b.logg.WithFields(ctx, map[string]any{"remote_op": op, "user_id": b.userID})
	b.logg.WarnErr(ctx, "cart.remote_failed", err)
}
