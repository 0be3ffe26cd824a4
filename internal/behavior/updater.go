package behavior

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/adpulse/adpulse/internal/model"
	"github.com/adpulse/adpulse/internal/store"
)

// ProfileStore is the slice of the persistence layer the updater needs.
type ProfileStore interface {
	GetProfile(ctx context.Context, advertisingID string) (*model.BehaviorProfile, error)
	UpsertProfile(ctx context.Context, p *model.BehaviorProfile) error
}

// Updater applies observations to stored profiles with at-most-one
// concurrent update per advertising id. Without this serialization the
// read-modify-write upsert can silently drop an update's contribution to
// total_requests under concurrent observations for the same id.
type Updater struct {
	profiles ProfileStore

	// key: advertising id
	locks *xsync.Map[string, *sync.Mutex]
}

// NewUpdater creates an Updater backed by the given profile store.
func NewUpdater(profiles ProfileStore) *Updater {
	return &Updater{
		profiles: profiles,
		locks:    xsync.NewMap[string, *sync.Mutex](),
	}
}

// Apply reads the current profile for the advertising id, computes the
// successor with Next, and writes it back, holding the per-id lock for
// the whole read-modify-write.
func (u *Updater) Apply(ctx context.Context, advertisingID string, ts time.Time, country, ipPrefix string) (*model.BehaviorProfile, error) {
	mu, _ := u.locks.LoadOrStore(advertisingID, &sync.Mutex{})
	mu.Lock()
	defer mu.Unlock()

	prev, err := u.profiles.GetProfile(ctx, advertisingID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("behavior read %s: %w", advertisingID, err)
	}

	next, err := Next(prev, advertisingID, ts, country, ipPrefix)
	if err != nil {
		return nil, err
	}
	if err := u.profiles.UpsertProfile(ctx, &next); err != nil {
		return nil, fmt.Errorf("behavior write %s: %w", advertisingID, err)
	}
	return &next, nil
}
