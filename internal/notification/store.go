package notification

import (
	"context"
	"errors"
	"sync"
	"time"

	"bizgrid.org/internal/ids"
	"bizgrid.org/internal/kv"
	"bizgrid.org/internal/obs"
)

const (
	storageKey = "notifications"

	// Retention bounds the feed; older records are purged on demand, not by a
	// background sweep.
	Retention = 30 * 24 * time.Hour
)

// ErrInvalidDraft indicates a draft with an unknown type or priority.
var ErrInvalidDraft = errors.New("notification: invalid draft")

// Listener observes a copy of the ordered feed after every mutation.
type Listener func([]Record)

// Store maintains a durable, most-recent-first feed of typed alerts and
// notifies all subscribers synchronously on every mutation.
type Store struct {
	mu            sync.RWMutex
	kv            kv.Store
	alerter       Alerter
	now           func() time.Time
	records       []Record
	subs          map[int]Listener
	nextSub       int
	alertsEnabled bool
}

// Option configures Store behavior.
type Option func(*Store)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Store) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithAlerter wires a platform alert surface; without one RequestPermission
// reports false and no alerts fire.
func WithAlerter(a Alerter) Option {
	return func(s *Store) {
		s.alerter = a
	}
}

// New constructs the store and hydrates the feed from durable storage,
// purging records whose retention window lapsed while the process was down.
// If the filter removed anything the surviving feed is rewritten immediately,
// so storage heals itself. A corrupt feed degrades to empty, never an error.
func New(ctx context.Context, store kv.Store, opts ...Option) (*Store, error) {
	s := &Store{
		kv:   store,
		now:  time.Now,
		subs: make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(s)
	}

	var stored []Record
	status, err := kv.LoadJSON(ctx, store, storageKey, &stored)
	if err != nil {
		return nil, err
	}
	obs.ObserveHydration("notification", string(status))
	if status == kv.HydrationValid {
		cutoff := s.now().UTC().Add(-Retention)
		kept := stored[:0]
		for _, r := range stored {
			if r.Timestamp.After(cutoff) {
				kept = append(kept, r)
			}
		}
		s.records = kept
		if len(kept) < len(stored) {
			if err := kv.SaveJSON(ctx, store, storageKey, kept); err != nil {
				return nil, err
			}
		}
	}
	return s, nil
}

// Subscribe registers a listener, fires it immediately with the current feed
// snapshot, and returns an unsubscribe func removing exactly that listener.
// Fan-out is synchronous; a listener mutating the store during notification
// recurses.
func (s *Store) Subscribe(fn Listener) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	snapshot, _ := s.snapshotLocked()
	s.mu.Unlock()

	fn(snapshot)

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Add assigns a fresh id and timestamp, marks the record unread, prepends it
// to the feed, persists, notifies subscribers, and fires a best-effort
// platform alert when permission was previously granted. Persistence failures
// propagate.
func (s *Store) Add(ctx context.Context, draft Draft) (Record, error) {
	if !draft.Type.Valid() || !draft.Priority.Valid() {
		return Record{}, ErrInvalidDraft
	}

	s.mu.Lock()
	record := Record{
		ID:        ids.New(),
		Type:      draft.Type,
		Title:     draft.Title,
		Message:   draft.Message,
		Timestamp: s.now().UTC(),
		Read:      false,
		Priority:  draft.Priority,
		ActionURL: draft.ActionURL,
		Metadata:  draft.Metadata,
	}
	// Most-recent-first: always insert at the head. The stored copy detaches
	// from the caller's draft metadata.
	s.records = append([]Record{record.clone()}, s.records...)
	if err := kv.SaveJSON(ctx, s.kv, storageKey, s.records); err != nil {
		s.records = s.records[1:]
		s.mu.Unlock()
		return Record{}, err
	}
	snapshot, listeners := s.snapshotLocked()
	alert := s.alertsEnabled && s.alerter != nil
	alerter := s.alerter
	s.mu.Unlock()

	obs.ObserveNotification(string(record.Type))
	for _, fn := range listeners {
		fn(snapshot)
	}
	if alert {
		go alerter.Alert(context.WithoutCancel(ctx), record.Title, record.Message)
	}
	return record, nil
}

// AddComplianceAlert files a high-priority compliance record pointing at the
// compliance workspace.
func (s *Store) AddComplianceAlert(ctx context.Context, title, message string) (Record, error) {
	return s.addTyped(ctx, TypeCompliance, title, message)
}

// AddInvoiceReminder files a high-priority invoice record.
func (s *Store) AddInvoiceReminder(ctx context.Context, title, message string) (Record, error) {
	return s.addTyped(ctx, TypeInvoice, title, message)
}

// AddCampaignUpdate files a medium-priority marketing record.
func (s *Store) AddCampaignUpdate(ctx context.Context, title, message string) (Record, error) {
	return s.addTyped(ctx, TypeCampaign, title, message)
}

// AddCommunityUpdate files a low-priority community record.
func (s *Store) AddCommunityUpdate(ctx context.Context, title, message string) (Record, error) {
	return s.addTyped(ctx, TypeCommunity, title, message)
}

// AddSystemNotification files a medium-priority system record with no action
// link.
func (s *Store) AddSystemNotification(ctx context.Context, title, message string) (Record, error) {
	return s.addTyped(ctx, TypeSystem, title, message)
}

func (s *Store) addTyped(ctx context.Context, t Type, title, message string) (Record, error) {
	defaults := typeDefaults[t]
	return s.Add(ctx, Draft{
		Type:      t,
		Title:     title,
		Message:   message,
		Priority:  defaults.priority,
		ActionURL: defaults.actionURL,
	})
}

// MarkAsRead flags the matching record as read. An unknown id is a no-op, not
// an error; the feed is persisted and subscribers notified either way.
func (s *Store) MarkAsRead(ctx context.Context, id string) error {
	return s.mutate(ctx, func(records []Record) []Record {
		for i := range records {
			if records[i].ID == id {
				records[i].Read = true
				break
			}
		}
		return records
	})
}

// MarkAllAsRead flags every record as read. Idempotent.
func (s *Store) MarkAllAsRead(ctx context.Context) error {
	return s.mutate(ctx, func(records []Record) []Record {
		for i := range records {
			records[i].Read = true
		}
		return records
	})
}

// Delete removes the matching record; an unknown id is a no-op.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.mutate(ctx, func(records []Record) []Record {
		for i := range records {
			if records[i].ID == id {
				return append(records[:i], records[i+1:]...)
			}
		}
		return records
	})
}

// ClearOld purges records older than the retention window.
func (s *Store) ClearOld(ctx context.Context) error {
	cutoff := s.now().UTC().Add(-Retention)
	return s.mutate(ctx, func(records []Record) []Record {
		kept := records[:0]
		for _, r := range records {
			if r.Timestamp.After(cutoff) {
				kept = append(kept, r)
			}
		}
		return kept
	})
}

func (s *Store) mutate(ctx context.Context, apply func([]Record) []Record) error {
	s.mu.Lock()
	s.records = apply(s.records)
	if err := kv.SaveJSON(ctx, s.kv, storageKey, s.records); err != nil {
		s.mu.Unlock()
		return err
	}
	snapshot, listeners := s.snapshotLocked()
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(snapshot)
	}
	return nil
}

// Notifications returns a copy of the feed, most recent first.
func (s *Store) Notifications() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot, _ := s.snapshotLocked()
	return snapshot
}

// NotificationsByType returns the matching records, most recent first.
func (s *Store) NotificationsByType(t Type) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Record
	for _, r := range s.records {
		if r.Type == t {
			out = append(out, r.clone())
		}
	}
	return out
}

// HighPriority returns unread records with high priority.
func (s *Store) HighPriority() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Record
	for _, r := range s.records {
		if !r.Read && r.Priority == PriorityHigh {
			out = append(out, r.clone())
		}
	}
	return out
}

// UnreadCount reports how many records are unread.
func (s *Store) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, r := range s.records {
		if !r.Read {
			count++
		}
	}
	return count
}

// RequestPermission asks the platform alert surface for permission and
// remembers the answer; without a surface it reports false.
func (s *Store) RequestPermission(ctx context.Context) bool {
	s.mu.RLock()
	alerter := s.alerter
	s.mu.RUnlock()
	if alerter == nil {
		return false
	}
	granted := alerter.RequestPermission(ctx)
	s.mu.Lock()
	s.alertsEnabled = granted
	s.mu.Unlock()
	return granted
}

// snapshotLocked copies the feed and listener set under the caller's lock.
// Records are deep-copied so listeners cannot mutate store state through a
// snapshot's metadata.
func (s *Store) snapshotLocked() ([]Record, []Listener) {
	snapshot := make([]Record, len(s.records))
	for i, r := range s.records {
		snapshot[i] = r.clone()
	}
	listeners := make([]Listener, 0, len(s.subs))
	for _, fn := range s.subs {
		listeners = append(listeners, fn)
	}
	return snapshot, listeners
}
