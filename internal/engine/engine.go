// Package engine implements the offline-tolerant mutation sync engine:
// the command surface the UI layer calls, the optimistic cache updates,
// the durable mutation queue, and the reconnect drain with conflict
// detection against server state.
package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/norvik-as/fieldops-api/internal/cache"
	"github.com/norvik-as/fieldops-api/internal/identity"
	"github.com/norvik-as/fieldops-api/internal/mutationlog"
	"github.com/norvik-as/fieldops-api/internal/notify"
	"github.com/norvik-as/fieldops-api/internal/remote"
)

// Engine is the sync controller: the single decision point for whether a
// command is applied immediately, queued, or rejected. It is constructed
// once per session with injected collaborators and passed by reference to
// the UI layer; there is no ambient global state.
//
// An empty organization id puts the engine in demo mode: it operates
// against a fixed local dataset and never reaches for the remote store.
type Engine struct {
	orgID    string
	store    remote.Store // nil when no remote connection is configured
	log      *mutationlog.Log
	cache    *cache.Cache
	notifier *notify.Emitter
	executor *Executor
	logger   *zap.Logger
	now      func() time.Time

	online  atomic.Bool
	pending atomic.Int64

	// assignedTo remembers the role scope of the last load so internal
	// reconcile fetches keep the same visibility
	scopeMu    sync.Mutex
	assignedTo string

	// drainMu serializes drains; commands never block on it
	drainMu sync.Mutex

	stopWatch func()
}

// Options tunes engine construction
type Options struct {
	// Clock overrides the wall clock (tests)
	Clock func() time.Time
	// StartOffline starts the engine with the connectivity flag down
	StartOffline bool
}

// New creates an engine for one organization with injected collaborators.
// store may be nil (no remote connection configured): every mutating
// command then queues durably.
func New(orgID string, store remote.Store, log *mutationlog.Log, c *cache.Cache, notifier *notify.Emitter, logger *zap.Logger, opts *Options) *Engine {
	if opts == nil {
		opts = &Options{}
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	e := &Engine{
		orgID:    orgID,
		store:    store,
		log:      log,
		cache:    c,
		notifier: notifier,
		executor: NewExecutor(store, now),
		logger:   logger,
		now:      now,
	}
	e.online.Store(!opts.StartOffline && store != nil)
	return e
}

// Cache returns the UI's read path
func (e *Engine) Cache() *cache.Cache {
	return e.cache
}

// Notifications returns the UI's notification list
func (e *Engine) Notifications() *notify.Emitter {
	return e.notifier
}

// PendingMutations returns the pending-changes gauge the UI renders as an
// offline banner
func (e *Engine) PendingMutations() int64 {
	return e.pending.Load()
}

// Online reports the current connectivity flag
func (e *Engine) Online() bool {
	return e.online.Load()
}

// Start loads the initial dataset, restores the pending counter from the
// durable log, drains anything queued from a previous run, and subscribes
// to the store's push-change feed when it offers one.
func (e *Engine) Start(ctx context.Context) error {
	if e.isDemo() {
		e.cache.Replace(demoWorkOrders(e.now()))
		e.logger.Info("engine started in demo mode (no organization id)")
		return nil
	}

	if err := e.refreshPending(ctx); err != nil {
		return err
	}
	if e.store == nil {
		e.logger.Info("engine started without a remote store, all mutations will queue",
			zap.String("organization_id", e.orgID),
			zap.Int64("pending_mutations", e.PendingMutations()))
		return nil
	}
	if err := e.reload(ctx); err != nil {
		// The store may be unreachable at startup; stay optimistic and
		// let the connectivity signal trigger the first real load.
		if remote.IsRetryable(err) {
			e.online.Store(false)
			e.logger.Warn("remote store unreachable at startup, starting offline", zap.Error(err))
		} else {
			return err
		}
	}

	if e.Online() {
		if err := e.SyncPendingMutations(ctx); err != nil {
			e.logger.Warn("startup drain failed", zap.Error(err))
		}
	}

	if w, ok := e.store.(remote.Watcher); ok {
		stop, err := w.Watch(ctx, e.orgID, func(table string) {
			e.handleRemoteChange(context.Background(), table)
		})
		if err != nil {
			e.logger.Warn("failed to subscribe to remote changes", zap.Error(err))
		} else {
			e.stopWatch = stop
		}
	}

	e.logger.Info("engine started",
		zap.String("organization_id", e.orgID),
		zap.Bool("online", e.Online()),
		zap.Int64("pending_mutations", e.PendingMutations()))
	return nil
}

// Close releases the push-change subscription
func (e *Engine) Close() {
	if e.stopWatch != nil {
		e.stopWatch()
		e.stopWatch = nil
	}
}

// SetConnectivity flips the connectivity flag. The offline-to-online
// transition triggers a drain of the queued mutations.
func (e *Engine) SetConnectivity(ctx context.Context, online bool) {
	if e.store == nil {
		return
	}
	wasOnline := e.online.Swap(online)
	if online && !wasOnline {
		e.logger.Info("connectivity restored, draining queued mutations")
		if err := e.SyncPendingMutations(ctx); err != nil {
			e.logger.Warn("reconnect drain failed", zap.Error(err))
		}
	}
	if !online && wasOnline {
		e.logger.Info("connectivity lost, mutations will queue")
	}
}

// Load fetches the tenant's work orders scoped by the caller's role
// (technicians only see orders assigned to them), hydrates children in
// two batched queries, and replaces the cache wholesale.
func (e *Engine) Load(ctx context.Context) error {
	if e.isDemo() {
		return nil
	}
	user, ok := identity.FromContext(ctx)
	if !ok {
		return ErrUserContextRequired
	}

	assignedTo := ""
	if user.IsTechnician() {
		assignedTo = user.UserID
	}
	e.scopeMu.Lock()
	e.assignedTo = assignedTo
	e.scopeMu.Unlock()

	return e.reload(ctx)
}

// reload re-fetches the full work-order set with the last-used role scope
// and reconciles the cache with server truth
func (e *Engine) reload(ctx context.Context) error {
	if e.store == nil {
		return nil
	}
	e.scopeMu.Lock()
	assignedTo := e.assignedTo
	e.scopeMu.Unlock()

	orders, err := e.store.ListWorkOrders(ctx, e.orgID, assignedTo)
	if err != nil {
		return err
	}

	ids := make([]uuid.UUID, len(orders))
	index := make(map[uuid.UUID]int, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
		index[orders[i].ID] = i
		orders[i].TimeLog = nil
		orders[i].PartsUsed = nil
	}

	if len(ids) > 0 {
		// Two batched queries, not N+1
		timeLogs, err := e.store.ListTimeLogs(ctx, e.orgID, ids)
		if err != nil {
			return err
		}
		for _, tl := range timeLogs {
			if i, ok := index[tl.WorkOrderID]; ok {
				orders[i].TimeLog = append(orders[i].TimeLog, tl)
			}
		}
		parts, err := e.store.ListParts(ctx, e.orgID, ids)
		if err != nil {
			return err
		}
		for _, p := range parts {
			if i, ok := index[p.WorkOrderID]; ok {
				orders[i].PartsUsed = append(orders[i].PartsUsed, p)
			}
		}
	}

	e.cache.Replace(orders)
	return nil
}

// handleRemoteChange reacts to a push notification about server-side
// changes with a full re-fetch, which naturally supersedes any now-stale
// optimistic state once it resolves
func (e *Engine) handleRemoteChange(ctx context.Context, table string) {
	e.logger.Debug("remote change received", zap.String("table", table))
	if err := e.reload(ctx); err != nil {
		e.logger.Warn("failed to reload after remote change", zap.Error(err))
	}
}

// refreshPending recomputes the pending gauge from the durable log
func (e *Engine) refreshPending(ctx context.Context) error {
	count, err := e.log.Count(ctx, e.orgID)
	if err != nil {
		return err
	}
	e.pending.Store(count)
	return nil
}

func (e *Engine) isDemo() bool {
	return e.orgID == ""
}

// actor returns the authenticated identity for attribution. Commands in
// demo mode still carry whatever identity the context has.
func (e *Engine) actor(ctx context.Context) (*identity.UserContext, bool) {
	return identity.FromContext(ctx)
}
