// Package notify keeps the capped, most-recent-first notification list
// surfaced to the UI. The list is process-local: there is no persistence
// and no server echo, and dismissal is a purely local act.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/norvik-as/fieldops-api/internal/domain"
)

// DefaultCap is the maximum number of notifications retained
const DefaultCap = 40

// Emitter collects outcome notifications from every part of the engine.
// Multiple producers may push concurrently (a server push arriving while
// a local command completes); each push is an atomic prepend-and-truncate.
type Emitter struct {
	mu     sync.Mutex
	items  []domain.Notification
	cap    int
	now    func() time.Time
	logger *zap.Logger
}

// NewEmitter creates an emitter with the given cap; cap <= 0 uses DefaultCap
func NewEmitter(cap int, logger *zap.Logger) *Emitter {
	if cap <= 0 {
		cap = DefaultCap
	}
	return &Emitter{
		items:  make([]domain.Notification, 0, cap),
		cap:    cap,
		now:    time.Now,
		logger: logger,
	}
}

// Push prepends a notification, truncating the list to the cap
func (e *Emitter) Push(typ domain.NotificationType, title, message string) domain.Notification {
	n := domain.Notification{
		ID:      uuid.New(),
		Type:    typ,
		Title:   title,
		Message: message,
	}

	e.mu.Lock()
	n.CreatedAt = e.now()
	e.items = append([]domain.Notification{n}, e.items...)
	if len(e.items) > e.cap {
		e.items = e.items[:e.cap]
	}
	e.mu.Unlock()

	e.logger.Debug("notification pushed",
		zap.String("type", string(typ)),
		zap.String("title", title),
		zap.String("message", message))

	return n
}

// Info pushes an informational notification
func (e *Emitter) Info(title, message string) domain.Notification {
	return e.Push(domain.NotificationInfo, title, message)
}

// Success pushes a success notification
func (e *Emitter) Success(title, message string) domain.Notification {
	return e.Push(domain.NotificationSuccess, title, message)
}

// Warning pushes a warning notification
func (e *Emitter) Warning(title, message string) domain.Notification {
	return e.Push(domain.NotificationWarning, title, message)
}

// Error pushes an error notification
func (e *Emitter) Error(title, message string) domain.Notification {
	return e.Push(domain.NotificationError, title, message)
}

// List returns a snapshot of the notifications, most recent first
func (e *Emitter) List() []domain.Notification {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.Notification, len(e.items))
	copy(out, e.items)
	return out
}

// Dismiss removes one notification by id; unknown ids are a no-op
func (e *Emitter) Dismiss(id uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, n := range e.items {
		if n.ID == id {
			e.items = append(e.items[:i], e.items[i+1:]...)
			return
		}
	}
}

// Clear empties the list
func (e *Emitter) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.items = e.items[:0]
}

// Len returns the number of retained notifications
func (e *Emitter) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.items)
}
