package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"school_notification_bot/internal/domain/feed"
	"school_notification_bot/internal/domain/notification"
	"school_notification_bot/internal/infra/runloop"

	"github.com/sirupsen/logrus"
)

var ErrFeedUnavailable = errors.New("change feed is unavailable")

// Rule is what distinguishes one feed listener from another.
type Rule interface {
	Name() string
	Collection() string
	// Seen reports whether a document found by the startup scan counts as already handled.
	Seen(doc feed.Document) bool
	// Qualify converts doc into a payload when it is in the qualifying state.
	Qualify(doc feed.Document) (notification.Payload, bool, error)
}

// Submitter hands work to the dispatch loop from any goroutine.
type Submitter interface {
	Submit(task runloop.Task) bool
}

// ReportFunc is called on the dispatch loop after each delivery.
type ReportFunc func(ctx context.Context, rule Rule, report Report)

// TrackedSet is the in-memory set of document ids a listener has handled.
// It lives only as long as the process.
type TrackedSet struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func NewTrackedSet() *TrackedSet {
	return &TrackedSet{ids: make(map[string]struct{})}
}

// Add reports whether id was not tracked before.
func (t *TrackedSet) Add(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.ids[id]; ok {
		return false
	}
	t.ids[id] = struct{}{}
	return true
}

func (t *TrackedSet) Has(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.ids[id]
	return ok
}

func (t *TrackedSet) Forget(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.ids, id)
}

func (t *TrackedSet) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.ids)
}

// ListenerStatus is a snapshot for health reporting.
type ListenerStatus struct {
	Name       string `json:"name"`
	Collection string `json:"collection"`
	Enabled    bool   `json:"enabled"`
	Tracked    int    `json:"tracked"`
	Delivered  int    `json:"delivered"`
	Error      string `json:"error,omitempty"`
}

// Listener bridges a change feed into the dispatch loop. Change batches
// arrive on the feed client's goroutine and are only ever processed on the loop.
type Listener struct {
	rule     Rule
	source   feed.Source
	loop     Submitter
	delivery *FanOut
	onReport ReportFunc
	tracked  *TrackedSet
	log      *logrus.Entry

	mu          sync.Mutex
	enabled     bool
	delivered   int
	feedErr     error
	unsubscribe func()
}

// NewListener creates a listener for rule. source may be nil when the feed
// client could not be initialized; Start then disables the listener. log is
// expected to carry the feed and collection fields.
func NewListener(rule Rule, source feed.Source, loop Submitter, delivery *FanOut, onReport ReportFunc, log *logrus.Entry) *Listener {
	return &Listener{
		rule:     rule,
		source:   source,
		loop:     loop,
		delivery: delivery,
		onReport: onReport,
		tracked:  NewTrackedSet(),
		log:      log,
	}
}

// Start seeds the tracked set from a full scan and then subscribes to the feed.
// Any failure leaves the listener disabled for the lifetime of the process.
func (l *Listener) Start(ctx context.Context) error {
	if l.source == nil {
		l.log.Warn("Feed client unavailable, listener disabled")
		return ErrFeedUnavailable
	}

	docs, err := l.source.Scan(ctx, l.rule.Collection())
	if err != nil {
		l.log.WithError(err).Error("Initial scan failed, listener disabled")
		return fmt.Errorf("initial scan of %s: %w", l.rule.Collection(), err)
	}
	for _, doc := range docs {
		if l.rule.Seen(doc) {
			l.tracked.Add(doc.ID)
		}
	}
	l.log.WithFields(logrus.Fields{"scanned": len(docs), "tracked": l.tracked.Len()}).Info("Tracked set seeded")

	unsubscribe, err := l.source.Subscribe(ctx, l.rule.Collection(), l.onChanges, l.onFeedError)
	if err != nil {
		l.log.WithError(err).Error("Subscribe failed, listener disabled")
		return fmt.Errorf("subscribe to %s: %w", l.rule.Collection(), err)
	}

	l.mu.Lock()
	l.unsubscribe = unsubscribe
	// The feed may already have failed on its own goroutine.
	l.enabled = l.feedErr == nil
	l.mu.Unlock()
	l.log.Info("Listener started")
	return nil
}

// Stop unsubscribes from the feed. It is safe to call more than once and on a
// listener that never started.
func (l *Listener) Stop() {
	l.mu.Lock()
	unsubscribe := l.unsubscribe
	l.unsubscribe = nil
	l.enabled = false
	l.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
		l.log.Info("Listener stopped")
	}
}

// Tracked exposes the listener's tracked set.
func (l *Listener) Tracked() *TrackedSet {
	return l.tracked
}

func (l *Listener) Status() ListenerStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	status := ListenerStatus{
		Name:       l.rule.Name(),
		Collection: l.rule.Collection(),
		Enabled:    l.enabled,
		Tracked:    l.tracked.Len(),
		Delivered:  l.delivered,
	}
	if l.feedErr != nil {
		status.Error = l.feedErr.Error()
	}
	return status
}

// onFeedError runs on the feed client's goroutine when the subscription dies.
// The listener stays disabled for the rest of the process.
func (l *Listener) onFeedError(err error) {
	l.mu.Lock()
	first := l.feedErr == nil
	if first {
		l.feedErr = err
	}
	l.enabled = false
	l.mu.Unlock()

	if first {
		l.log.WithError(err).Error("Change feed failed, listener disabled")
	}
}

// onChanges runs on the feed client's goroutine. It copies the batch and
// hands it to the loop without touching any listener state.
func (l *Listener) onChanges(changes []feed.Change) {
	if len(changes) == 0 {
		return
	}
	batch := make([]feed.Change, len(changes))
	copy(batch, changes)
	if !l.loop.Submit(func(ctx context.Context) { l.process(ctx, batch) }) {
		l.log.WithField("changes", len(batch)).Warn("Dispatch loop stopped, change batch dropped")
	}
}

func (l *Listener) process(ctx context.Context, changes []feed.Change) {
	for _, ch := range changes {
		l.processOne(ctx, ch)
	}
}

func (l *Listener) processOne(ctx context.Context, ch feed.Change) {
	docLog := l.log.WithFields(logrus.Fields{"doc_id": ch.Doc.ID, "change": ch.Kind.String()})
	defer func() {
		if r := recover(); r != nil {
			docLog.WithField("panic", r).Error("Recovered panic while processing document")
		}
	}()

	if ch.Kind == feed.Removed {
		return
	}
	payload, ok, err := l.rule.Qualify(ch.Doc)
	if err != nil {
		docLog.WithError(err).Warn("Skipping malformed document")
		return
	}
	if !ok {
		return
	}
	if !l.tracked.Add(ch.Doc.ID) {
		docLog.Debug("Document already handled")
		return
	}

	docLog.Info("New qualifying document")
	report, err := l.delivery.Deliver(ctx, payload)
	if err != nil {
		docLog.WithError(err).Error("Failed to deliver document notification")
		return
	}

	l.mu.Lock()
	l.delivered++
	l.mu.Unlock()
	docLog.WithFields(logrus.Fields{
		"fanout_id": report.ID,
		"succeeded": report.Succeeded,
		"failed":    report.Failed,
	}).Info("Document notification delivered")

	if l.onReport != nil {
		l.onReport(ctx, l.rule, report)
	}
}
