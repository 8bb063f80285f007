package app

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"testing"

	"school_notification_bot/internal/domain/feed"
	"school_notification_bot/internal/domain/notification"
	"school_notification_bot/internal/domain/schedule"
	"school_notification_bot/internal/domain/subscriber"
	idb "school_notification_bot/internal/infra/database"
	"school_notification_bot/internal/infra/runloop"

	"github.com/sirupsen/logrus"
)

func testLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

type fakeSubscribers struct {
	mu      sync.Mutex
	subs    map[int64]*subscriber.Subscriber
	listErr error
}

func newFakeSubscribers(subs ...*subscriber.Subscriber) *fakeSubscribers {
	f := &fakeSubscribers{subs: make(map[int64]*subscriber.Subscriber)}
	for _, s := range subs {
		f.subs[s.TelegramID] = s
	}
	return f
}

func (f *fakeSubscribers) Create(_ context.Context, s *subscriber.Subscriber) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subs[s.TelegramID]; ok {
		return idb.ErrDuplicateTelegramID
	}
	cp := *s
	f.subs[s.TelegramID] = &cp
	return nil
}

func (f *fakeSubscribers) GetByTelegramID(_ context.Context, id int64) (*subscriber.Subscriber, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.subs[id]
	if !ok {
		return nil, idb.ErrSubscriberNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSubscribers) SetNotificationsEnabled(_ context.Context, id int64, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.subs[id]
	if !ok {
		return idb.ErrSubscriberNotFound
	}
	s.NotificationsEnabled = enabled
	return nil
}

func (f *fakeSubscribers) SetRole(_ context.Context, id int64, role subscriber.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.subs[id]
	if !ok {
		return idb.ErrSubscriberNotFound
	}
	s.Role = role
	return nil
}

func (f *fakeSubscribers) ListNotifiable(ctx context.Context) ([]*subscriber.Subscriber, error) {
	return f.filter(func(s *subscriber.Subscriber) bool { return s.NotificationsEnabled })
}

func (f *fakeSubscribers) ListByRole(_ context.Context, role subscriber.Role) ([]*subscriber.Subscriber, error) {
	return f.filter(func(s *subscriber.Subscriber) bool { return s.Role == role })
}

func (f *fakeSubscribers) ListAll(context.Context) ([]*subscriber.Subscriber, error) {
	return f.filter(func(*subscriber.Subscriber) bool { return true })
}

func (f *fakeSubscribers) filter(keep func(*subscriber.Subscriber) bool) ([]*subscriber.Subscriber, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*subscriber.Subscriber
	for _, s := range f.subs {
		if keep(s) {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TelegramID < out[j].TelegramID })
	return out, nil
}

type fakeLessons struct {
	byKey   map[string][]schedule.Lesson
	failFor map[string]error // class name -> error
	calls   int
	upserts []schedule.Lesson
}

func newFakeLessons(lessons ...schedule.Lesson) *fakeLessons {
	f := &fakeLessons{byKey: make(map[string][]schedule.Lesson), failFor: make(map[string]error)}
	for _, l := range lessons {
		k := l.ClassName + "/" + l.DayName
		f.byKey[k] = append(f.byKey[k], l)
	}
	return f
}

func (f *fakeLessons) ListByClassAndDay(_ context.Context, className, dayName string) ([]schedule.Lesson, error) {
	f.calls++
	if err := f.failFor[className]; err != nil {
		return nil, err
	}
	out := append([]schedule.Lesson(nil), f.byKey[className+"/"+dayName]...)
	sort.Slice(out, func(i, j int) bool { return out[i].LessonNumber < out[j].LessonNumber })
	return out, nil
}

func (f *fakeLessons) Upsert(_ context.Context, l schedule.Lesson) error {
	f.upserts = append(f.upserts, l)
	return nil
}

type fakeLedger struct {
	keys      map[string]bool
	existsErr error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{keys: make(map[string]bool)}
}

func (f *fakeLedger) Exists(_ context.Context, key notification.DedupKey) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	return f.keys[key.String()], nil
}

func (f *fakeLedger) Record(_ context.Context, key notification.DedupKey) (bool, error) {
	if f.keys[key.String()] {
		return false, nil
	}
	f.keys[key.String()] = true
	return true, nil
}

type sentMessage struct {
	Recipient int64
	Payload   notification.Payload
}

type fakeSender struct {
	mu      sync.Mutex
	sent    []sentMessage
	fail    map[int64]error
	panicOn map[int64]bool
}

func newFakeSender() *fakeSender {
	return &fakeSender{fail: make(map[int64]error), panicOn: make(map[int64]bool)}
}

func (f *fakeSender) Send(_ context.Context, recipient int64, p notification.Payload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicOn[recipient] {
		panic("boom")
	}
	if err := f.fail[recipient]; err != nil {
		return err
	}
	f.sent = append(f.sent, sentMessage{Recipient: recipient, Payload: p})
	return nil
}

func (f *fakeSender) recipients() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int64, 0, len(f.sent))
	for _, m := range f.sent {
		out = append(out, m.Recipient)
	}
	return out
}

var errSend = errors.New("send failed")

// queueSubmitter collects tasks so tests decide when the "loop" runs them.
type queueSubmitter struct {
	mu     sync.Mutex
	tasks  []runloop.Task
	closed bool
}

func (q *queueSubmitter) Submit(task runloop.Task) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.tasks = append(q.tasks, task)
	return true
}

func (q *queueSubmitter) drain(ctx context.Context) int {
	q.mu.Lock()
	tasks := q.tasks
	q.tasks = nil
	q.mu.Unlock()
	for _, t := range tasks {
		t(ctx)
	}
	return len(tasks)
}

type fakeSource struct {
	docs         []feed.Document
	scanErr      error
	subscribeErr error
	handler      feed.Handler
	onErr        feed.ErrorHandler
	unsubscribed int
}

func (f *fakeSource) Scan(context.Context, string) ([]feed.Document, error) {
	return f.docs, f.scanErr
}

func (f *fakeSource) Subscribe(_ context.Context, _ string, h feed.Handler, onErr feed.ErrorHandler) (func(), error) {
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	f.handler = h
	f.onErr = onErr
	return func() { f.unsubscribed++ }, nil
}

type fakeStore struct {
	docs    map[string]feed.Document
	updates map[string]map[string]any
	deleted []string
}

func newFakeStore(docs ...feed.Document) *fakeStore {
	f := &fakeStore{docs: make(map[string]feed.Document), updates: make(map[string]map[string]any)}
	for _, d := range docs {
		f.docs[d.ID] = d
	}
	return f
}

func (f *fakeStore) Get(_ context.Context, _, id string) (feed.Document, error) {
	d, ok := f.docs[id]
	if !ok {
		return feed.Document{}, feed.ErrDocumentNotFound
	}
	return d, nil
}

func (f *fakeStore) Update(_ context.Context, _, id string, fields map[string]any) error {
	if _, ok := f.docs[id]; !ok {
		return feed.ErrDocumentNotFound
	}
	f.updates[id] = fields
	return nil
}

func (f *fakeStore) Delete(_ context.Context, _, id string) error {
	if _, ok := f.docs[id]; !ok {
		return feed.ErrDocumentNotFound
	}
	delete(f.docs, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func equalIDs(t *testing.T, got, want []int64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("recipients = %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("recipients = %v, want %v", got, want)
		}
	}
}
