package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	pubsubport "github.com/paulostering/burpp25-sub000/internal/infrastructure/pubsub/port"
	qport "github.com/paulostering/burpp25-sub000/internal/infrastructure/queue/port"
	messaging "github.com/paulostering/burpp25-sub000/internal/pkg/messaging/application/domain"
	"github.com/paulostering/burpp25-sub000/internal/pkg/messaging/application/usecase"
	repository "github.com/paulostering/burpp25-sub000/internal/pkg/messaging/persistence/repository/port"
	"github.com/paulostering/burpp25-sub000/internal/pkg/messaging/realtime"
)

// State is the lifecycle of a Session. There is no way back to Ready from a
// terminal state; switching conversations means closing this instance and
// constructing a new one.
type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
	StateNotFound
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateNotFound:
		return "not_found"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ErrClosed reports that the session was closed while an operation was in
// flight.
var ErrClosed = errors.New("messaging: session closed")

const defaultReconcileAfter = 3 * time.Second

// Snapshot is the render-ready view exposed to the presentation layer.
type Snapshot struct {
	State          State               `json:"state"`
	Loading        bool                `json:"loading"`
	ConversationID string              `json:"conversation_id"`
	OtherParty     messaging.Profile   `json:"other_party"`
	Messages       []messaging.Message `json:"messages"`
}

// Config wires a Session to its collaborators.
type Config struct {
	ViewerID string
	Repo     repository.MessageRepository
	Broker   pubsubport.Broker
	Queue    qport.Client // optional; inbox touch after sends

	// ReconcileAfter bounds how long the session waits for its own insert
	// event before falling back to a full refetch. Zero means the default.
	ReconcileAfter time.Duration

	// OnChange, when set, receives a fresh Snapshot after every visible
	// mutation of the view.
	OnChange func(Snapshot)
}

// Session owns the in-memory view of one open conversation for one viewer.
// It is the single writer of the message list and merges its three inputs
// (historical fetch, channel events, send results) idempotently, so any
// arrival order yields the same rendered state.
type Session struct {
	viewerID       string
	repo           repository.MessageRepository
	broker         pubsubport.Broker
	reconcileAfter time.Duration
	onChange       func(Snapshot)

	composer *Composer
	receipts *ReceiptSync

	// notifyMu serializes snapshot capture with delivery so observers never
	// see an older snapshot after a newer one.
	notifyMu sync.Mutex

	mu             sync.Mutex
	state          State
	conversationID string
	other          messaging.Profile
	messages       []messaging.Message
	seen           map[string]struct{}
	pending        map[string]*time.Timer
	channel        *realtime.Channel
	ctx            context.Context
	cancel         context.CancelFunc
}

// New constructs an unopened Session.
func New(cfg Config) *Session {
	if cfg.ReconcileAfter <= 0 {
		cfg.ReconcileAfter = defaultReconcileAfter
	}
	s := &Session{
		viewerID:       cfg.ViewerID,
		repo:           cfg.Repo,
		broker:         cfg.Broker,
		reconcileAfter: cfg.ReconcileAfter,
		onChange:       cfg.OnChange,
		state:          StateUninitialized,
		seen:           make(map[string]struct{}),
		pending:        make(map[string]*time.Timer),
	}
	s.composer = NewComposer(cfg.ViewerID, usecase.NewSendMessageUseCase(cfg.Repo, cfg.Broker, cfg.Queue))
	s.receipts = NewReceiptSync(cfg.ViewerID, usecase.NewMarkMessagesReadUseCase(cfg.Repo, cfg.Broker))
	return s
}

// Open loads the conversation and takes the session to Ready. The channel is
// subscribed before the history fetch so events racing the fetch are merged
// rather than lost. Metadata or history failure is terminal for this
// instance: the session lands in NotFound, the subscription is released, and
// no retry is attempted.
func (s *Session) Open(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	if s.state != StateUninitialized {
		st := s.state
		s.mu.Unlock()
		return fmt.Errorf("messaging: session already opened (state %s)", st)
	}
	s.state = StateLoading
	s.conversationID = conversationID
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.mu.Unlock()
	s.notify()

	ch, err := realtime.Subscribe(s.ctx, s.broker, conversationID, s.OnInsertEvent, s.OnUpdateEvent)
	if err != nil {
		return s.failOpen(fmt.Errorf("open conversation: %w", err))
	}
	s.mu.Lock()
	if s.state != StateLoading {
		s.mu.Unlock()
		ch.Unsubscribe()
		return ErrClosed
	}
	s.channel = ch
	s.mu.Unlock()

	conv, err := s.repo.GetConversation(ctx, conversationID)
	if err != nil {
		return s.failOpen(fmt.Errorf("open conversation: %w", err))
	}
	other, err := conv.OtherParty(s.viewerID)
	if err != nil {
		return s.failOpen(err)
	}
	history, err := s.repo.ListMessages(ctx, conversationID)
	if err != nil {
		return s.failOpen(fmt.Errorf("open conversation: %w", err))
	}

	s.mu.Lock()
	if s.state != StateLoading {
		s.mu.Unlock()
		return ErrClosed
	}
	s.other = other
	for _, m := range history {
		s.mergeLocked(m)
	}
	s.state = StateReady
	merged := s.copyMessagesLocked()
	s.mu.Unlock()
	s.notify()

	// Batch receipts over everything visible so far, including any messages
	// that raced in over the channel during the fetch. The local flip is
	// gated on storage confirming.
	flipped, err := s.receipts.MarkBatch(ctx, conversationID, merged)
	if err != nil {
		log.Printf("session: batch mark read: %v", err)
	} else if len(flipped) > 0 {
		if s.applyReadLocally(flipped...) {
			s.notify()
		}
	}
	return nil
}

// failOpen releases the channel and parks the session in the terminal
// NotFound state, unless it was closed in the meantime.
func (s *Session) failOpen(err error) error {
	s.mu.Lock()
	if s.state != StateLoading {
		s.mu.Unlock()
		return ErrClosed
	}
	s.state = StateNotFound
	ch := s.channel
	s.channel = nil
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if ch != nil {
		ch.Unsubscribe()
	}
	s.notify()
	return err
}

// OnInsertEvent merges a newly created message delivered by the channel.
// Idempotent by message id: redelivery and the fetch/push overlap are no-ops.
// Incoming other-party messages get a targeted receipt, success-gated before
// the local flip.
func (s *Session) OnInsertEvent(m messaging.Message) {
	s.mu.Lock()
	if (s.state != StateLoading && s.state != StateReady) || m.ConversationID != s.conversationID {
		s.mu.Unlock()
		return
	}
	// The expected insert arrived; the fallback refetch is no longer needed.
	if t, ok := s.pending[m.ID]; ok {
		t.Stop()
		delete(s.pending, m.ID)
	}
	if _, dup := s.seen[m.ID]; dup {
		s.mu.Unlock()
		return
	}
	s.insertLocked(m)
	needReceipt := m.SenderID != s.viewerID && !m.IsRead
	ctx := s.ctx
	s.mu.Unlock()
	s.notify()

	if needReceipt {
		flipped, err := s.receipts.MarkOne(ctx, m)
		if err != nil {
			log.Printf("session: targeted mark read: %v", err)
			return
		}
		if flipped && s.applyReadLocally(m.ID) {
			s.notify()
		}
	}
}

// OnUpdateEvent applies a state change to the matching message. An update for
// an id not yet present is dropped: it raced ahead of the history fetch, and
// the fetch will carry the updated state anyway. Only is_read is mutable
// after creation, and only from false to true; the stored created_at and id
// stay authoritative, so a drifted timestamp on the frame cannot reorder the
// view.
func (s *Session) OnUpdateEvent(m messaging.Message) {
	s.mu.Lock()
	if (s.state != StateLoading && s.state != StateReady) || m.ConversationID != s.conversationID {
		s.mu.Unlock()
		return
	}
	idx := s.indexOfLocked(m.ID)
	if idx < 0 || !m.IsRead || s.messages[idx].IsRead {
		s.mu.Unlock()
		return
	}
	s.messages[idx].IsRead = true
	s.mu.Unlock()
	s.notify()
}

// Send submits one outgoing message through the composer and arms the
// one-shot reconcile fallback for it. The new message reaches the view via
// the channel's own insert event, or failing that, the reconcile refetch.
func (s *Session) Send(ctx context.Context, content string) (messaging.Message, error) {
	s.mu.Lock()
	if s.state != StateReady {
		st := s.state
		s.mu.Unlock()
		return messaging.Message{}, fmt.Errorf("messaging: cannot send in state %s", st)
	}
	conversationID := s.conversationID
	s.mu.Unlock()

	m, err := s.composer.Send(ctx, conversationID, content)
	if err != nil {
		return messaging.Message{}, err
	}
	s.armReconcile(m.ID)
	return m, nil
}

// Close releases the channel subscription and stops pending reconcile
// timers. Idempotent; called on every exit path.
func (s *Session) Close() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	for id, t := range s.pending {
		t.Stop()
		delete(s.pending, id)
	}
	ch := s.channel
	s.channel = nil
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if ch != nil {
		ch.Unsubscribe()
	}
}

// Snapshot returns a copy of the render-ready state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		State:          s.state,
		Loading:        s.state == StateLoading,
		ConversationID: s.conversationID,
		OtherParty:     s.other,
		Messages:       s.copyMessagesLocked(),
	}
}

// armReconcile schedules the bounded fallback refetch for a just-sent
// message, unless its insert event has already been observed.
func (s *Session) armReconcile(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReady {
		return
	}
	if _, dup := s.seen[id]; dup {
		return
	}
	if _, armed := s.pending[id]; armed {
		return
	}
	s.pending[id] = time.AfterFunc(s.reconcileAfter, func() {
		s.reconcile(id)
	})
}

// reconcile fires when a sent message's insert event was not observed within
// the window: refetch history and merge. Merging is idempotent, so a late
// event after this refetch remains harmless.
func (s *Session) reconcile(id string) {
	s.mu.Lock()
	delete(s.pending, id)
	if s.state != StateReady {
		s.mu.Unlock()
		return
	}
	if _, dup := s.seen[id]; dup {
		s.mu.Unlock()
		return
	}
	ctx := s.ctx
	conversationID := s.conversationID
	s.mu.Unlock()

	msgs, err := s.repo.ListMessages(ctx, conversationID)
	if err != nil {
		log.Printf("session: reconcile refetch: %v", err)
		return
	}

	s.mu.Lock()
	if s.state != StateReady {
		s.mu.Unlock()
		return
	}
	changed := false
	for _, m := range msgs {
		if s.mergeLocked(m) {
			changed = true
		}
	}
	s.mu.Unlock()
	if changed {
		s.notify()
	}
}

// mergeLocked folds one fetched message into the view: new ids are inserted
// in order, known ids only absorb a false to true read transition. Reports
// whether anything visible changed.
func (s *Session) mergeLocked(m messaging.Message) bool {
	if _, dup := s.seen[m.ID]; dup {
		idx := s.indexOfLocked(m.ID)
		if idx >= 0 && m.IsRead && !s.messages[idx].IsRead {
			s.messages[idx].IsRead = true
			return true
		}
		return false
	}
	s.insertLocked(m)
	return true
}

// insertLocked places m at its sorted position (created_at ascending, id
// tie-break) and records its id.
func (s *Session) insertLocked(m messaging.Message) {
	i := sort.Search(len(s.messages), func(i int) bool {
		return m.Before(s.messages[i])
	})
	s.messages = append(s.messages, messaging.Message{})
	copy(s.messages[i+1:], s.messages[i:])
	s.messages[i] = m
	s.seen[m.ID] = struct{}{}
}

func (s *Session) indexOfLocked(id string) int {
	for i := range s.messages {
		if s.messages[i].ID == id {
			return i
		}
	}
	return -1
}

// applyReadLocally flips is_read for the given ids in the local view.
// Only ever false to true.
func (s *Session) applyReadLocally(ids ...string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := false
	for _, id := range ids {
		if idx := s.indexOfLocked(id); idx >= 0 && !s.messages[idx].IsRead {
			s.messages[idx].IsRead = true
			changed = true
		}
	}
	return changed
}

func (s *Session) copyMessagesLocked() []messaging.Message {
	out := make([]messaging.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *Session) notify() {
	if s.onChange == nil {
		return
	}
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.onChange(s.Snapshot())
}
