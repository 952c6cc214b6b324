package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/leonvanzyl/autocoder-chat/internal/conversations"
	"github.com/leonvanzyl/autocoder-chat/internal/infrastructure/config"
	"github.com/leonvanzyl/autocoder-chat/internal/infrastructure/logging"
	"github.com/leonvanzyl/autocoder-chat/internal/infrastructure/monitoring"
	"github.com/leonvanzyl/autocoder-chat/internal/infrastructure/resilience"
	"github.com/leonvanzyl/autocoder-chat/internal/protocol"
	"github.com/leonvanzyl/autocoder-chat/internal/shared/id"
	"github.com/leonvanzyl/autocoder-chat/internal/shared/types"
	"github.com/leonvanzyl/autocoder-chat/internal/ws"
)

// Feature names a chat feature variant
type Feature string

const (
	FeatureAssistant Feature = "assistant"
	FeatureExpand    Feature = "expand"
	FeatureFeatures  Feature = "chat-features"
)

// DefaultConnectTimeout bounds how long Start waits for the connection
const DefaultConnectTimeout = 5 * time.Second

// ConversationStore loads and manages persisted conversations
type ConversationStore interface {
	List(ctx context.Context, project string) ([]conversations.Conversation, error)
	Get(ctx context.Context, project, id string) (*conversations.Detail, error)
	Delete(ctx context.Context, project, id string) error
}

// Options configures a session
type Options struct {
	// BaseURL is the http(s) address of the chat server
	BaseURL string
	// Scope is the project the session is bound to
	Scope string

	Dialer  ws.Dialer
	Store   ConversationStore
	Logger  *zap.Logger
	Metrics *monitoring.Metrics

	// Reconnect left zero uses resilience.DefaultSettings
	Reconnect         resilience.Settings
	ConnectTimeout    time.Duration
	KeepaliveInterval time.Duration

	Scheduler resilience.Scheduler
	Now       func() time.Time
	IDs       *id.Generator
	Tools     *ToolDescriber

	// OnChange receives a snapshot after every state transition
	OnChange func(State)
	// OnError receives every surfaced error
	OnError func(error)
}

// OptionsFromConfig maps loaded configuration onto session options
func OptionsFromConfig(cfg *config.Config, scope string) Options {
	return Options{
		BaseURL: cfg.Server.BaseURL,
		Scope:   scope,
		Dialer:  ws.NewDialer(cfg.Session.HandshakeTimeout, cfg.Session.MaxMessageSize),
		Reconnect: resilience.Settings{
			BaseDelay:   cfg.Reconnect.BaseDelay,
			MaxDelay:    cfg.Reconnect.MaxDelay,
			MaxAttempts: cfg.Reconnect.MaxAttempts,
		},
		ConnectTimeout:    cfg.Session.ConnectTimeout,
		KeepaliveInterval: cfg.Session.KeepaliveInterval,
	}
}

// State is a point-in-time copy of a session
type State struct {
	Feature            Feature
	Scope              string
	Status             types.ConnectionStatus
	ConversationID     string
	IsLoading          bool
	Messages           []types.ChatMessage
	PendingSuggestions []types.PendingSuggestion
	CreatedFeatures    []types.CreatedFeature
	Complete           bool
	ReconnectAttempts  int
	LastError          error
}

type eventKind int

const (
	eventOpened eventKind = iota
	eventClosed
	eventFrame
	eventRetry
)

// event is the only way transport and timer goroutines touch session state
type event struct {
	kind  eventKind
	gen   uint64
	data  []byte
	err   error
	token uint64
}

// waiter is resolved once when a pending Start completes
type waiter struct {
	done chan struct{}
	err  error
}

func newWaiter() *waiter {
	return &waiter{done: make(chan struct{})}
}

type frameHandler func(f *protocol.ServerFrame)

type notifications struct {
	state *State
	errs  []error
}

// Session is the protocol core shared by every feature variant.
// All state transitions happen under mu, either from an action or from
// handleEvent; observers are called after mu is released.
type Session struct {
	id             string
	feature        Feature
	scope          string
	url            string
	logger         *zap.Logger
	metrics        *monitoring.Metrics
	store          ConversationStore
	manager        *ws.Manager
	keepalive      *ws.Keepalive
	schedule       resilience.Scheduler
	connectTimeout time.Duration
	onChange       func(State)
	onError        func(error)
	frameHandlers  map[string]frameHandler

	mu             sync.Mutex
	status         types.ConnectionStatus
	conversationID string
	loading        bool
	asm            *Assembler
	policy         *resilience.Policy
	suggestions    []types.PendingSuggestion
	created        []types.CreatedFeature
	complete       bool
	manual         bool
	closed         bool
	handshake      protocol.Frame
	waiter         *waiter
	retryCancel    func() bool
	retryToken     uint64
	keepaliveDone  <-chan struct{}
	lastErr        error

	changed bool
	errs    []error

	// Notifications are queued under mu and delivered in order by
	// whichever goroutine finds the queue idle.
	qmu      sync.Mutex
	queue    []notifications
	draining bool
}

func newSession(feature Feature, path string, opts Options) (*Session, error) {
	if opts.Scope == "" {
		return nil, errors.New("chat: scope is required")
	}
	url, err := protocol.BuildURL(opts.BaseURL, path, opts.Scope)
	if err != nil {
		return nil, fmt.Errorf("chat: %w", err)
	}

	if opts.Dialer == nil {
		opts.Dialer = ws.NewDialer(10*time.Second, 4<<20)
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	if opts.Scheduler == nil {
		opts.Scheduler = resilience.AfterFunc
	}
	if opts.IDs == nil {
		opts.IDs = id.Default()
	}
	reconnect := opts.Reconnect
	if reconnect.BaseDelay == 0 && reconnect.MaxDelay == 0 && reconnect.MaxAttempts == 0 {
		reconnect = resilience.DefaultSettings()
	}

	sid := string(id.NewSessionID())
	logger := logging.ForSession(opts.Logger, string(feature), sid, opts.Scope)

	s := &Session{
		id:             sid,
		feature:        feature,
		scope:          opts.Scope,
		url:            url,
		logger:         logger,
		metrics:        opts.Metrics,
		store:          opts.Store,
		schedule:       opts.Scheduler,
		connectTimeout: opts.ConnectTimeout,
		onChange:       opts.OnChange,
		onError:        opts.OnError,
		frameHandlers:  make(map[string]frameHandler),
		status:         types.StatusDisconnected,
	}

	ids := opts.IDs
	s.asm = NewAssembler(opts.Tools, func() string {
		return ids.GenerateWithPrefix(id.MessagePrefix)
	}, opts.Now)

	reconnect.OnStateChange = func(from, to resilience.State, attempt int) {
		logger.Debug("reconnect policy",
			zap.Stringer("from", from),
			zap.Stringer("to", to),
			zap.Int("attempt", attempt))
	}
	s.policy = resilience.NewPolicy(reconnect)

	s.manager = ws.NewManager(opts.Dialer, ws.Handlers{
		OnOpen: func(gen uint64) {
			s.handleEvent(event{kind: eventOpened, gen: gen})
		},
		OnMessage: func(gen uint64, data []byte) {
			s.handleEvent(event{kind: eventFrame, gen: gen, data: data})
		},
		OnClose: func(gen uint64, err error) {
			s.handleEvent(event{kind: eventClosed, gen: gen, err: err})
		},
	}, logger)
	s.keepalive = ws.NewKeepalive(opts.KeepaliveInterval, s.ping, logger)

	return s, nil
}

// Start connects and sends one start or resume frame once connected.
// An empty conversationID means the current conversation, if any.
// A conversation with local history is resumed; otherwise a fresh start
// is requested, optionally for the conversation id. Start blocks until
// the frame is sent, the connect timeout expires or ctx is done.
func (s *Session) Start(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return ErrClosed
	case s.complete:
		s.mu.Unlock()
		return ErrSessionComplete
	}

	switch {
	case conversationID == "":
		// Stay on the conversation the local history belongs to
		conversationID = s.conversationID
	case conversationID != s.conversationID:
		s.conversationID = conversationID
		s.touch()
	}
	frame := s.handshakeFrame(conversationID)
	s.manual = false
	s.cancelRetry()
	s.policy.Cancel()

	if s.status == types.StatusConnected {
		err := s.send(frame)
		if err != nil {
			err = s.transportFailure("send "+frame.FrameType(), err)
		}
		s.enqueue()
		s.mu.Unlock()
		s.drain()
		return err
	}

	w := s.waiter
	if w == nil {
		w = newWaiter()
		s.waiter = w
	}
	s.handshake = frame
	s.open()

	s.enqueue()
	s.mu.Unlock()
	s.drain()

	timer := time.NewTimer(s.connectTimeout)
	defer timer.Stop()

	select {
	case <-w.done:
		return w.err
	case <-timer.C:
		return s.abandonStart(w, ErrConnectionTimeout)
	case <-ctx.Done():
		return s.abandonStart(w, ctx.Err())
	}
}

// abandonStart gives up on a pending Start. The socket is closed and no
// retry is scheduled for it.
func (s *Session) abandonStart(w *waiter, cause error) error {
	s.mu.Lock()
	if s.waiter != w {
		// Resolved while we were timing out
		s.mu.Unlock()
		<-w.done
		return w.err
	}

	s.waiter = nil
	s.handshake = nil
	s.cancelRetry()
	s.policy.Cancel()
	s.stopKeepalive()
	s.manager.Close()

	if errors.Is(cause, ErrConnectionTimeout) {
		s.logger.Warn("connection timeout", zap.Duration("timeout", s.connectTimeout))
		s.metrics.RecordConnectTimeout(string(s.feature))
		s.setStatus(types.StatusError)
		s.report(ErrConnectionTimeout)
	} else {
		s.setStatus(types.StatusDisconnected)
	}
	w.err = cause
	close(w.done)

	s.enqueue()
	s.mu.Unlock()
	s.drain()
	return cause
}

// SendMessage appends the user message and sends it. The message stays
// in the list even when sending fails.
func (s *Session) SendMessage(content string, attachments ...types.ImageAttachment) error {
	content = strings.TrimSpace(content)

	var err error
	s.update(func() {
		switch {
		case s.closed:
			err = ErrClosed
		case content == "" && len(attachments) == 0:
			err = ErrEmptyMessage
		case s.status != types.StatusConnected:
			err = ErrNotConnected
			s.report(err)
		default:
			s.asm.AddUser(content, attachments)
			s.loading = true
			s.touch()

			if sendErr := s.send(protocol.Message(content, attachments)); sendErr != nil {
				err = s.transportFailure("send message", sendErr)
				s.loading = false
				s.asm.AddSystem("Error: failed to send message")
			}
		}
	})
	return err
}

// Disconnect stops keepalive and pending retries, closes the socket and
// leaves the session disconnected. A later Start reconnects.
func (s *Session) Disconnect() {
	s.update(s.teardown)
}

// Close disconnects for good and waits for transport goroutines.
// It must not be called from an observer.
func (s *Session) Close() {
	var keepaliveDone <-chan struct{}
	s.update(func() {
		s.teardown()
		s.closed = true
		keepaliveDone = s.keepaliveDone
	})
	s.manager.Wait()
	if keepaliveDone != nil {
		<-keepaliveDone
	}
}

func (s *Session) teardown() {
	s.manual = true
	s.cancelRetry()
	s.policy.Cancel()
	s.stopKeepalive()
	s.manager.Close()
	s.handshake = nil
	s.setStatus(types.StatusDisconnected)
	s.resolveWaiter(ErrDisconnected)
}

// SwitchConversation loads a persisted conversation and reattaches to it
func (s *Session) SwitchConversation(ctx context.Context, conversationID string) error {
	if s.store == nil {
		return ErrNoStore
	}
	if conversationID == "" {
		return conversations.ErrInvalidID
	}

	s.Disconnect()

	detail, err := s.store.Get(ctx, s.scope, conversationID)
	if err != nil {
		err = fmt.Errorf("load conversation %s: %w", conversationID, err)
		s.update(func() { s.report(err) })
		return err
	}

	history := make([]protocol.HistoryMessage, 0, len(detail.Messages))
	for _, m := range detail.Messages {
		history = append(history, protocol.HistoryMessage{
			Role:      m.Role,
			Content:   m.Content,
			Timestamp: m.Timestamp,
		})
	}

	s.update(func() {
		s.reset()
		s.asm.ReplaceHistory(history)
		s.conversationID = conversationID
	})
	s.logger.Info("switched conversation",
		zap.String("conversation_id", conversationID),
		zap.Int("messages", len(history)))

	return s.Start(ctx, conversationID)
}

// NewConversation drops local state and starts a fresh conversation
func (s *Session) NewConversation(ctx context.Context) error {
	s.Disconnect()
	s.update(s.reset)
	return s.Start(ctx, "")
}

func (s *Session) reset() {
	s.asm.Reset()
	s.conversationID = ""
	s.loading = false
	s.suggestions = nil
	s.created = nil
	s.complete = false
	s.lastErr = nil
	s.touch()
}

// sendAction sends a feature control frame on the open connection
func (s *Session) sendAction(f protocol.Frame, onSent func()) error {
	var err error
	s.update(func() {
		switch {
		case s.closed:
			err = ErrClosed
		case s.status != types.StatusConnected:
			err = ErrNotConnected
			s.report(err)
		default:
			if sendErr := s.send(f); sendErr != nil {
				err = s.transportFailure("send "+f.FrameType(), sendErr)
				return
			}
			if onSent != nil {
				onSent()
			}
		}
	})
	return err
}

// State returns a snapshot of the session
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Status returns the connection status
func (s *Session) Status() types.ConnectionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// ConversationID returns the current conversation, empty when none
func (s *Session) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

// Messages returns a copy of the message list
func (s *Session) Messages() []types.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.asm.Messages()
}

// IsLoading reports whether an assistant turn is in progress
func (s *Session) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// ID returns the session instance ID used in logs
func (s *Session) ID() string { return s.id }

// Feature returns the feature variant
func (s *Session) Feature() Feature { return s.feature }

// Scope returns the project the session is bound to
func (s *Session) Scope() string { return s.scope }

// URL returns the websocket URL
func (s *Session) URL() string { return s.url }

func (s *Session) handshakeFrame(conversationID string) protocol.Frame {
	if conversationID != "" && s.asm.Len() > 0 {
		return protocol.Resume(conversationID)
	}
	return protocol.Start(conversationID)
}

func (s *Session) open() {
	if _, ok := s.manager.Open(s.url); ok {
		s.logger.Debug("connecting", zap.String("url", s.url))
		s.setStatus(types.StatusConnecting)
	}
}

// handleEvent is the single entry point for transport and timer events
func (s *Session) handleEvent(ev event) {
	s.mu.Lock()
	switch ev.kind {
	case eventOpened:
		if s.manager.Current(ev.gen) {
			s.onOpened()
		}
	case eventClosed:
		if s.manager.Current(ev.gen) {
			s.onClosed(ev.err)
		}
	case eventFrame:
		if s.manager.Current(ev.gen) {
			s.onFrame(ev.data)
		}
	case eventRetry:
		s.onRetry(ev.token)
	}
	s.enqueue()
	s.mu.Unlock()
	s.drain()
}

func (s *Session) onOpened() {
	s.policy.Reset()
	s.lastErr = nil
	s.setStatus(types.StatusConnected)
	s.keepalive.Start()

	// A pending Start owns the handshake; any other open is a reconnect
	frame := s.handshake
	s.handshake = nil
	if frame == nil {
		if s.conversationID != "" {
			frame = protocol.Resume(s.conversationID)
		} else {
			frame = protocol.Start("")
		}
	}

	var err error
	if sendErr := s.send(frame); sendErr != nil {
		err = s.transportFailure("send "+frame.FrameType(), sendErr)
	}
	s.logger.Info("connected", zap.String("handshake", frame.FrameType()))
	s.resolveWaiter(err)
}

func (s *Session) onClosed(cause error) {
	s.stopKeepalive()
	s.setStatus(types.StatusDisconnected)

	if s.manual || s.closed {
		return
	}
	if s.complete {
		s.logger.Debug("connection closed after completion", zap.Error(cause))
		return
	}

	if ws.IsNormalClose(cause) {
		s.logger.Info("server closed connection", zap.Error(cause))
	} else {
		s.transportFailure("connection", cause)
	}

	delay, err := s.policy.Next()
	if err != nil {
		attempts := s.policy.Settings().MaxAttempts
		s.logger.Error("giving up reconnecting", zap.Int("attempts", attempts), zap.Error(cause))
		s.metrics.RecordReconnectGiveUp(string(s.feature))

		s.handshake = nil
		s.loading = false
		s.asm.Finalize()
		s.setStatus(types.StatusError)

		exhausted := fmt.Errorf("%w after %d attempts", ErrReconnectExhausted, attempts)
		s.report(exhausted)
		s.resolveWaiter(exhausted)
		return
	}

	s.logger.Info("reconnecting",
		zap.Int("attempt", s.policy.Attempt()),
		zap.Duration("delay", delay),
		zap.Error(cause))
	s.metrics.RecordReconnectAttempt(string(s.feature))
	s.scheduleRetry(delay)
}

func (s *Session) onRetry(token uint64) {
	if token != s.retryToken || s.retryCancel == nil {
		return
	}
	s.retryCancel = nil
	if s.manual || s.closed || s.complete {
		return
	}
	s.open()
}

func (s *Session) scheduleRetry(delay time.Duration) {
	s.retryToken++
	token := s.retryToken
	s.retryCancel = s.schedule(delay, func() {
		s.handleEvent(event{kind: eventRetry, token: token})
	})
	s.touch()
}

func (s *Session) cancelRetry() {
	if s.retryCancel != nil {
		s.retryCancel()
		s.retryCancel = nil
	}
	s.retryToken++
}

func (s *Session) onFrame(data []byte) {
	f, err := protocol.Decode(data)
	if err != nil {
		s.metrics.RecordProtocolError(string(s.feature))
		s.logger.Warn("dropping malformed frame", zap.Error(protocolError(data, err)))
		return
	}
	s.metrics.RecordFrame(string(s.feature), monitoring.DirectionInbound, f.Type)

	switch f.Type {
	case protocol.TypeText:
		s.asm.Text(f.Content)
		s.touch()

	case protocol.TypeToolCall:
		s.asm.ToolCall(f.Tool, f.Input)
		s.touch()

	case protocol.TypeResponseDone:
		s.asm.Finalize()
		s.loading = false
		s.touch()

	case protocol.TypeError:
		msg := f.ErrorText()
		s.logger.Warn("server error", zap.String("message", msg))
		s.metrics.RecordServerError(string(s.feature))
		s.loading = false
		s.asm.Error(msg)
		s.report(&ServerError{Message: msg})

	case protocol.TypeConversationCreated:
		s.conversationCreated(string(f.ConversationID))

	case protocol.TypePong:

	case protocol.TypeHistory:
		s.restoreHistory(f.Data)

	default:
		if h, ok := s.frameHandlers[f.Type]; ok {
			h(f)
			return
		}
		s.logger.Debug("ignoring frame", zap.String("type", f.Type))
	}
}

func (s *Session) conversationCreated(conversationID string) {
	switch {
	case conversationID == "":
		s.logger.Warn("conversation_created without id")
	case s.conversationID != "" && s.conversationID != conversationID:
		s.logger.Warn("ignoring conversation change",
			zap.String("current", s.conversationID),
			zap.String("received", conversationID))
	default:
		s.conversationID = conversationID
		s.touch()
	}
}

func (s *Session) restoreHistory(data *protocol.HistoryData) {
	if data == nil {
		s.metrics.RecordProtocolError(string(s.feature))
		s.logger.Warn("history frame without data")
		return
	}
	s.asm.ReplaceHistory(data.Messages)
	s.suggestions = append([]types.PendingSuggestion(nil), data.PendingSuggestions...)
	s.loading = false
	s.touch()
}

func (s *Session) send(f protocol.Frame) error {
	if err := s.manager.Send(f); err != nil {
		return err
	}
	s.metrics.RecordFrame(string(s.feature), monitoring.DirectionOutbound, f.FrameType())
	return nil
}

// ping runs on the keepalive goroutine without the session lock
func (s *Session) ping() error {
	return s.send(protocol.Ping())
}

func (s *Session) stopKeepalive() {
	if s.keepalive.Running() {
		s.keepaliveDone = s.keepalive.Stop()
	}
}

func (s *Session) resolveWaiter(err error) {
	if s.waiter == nil {
		return
	}
	w := s.waiter
	s.waiter = nil
	w.err = err
	close(w.done)
}

func (s *Session) transportFailure(op string, err error) error {
	terr := &TransportError{Op: op, Err: err}
	s.logger.Warn("transport error", zap.String("op", op), zap.Error(err))
	s.report(terr)
	return terr
}

func (s *Session) setStatus(status types.ConnectionStatus) {
	if s.status == status {
		return
	}
	prev := s.status
	s.status = status
	s.logger.Debug("status", zap.String("from", string(prev)), zap.String("to", string(status)))

	feature := string(s.feature)
	s.metrics.RecordStatus(feature, string(status))
	if prev == types.StatusConnected {
		s.metrics.DecSessionsActive(feature)
	}
	if status == types.StatusConnected {
		s.metrics.IncSessionsActive(feature)
	}
	s.touch()
}

func (s *Session) report(err error) {
	s.lastErr = err
	s.errs = append(s.errs, err)
	s.touch()
}

func (s *Session) touch() {
	s.changed = true
}

func (s *Session) snapshot() State {
	return State{
		Feature:            s.feature,
		Scope:              s.scope,
		Status:             s.status,
		ConversationID:     s.conversationID,
		IsLoading:          s.loading,
		Messages:           s.asm.Messages(),
		PendingSuggestions: append([]types.PendingSuggestion(nil), s.suggestions...),
		CreatedFeatures:    append([]types.CreatedFeature(nil), s.created...),
		Complete:           s.complete,
		ReconnectAttempts:  s.policy.Attempt(),
		LastError:          s.lastErr,
	}
}

// update runs fn under the session lock and delivers what it produced
func (s *Session) update(fn func()) {
	s.mu.Lock()
	fn()
	s.enqueue()
	s.mu.Unlock()
	s.drain()
}

// enqueue moves pending notifications to the delivery queue; mu is held
func (s *Session) enqueue() {
	n := notifications{errs: s.errs}
	s.errs = nil
	if s.changed && s.onChange != nil {
		st := s.snapshot()
		n.state = &st
	}
	s.changed = false

	if n.state == nil && len(n.errs) == 0 {
		return
	}
	s.qmu.Lock()
	s.queue = append(s.queue, n)
	s.qmu.Unlock()
}

// drain delivers queued notifications in order. An observer that calls
// back into the session has its notifications delivered by the outer drain.
func (s *Session) drain() {
	s.qmu.Lock()
	if s.draining {
		s.qmu.Unlock()
		return
	}
	s.draining = true
	for len(s.queue) > 0 {
		batch := s.queue
		s.queue = nil
		s.qmu.Unlock()

		for _, n := range batch {
			if n.state != nil {
				s.onChange(*n.state)
			}
			if s.onError != nil {
				for _, err := range n.errs {
					s.onError(err)
				}
			}
		}

		s.qmu.Lock()
	}
	s.draining = false
	s.qmu.Unlock()
}
