package call

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"

	"github.com/corv87/lanCaller/pkg/concurrency"
	"github.com/corv87/lanCaller/pkg/media"
	"github.com/corv87/lanCaller/pkg/ringer"
	"github.com/corv87/lanCaller/pkg/signaling"
)

var (
	ErrNoSession    = errors.New("no active call session")
	ErrInvalidState = errors.New("call session does not allow this action")
	ErrNotRunning   = errors.New("call manager is not running")
)

const (
	// DefaultDialTimeout is how long an outgoing call waits for an answer
	// before the remote party is considered unreachable.
	DefaultDialTimeout = 30 * time.Second
	// DefaultGracePeriod keeps a terminal status visible before the session
	// collapses back to idle.
	DefaultGracePeriod = 2 * time.Second
)

// Config holds the manager's identity and timing knobs.
type Config struct {
	SelfID      string
	DisplayName string
	DialTimeout time.Duration
	GracePeriod time.Duration
	// Foregrounded tells the manager whether the host process is visible to
	// the user, which picks between ringing locally and showing a
	// system-level incoming-call surface. Nil means always foregrounded.
	Foregrounded func() bool
	ICEServers   []webrtc.ICEServer
}

// Manager owns the single call session and is the only component allowed to
// mutate it. Every input — user actions, signaling events, timer fires,
// media-engine callbacks — is delivered as a message to one event-loop
// goroutine, so transitions never race each other.
type Manager struct {
	cfg      Config
	signaler signaling.Signaler
	engines  media.Factory
	ringer   ringer.Ringer
	guard    *concurrency.Guard

	events  chan any
	updates chan Snapshot
	done    chan struct{}

	mu   sync.RWMutex
	last Snapshot

	// Loop-owned; only the Run goroutine touches these.
	session *session
	gen     uint64
	runCtx  context.Context
}

// NewManager wires the session manager to its collaborators. Run must be
// called before any action methods are used.
func NewManager(cfg Config, signaler signaling.Signaler, engines media.Factory, rng ringer.Ringer) *Manager {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = DefaultGracePeriod
	}
	return &Manager{
		cfg:      cfg,
		signaler: signaler,
		engines:  engines,
		ringer:   rng,
		guard:    concurrency.NewGuard(),
		events:   make(chan any, 32),
		updates:  make(chan Snapshot, 16),
		done:     make(chan struct{}),
		last:     Snapshot{Status: StatusIdle},
	}
}

// Updates streams session snapshots to observers. Slow consumers lose
// intermediate snapshots, never the ability to catch up via Snapshot.
func (m *Manager) Updates() <-chan Snapshot {
	return m.updates
}

// Snapshot returns the most recent session snapshot.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

// Run processes events until ctx is canceled or the signaling channel closes.
// It must be running for any of the action methods to complete.
func (m *Manager) Run(ctx context.Context) error {
	m.runCtx = ctx
	defer close(m.done)

	sigEvents := m.signaler.Events()
	for {
		select {
		case <-ctx.Done():
			m.teardown("")
			return ctx.Err()
		case ev := <-m.events:
			m.dispatch(ev)
		case env, ok := <-sigEvents:
			if !ok {
				m.teardown("signaling channel closed")
				return errors.New("signaling channel closed")
			}
			m.handleSignal(env)
		}
	}
}

// Loop messages. User actions carry a reply channel so callers get a
// synchronous verdict; everything else is fire-and-forget.
type (
	cmdStartCall struct {
		remote Participant
		reply  chan error
	}
	cmdAnswer   struct{ reply chan error }
	cmdDecline  struct{ reply chan error }
	cmdEnd      struct{ reply chan error }
	cmdTeardown struct{ reply chan error }
	cmdRestore  struct {
		remote Participant
		offer  webrtc.SessionDescription
		reply  chan error
	}

	evtOfferCreated struct {
		gen   uint64
		offer webrtc.SessionDescription
		err   error
	}
	evtAnswerCreated struct {
		gen    uint64
		answer webrtc.SessionDescription
		err    error
	}
	evtDeadline       struct{ gen uint64 }
	evtGrace          struct{ gen uint64 }
	evtLocalCandidate struct {
		gen  uint64
		cand webrtc.ICECandidateInit
	}
	evtConnState struct {
		gen   uint64
		state webrtc.PeerConnectionState
	}
)

// StartCall places an outgoing call. Returns concurrency.ErrBusy if a session
// is already active.
func (m *Manager) StartCall(remote Participant) error {
	reply := make(chan error, 1)
	return m.submit(cmdStartCall{remote: remote, reply: reply}, reply)
}

// AnswerCall accepts the pending incoming call.
func (m *Manager) AnswerCall() error {
	reply := make(chan error, 1)
	return m.submit(cmdAnswer{reply: reply}, reply)
}

// DeclineCall rejects the pending incoming call.
func (m *Manager) DeclineCall() error {
	reply := make(chan error, 1)
	return m.submit(cmdDecline{reply: reply}, reply)
}

// EndCall hangs up whatever session is active.
func (m *Manager) EndCall() error {
	reply := make(chan error, 1)
	return m.submit(cmdEnd{reply: reply}, reply)
}

// RestoreFromNotification rebuilds a ringing callee session from an offer that
// was delivered while this process was not running (system notification path).
func (m *Manager) RestoreFromNotification(remote Participant, offer webrtc.SessionDescription) error {
	reply := make(chan error, 1)
	return m.submit(cmdRestore{remote: remote, offer: offer, reply: reply}, reply)
}

// ForceTeardown converges the session to idle no matter what state it is in.
// Used by the reconciler after an out-of-process terminal decision.
func (m *Manager) ForceTeardown() error {
	reply := make(chan error, 1)
	return m.submit(cmdTeardown{reply: reply}, reply)
}

func (m *Manager) submit(ev any, reply chan error) error {
	select {
	case m.events <- ev:
	case <-m.done:
		return ErrNotRunning
	}
	select {
	case err := <-reply:
		return err
	case <-m.done:
		return ErrNotRunning
	}
}

// post delivers an internal event to the loop without blocking shutdown.
func (m *Manager) post(ev any) {
	select {
	case m.events <- ev:
	case <-m.done:
	}
}

func (m *Manager) dispatch(ev any) {
	switch ev := ev.(type) {
	case cmdStartCall:
		ev.reply <- m.handleStartCall(ev.remote)
	case cmdAnswer:
		ev.reply <- m.handleAnswer()
	case cmdDecline:
		ev.reply <- m.handleDecline()
	case cmdEnd:
		ev.reply <- m.handleEnd()
	case cmdRestore:
		ev.reply <- m.handleRestore(ev.remote, ev.offer)
	case cmdTeardown:
		m.teardown("")
		ev.reply <- nil
	case evtOfferCreated:
		m.handleOfferCreated(ev)
	case evtAnswerCreated:
		m.handleAnswerCreated(ev)
	case evtDeadline:
		m.handleDeadline(ev.gen)
	case evtGrace:
		m.handleGrace(ev.gen)
	case evtLocalCandidate:
		m.handleLocalCandidate(ev)
	case evtConnState:
		m.handleConnState(ev)
	default:
		slog.Warn("unhandled call manager event", "event", fmt.Sprintf("%T", ev))
	}
}

func (m *Manager) handleStartCall(remote Participant) error {
	if m.session != nil {
		return concurrency.ErrBusy
	}
	if !m.guard.TryAcquire() {
		return concurrency.ErrBusy
	}

	engine, err := m.engines.NewEngine(media.Config{ICEServers: m.cfg.ICEServers})
	if err != nil {
		m.guard.Release()
		return fmt.Errorf("failed to create media engine: %w", err)
	}

	m.gen++
	s := &session{
		id:     uuid.NewString(),
		gen:    m.gen,
		role:   RoleCaller,
		remote: remote,
		status: StatusCalling,
		engine: engine,
	}
	m.session = s
	m.wireEngine(s)

	gen := s.gen
	s.deadline = time.AfterFunc(m.cfg.DialTimeout, func() {
		m.post(evtDeadline{gen: gen})
	})
	m.publish("")

	go func() {
		offer, err := engine.CreateOffer(m.runCtx)
		m.post(evtOfferCreated{gen: gen, offer: offer, err: err})
	}()
	return nil
}

func (m *Manager) handleOfferCreated(ev evtOfferCreated) {
	s := m.session
	if s == nil || s.gen != ev.gen {
		// Resolved after teardown; the session it belonged to is gone.
		slog.Debug("discarding late offer result")
		return
	}
	if ev.err != nil {
		m.failSession(ev.err)
		return
	}
	if s.status != StatusCalling {
		return
	}

	env, err := signaling.NewEnvelope(signaling.EventOffer, s.remote.ID, signaling.OfferPayload{
		Offer: ev.offer,
		CallerInfo: signaling.ParticipantInfo{
			ID:          m.cfg.SelfID,
			DisplayName: m.cfg.DisplayName,
			Role:        RoleCaller.String(),
		},
	})
	if err == nil {
		err = m.signaler.Send(m.runCtx, env)
	}
	if err != nil {
		m.failSession(err)
		return
	}

	// Offer is on the wire; we are now waiting for the remote side to ring.
	s.status = StatusRinging
	m.publish("")
}

func (m *Manager) handleSignal(env signaling.Envelope) {
	switch env.Type {
	case signaling.EventOffer:
		m.handleRemoteOffer(env)
	case signaling.EventAnswer:
		m.handleRemoteAnswer(env)
	case signaling.EventCandidate:
		m.handleRemoteCandidate(env)
	case signaling.EventEnd:
		m.handleRemoteEnd(env)
	case signaling.EventDeclined:
		m.handleRemoteTerminal(env, StatusDeclined, "call declined")
	case signaling.EventBusy:
		m.handleRemoteTerminal(env, StatusBusy, "remote is busy")
	case signaling.EventCancel:
		m.handleRemoteCancel(env)
	default:
		slog.Warn("unknown signaling event", "type", env.Type)
	}
}

func (m *Manager) handleRemoteOffer(env signaling.Envelope) {
	payload, err := signaling.DecodeOffer(env)
	if err != nil {
		slog.Warn("dropping malformed call offer", "error", err)
		return
	}

	// First offer to take the single-flight slot wins; any later offer —
	// duplicate delivery or a different caller — gets a busy reply until
	// teardown has fully finished.
	if m.session != nil || m.guard.Held() {
		m.sendBusy(env.From)
		slog.Info("rejected call offer while busy", "from", env.From)
		return
	}

	remote := Participant{
		ID:          payload.CallerInfo.ID,
		DisplayName: payload.CallerInfo.DisplayName,
		Role:        payload.CallerInfo.Role,
	}
	if remote.ID == "" {
		remote.ID = env.From
	}

	if err := m.createCalleeSession(remote, payload.Offer); err != nil {
		slog.Error("failed to accept incoming call", "error", err, "from", remote.ID)
		m.sendBusy(env.From)
	}
}

func (m *Manager) createCalleeSession(remote Participant, offer webrtc.SessionDescription) error {
	if !m.guard.TryAcquire() {
		return concurrency.ErrBusy
	}
	engine, err := m.engines.NewEngine(media.Config{ICEServers: m.cfg.ICEServers})
	if err != nil {
		m.guard.Release()
		return fmt.Errorf("failed to create media engine: %w", err)
	}

	m.gen++
	s := &session{
		id:                 uuid.NewString(),
		gen:                m.gen,
		role:               RoleCallee,
		remote:             remote,
		status:             StatusRinging,
		engine:             engine,
		pendingRemoteOffer: &offer,
	}
	m.session = s
	m.wireEngine(s)

	if m.foregrounded() {
		m.ringer.StartRinging(ringer.Remote{ID: remote.ID, DisplayName: remote.DisplayName})
	} else {
		m.ringer.ShowIncoming(ringer.Remote{ID: remote.ID, DisplayName: remote.DisplayName})
	}
	m.publish("")
	return nil
}

func (m *Manager) handleRemoteAnswer(env signaling.Envelope) {
	s := m.session
	if s == nil || s.role != RoleCaller {
		slog.Debug("ignoring call answer with no outgoing call")
		return
	}
	if !s.fromRemote(env) {
		slog.Debug("ignoring call answer from unexpected sender", "from", env.From)
		return
	}
	// A duplicate answer delivered twice would blow up SetRemoteDescription;
	// only apply while the offer is still unanswered.
	if s.engine.SignalingState() != webrtc.SignalingStateHaveLocalOffer {
		slog.Debug("ignoring stale call answer", "state", s.engine.SignalingState())
		return
	}

	payload, err := signaling.DecodeAnswer(env)
	if err != nil {
		slog.Warn("dropping malformed call answer", "error", err)
		return
	}
	if err := s.engine.AcceptAnswer(payload.Answer); err != nil {
		m.failSession(err)
		return
	}

	s.remoteDescriptionSet = true
	m.flushCandidates(s)
	s.stopDeadline()
	s.status = StatusConnected
	m.publish("")
}

func (m *Manager) handleRemoteCandidate(env signaling.Envelope) {
	s := m.session
	if s == nil {
		slog.Debug("ignoring ice candidate with no session")
		return
	}
	if !s.fromRemote(env) {
		slog.Debug("ignoring ice candidate from unexpected sender", "from", env.From)
		return
	}
	payload, err := signaling.DecodeCandidate(env)
	if err != nil {
		slog.Warn("dropping malformed ice candidate", "error", err)
		return
	}

	if !s.remoteDescriptionSet {
		s.iceQueue.push(payload.Candidate)
		return
	}
	if err := s.engine.AddCandidate(payload.Candidate); err != nil {
		// ICE tolerates losing individual candidates; never fatal.
		slog.Warn("failed to apply ice candidate", "error", err)
	}
}

func (m *Manager) handleRemoteEnd(env signaling.Envelope) {
	s := m.session
	if s == nil {
		slog.Debug("ignoring call-end with no session")
		return
	}
	if !s.fromRemote(env) {
		slog.Debug("ignoring call-end from unexpected sender", "from", env.From)
		return
	}
	s.status = StatusEnded
	m.publish("call ended by remote")
	m.teardown("")
}

func (m *Manager) handleRemoteTerminal(env signaling.Envelope, status Status, reason string) {
	s := m.session
	if s == nil || s.role != RoleCaller {
		slog.Debug("ignoring terminal signal with no outgoing call", "status", status)
		return
	}
	if !s.fromRemote(env) {
		slog.Debug("ignoring terminal signal from unexpected sender", "from", env.From, "status", status)
		return
	}
	if s.status != StatusCalling && s.status != StatusRinging {
		slog.Debug("ignoring terminal signal in state", "state", s.status)
		return
	}

	s.stopDeadline()
	s.status = status
	m.publish(reason)
	m.scheduleGrace(s)
}

func (m *Manager) handleRemoteCancel(env signaling.Envelope) {
	s := m.session
	if s == nil || s.role != RoleCallee || s.status != StatusRinging {
		slog.Debug("ignoring call-cancel")
		return
	}
	if !s.fromRemote(env) {
		slog.Debug("ignoring call-cancel from unexpected sender", "from", env.From)
		return
	}
	// Caller gave up before we answered; nothing to display beyond the
	// dismissal, so collapse immediately.
	m.teardown("call canceled")
}

func (m *Manager) handleAnswer() error {
	s := m.session
	if s == nil {
		return ErrNoSession
	}
	if s.role != RoleCallee || s.status != StatusRinging || s.pendingRemoteOffer == nil {
		return ErrInvalidState
	}

	offer := *s.pendingRemoteOffer
	s.pendingRemoteOffer = nil // consumed exactly once
	s.status = StatusConnecting
	m.ringer.StopRinging()
	m.ringer.DismissIncoming()
	m.publish("")

	gen := s.gen
	engine := s.engine
	go func() {
		answer, err := engine.AcceptOffer(m.runCtx, offer)
		m.post(evtAnswerCreated{gen: gen, answer: answer, err: err})
	}()
	return nil
}

func (m *Manager) handleAnswerCreated(ev evtAnswerCreated) {
	s := m.session
	if s == nil || s.gen != ev.gen {
		slog.Debug("discarding late answer result")
		return
	}
	if ev.err != nil {
		m.failSession(ev.err)
		return
	}
	if s.status != StatusConnecting {
		return
	}

	// Remote offer is applied now; queued candidates go in before any that
	// arrive live from here on.
	s.remoteDescriptionSet = true
	m.flushCandidates(s)

	env, err := signaling.NewEnvelope(signaling.EventAnswer, s.remote.ID, signaling.AnswerPayload{Answer: ev.answer})
	if err == nil {
		err = m.signaler.Send(m.runCtx, env)
	}
	if err != nil {
		m.failSession(err)
		return
	}

	s.status = StatusConnected
	m.publish("")
}

func (m *Manager) handleDecline() error {
	s := m.session
	if s == nil {
		return ErrNoSession
	}
	if s.role != RoleCallee || s.status != StatusRinging {
		return ErrInvalidState
	}

	m.sendTerminal(signaling.EventDeclined, s.remote.ID)
	m.ringer.StopRinging()
	m.ringer.DismissIncoming()
	s.status = StatusDeclined
	m.publish("call declined")
	m.scheduleGrace(s)
	return nil
}

func (m *Manager) handleEnd() error {
	s := m.session
	if s == nil {
		return ErrNoSession
	}
	m.sendTerminal(signaling.EventEnd, s.remote.ID)
	s.status = StatusEnded
	m.publish("call ended")
	m.teardown("")
	return nil
}

func (m *Manager) handleRestore(remote Participant, offer webrtc.SessionDescription) error {
	if m.session != nil || m.guard.Held() {
		return concurrency.ErrBusy
	}
	return m.createCalleeSession(remote, offer)
}

func (m *Manager) handleDeadline(gen uint64) {
	s := m.session
	if s == nil || s.gen != gen || s.role != RoleCaller {
		return
	}
	if s.status != StatusCalling && s.status != StatusRinging {
		return
	}

	m.sendTerminal(signaling.EventCancel, s.remote.ID)
	s.status = StatusUnreachable
	m.publish("no answer")
	m.scheduleGrace(s)
}

func (m *Manager) handleGrace(gen uint64) {
	s := m.session
	if s == nil || s.gen != gen {
		return
	}
	m.teardown("")
}

func (m *Manager) handleLocalCandidate(ev evtLocalCandidate) {
	s := m.session
	if s == nil || s.gen != ev.gen {
		return
	}
	env, err := signaling.NewEnvelope(signaling.EventCandidate, s.remote.ID, signaling.CandidatePayload{Candidate: ev.cand})
	if err == nil {
		err = m.signaler.Send(m.runCtx, env)
	}
	if err != nil {
		slog.Warn("failed to send ice candidate", "error", err)
	}
}

func (m *Manager) handleConnState(ev evtConnState) {
	s := m.session
	if s == nil || s.gen != ev.gen {
		return
	}
	switch ev.state {
	case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed, webrtc.PeerConnectionStateDisconnected:
		if s.status == StatusConnected {
			s.status = StatusEnded
			m.publish("connection lost")
			m.teardown("")
		}
	}
}

func (m *Manager) wireEngine(s *session) {
	gen := s.gen
	s.engine.OnCandidate(func(c webrtc.ICECandidateInit) {
		m.post(evtLocalCandidate{gen: gen, cand: c})
	})
	s.engine.OnConnectionState(func(st webrtc.PeerConnectionState) {
		m.post(evtConnState{gen: gen, state: st})
	})
}

// flushCandidates applies every queued candidate in arrival order. A single
// failed candidate is skipped, not fatal.
func (m *Manager) flushCandidates(s *session) {
	for _, c := range s.iceQueue.drain() {
		if err := s.engine.AddCandidate(c); err != nil {
			slog.Warn("skipping ice candidate that failed to apply", "error", err)
		}
	}
}

func (m *Manager) scheduleGrace(s *session) {
	s.stopDeadline()
	gen := s.gen
	s.grace = time.AfterFunc(m.cfg.GracePeriod, func() {
		m.post(evtGrace{gen: gen})
	})
}

// failSession handles a fatal local failure (media acquisition, description
// creation, signaling send): the session is never left half-initialized.
func (m *Manager) failSession(err error) {
	slog.Error("call session failed", "error", err)
	s := m.session
	if s == nil {
		return
	}
	s.status = StatusEnded
	m.publish("call failed")
	m.teardown("")
}

func (m *Manager) sendBusy(to string) {
	if to == "" {
		return
	}
	m.sendTerminal(signaling.EventBusy, to)
}

func (m *Manager) sendTerminal(t signaling.EventType, to string) {
	env, err := signaling.NewEnvelope(t, to, nil)
	if err == nil {
		err = m.signaler.Send(m.runCtx, env)
	}
	if err != nil {
		slog.Warn("failed to send signal", "type", t, "error", err)
	}
}

// teardown is the single convergence point for every termination path. It is
// idempotent: every release below tolerates running twice.
func (m *Manager) teardown(reason string) {
	s := m.session
	if s == nil {
		m.guard.Release()
		return
	}

	s.stopDeadline()
	s.stopGrace()
	m.ringer.StopRinging()
	m.ringer.DismissIncoming()

	if err := s.engine.Close(); err != nil {
		slog.Warn("failed to close media engine", "error", err)
	}

	s.pendingRemoteOffer = nil
	s.remoteDescriptionSet = false
	s.iceQueue.clear()
	m.session = nil
	// Any in-flight async work for this session resolves against a stale
	// generation and is discarded.
	m.gen++
	m.guard.Release()
	m.publishIdle(reason)
}

func (m *Manager) foregrounded() bool {
	if m.cfg.Foregrounded == nil {
		return true
	}
	return m.cfg.Foregrounded()
}

func (m *Manager) publish(reason string) {
	s := m.session
	snap := Snapshot{Status: StatusIdle, Reason: reason}
	if s != nil {
		snap = Snapshot{
			SessionID: s.id,
			Status:    s.status,
			Role:      s.role,
			Remote:    s.remote,
			Reason:    reason,
		}
	}
	m.mu.Lock()
	m.last = snap
	m.mu.Unlock()

	select {
	case m.updates <- snap:
	default:
		slog.Debug("dropping session update for slow observer")
	}
}

func (m *Manager) publishIdle(reason string) {
	m.mu.Lock()
	m.last = Snapshot{Status: StatusIdle, Reason: reason}
	snap := m.last
	m.mu.Unlock()

	select {
	case m.updates <- snap:
	default:
		slog.Debug("dropping session update for slow observer")
	}
}
