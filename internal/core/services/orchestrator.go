package services

import (
	"context"
	"fmt"

	"liveclass/internal/core/domain"
	"liveclass/internal/core/ports"
	"liveclass/internal/signal"

	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// Orchestrator wires roster changes, permission changes and user actions
// into link table operations for one participant in one room. It is the only
// component with business rules: the teacher fans out one broadcast link per
// requesting student, each student fans in one upload link to the teacher.
//
// All state lives behind a single event loop: relay messages, user commands
// and transport callbacks are serialized onto it, so the link table and
// registry need no locking. Multiple rooms run as independent instances.
type Orchestrator struct {
	self domain.Username
	role domain.Role

	registry   ports.ParticipantRegistry
	links      *LinkTable
	router     *Router
	relay      ports.Relay
	transports ports.TransportFactory
	sources    ports.MediaSourceFactory
	notifier   ports.Notifier
	logger     *zap.SugaredLogger

	// at most one active capture source locally; starting a new one stops
	// the previous one so orphaned tracks never accumulate
	active     ports.MediaSource
	activeKind domain.CaptureKind

	ctx    context.Context
	events chan func()
	done   chan struct{}
}

const eventQueueSize = 256

func NewOrchestrator(
	self domain.Username,
	role domain.Role,
	registry ports.ParticipantRegistry,
	relay ports.Relay,
	transports ports.TransportFactory,
	sources ports.MediaSourceFactory,
	notifier ports.Notifier,
	logger *zap.SugaredLogger,
) *Orchestrator {
	o := &Orchestrator{
		self:       self,
		role:       role,
		registry:   registry,
		router:     NewRouter(relay, logger),
		relay:      relay,
		transports: transports,
		sources:    sources,
		notifier:   notifier,
		logger:     logger,
		ctx:        context.Background(),
		events:     make(chan func(), eventQueueSize),
		done:       make(chan struct{}),
	}
	o.links = NewLinkTable(o.newLink, logger)
	return o
}

// newLink binds the per-link callbacks: locally gathered candidates go out
// as targeted ice-candidate envelopes, inbound tracks surface on the
// notifier. Both callbacks fire on transport goroutines and are posted back
// onto the event loop before touching link state.
func (o *Orchestrator) newLink(key domain.LinkKey) *Link {
	onCandidate := func(candidate webrtc.ICECandidateInit) {
		o.post(func() {
			link, ok := o.links.Get(key)
			if !ok || link.Closed() {
				return
			}
			if err := o.router.SendCandidate(o.ctx, key.Remote, key.Kind, candidate); err != nil {
				o.logger.Warnw("failed to send local candidate", "link", key.String(), "error", err)
			}
		})
	}
	onTrack := func(trackKind string) {
		o.post(func() {
			o.logger.Infow("remote track started", "link", key.String(), "track_kind", trackKind)
			o.notifier.RemoteTrackStarted(key.Remote, key.Kind)
		})
	}
	return NewLink(key, o.transports, onCandidate, onTrack, o.logger)
}

// post enqueues work for the event loop. Never blocks transport goroutines;
// a full queue drops the event with a log line.
func (o *Orchestrator) post(fn func()) {
	select {
	case o.events <- fn:
	case <-o.done:
	default:
		o.logger.Warnw("event queue full, dropping event", "room_user", string(o.self))
	}
}

// Run joins the room and processes events until ctx is cancelled or the
// relay channel closes. It is the only goroutine mutating orchestrator state.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.ctx = ctx
	defer close(o.done)
	defer o.teardown()

	if err := o.router.SendJoin(ctx, o.self, o.role == domain.RoleTeacher); err != nil {
		return fmt.Errorf("join room: %w", err)
	}

	inbound := o.relay.Receive()
	for {
		select {
		case env, ok := <-inbound:
			if !ok {
				o.logger.Infow("relay channel closed", "user", string(o.self))
				return nil
			}
			if err := o.router.Dispatch(env, o); err != nil {
				o.logger.Warnw("dropping relay message", "error", err)
			}
		case fn := <-o.events:
			fn()
		case <-ctx.Done():
			return nil
		}
	}
}

func (o *Orchestrator) teardown() {
	o.links.CloseAll()
	o.releaseActiveSource()
}

func (o *Orchestrator) releaseActiveSource() {
	if o.active != nil {
		if err := o.active.Close(); err != nil {
			o.logger.Warnw("error releasing capture source", "kind", string(o.activeKind), "error", err)
		}
		o.active = nil
		o.activeKind = ""
	}
}

// do runs fn on the event loop and waits for its result. For external
// callers only; loop-internal code calls handlers directly.
func (o *Orchestrator) do(ctx context.Context, fn func() error) error {
	reply := make(chan error, 1)
	select {
	case o.events <- func() { reply <- fn() }:
	case <-o.done:
		return fmt.Errorf("orchestrator stopped")
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// --- User commands ---

// StartBroadcast acquires a capture source for the teacher's outgoing stream
// and announces readiness. Students already watching keep their links;
// students not yet connected learn to request via teacher-ready.
func (o *Orchestrator) StartBroadcast(ctx context.Context, kind domain.CaptureKind) error {
	return o.do(ctx, func() error { return o.startBroadcast(kind) })
}

func (o *Orchestrator) startBroadcast(kind domain.CaptureKind) error {
	if o.role != domain.RoleTeacher {
		return fmt.Errorf("start broadcast as %s: %w", o.role, domain.ErrPermissionDenied)
	}
	o.releaseActiveSource()

	source, err := o.sources.Acquire(o.ctx, kind)
	if err != nil {
		o.notifier.Error(fmt.Sprintf("failed to start %s: %v", kind, err))
		return fmt.Errorf("acquire %s: %w", kind, domain.ErrCapabilityUnavailable)
	}
	o.active = source
	o.activeKind = kind

	if err := o.router.SendTeacherReady(o.ctx); err != nil {
		return fmt.Errorf("announce broadcast: %w", err)
	}
	o.notifier.Info("broadcast started, students can request the stream")
	return nil
}

// StopBroadcast closes every broadcast link, releases the source and
// notifies the room.
func (o *Orchestrator) StopBroadcast(ctx context.Context) error {
	return o.do(ctx, func() error { return o.stopBroadcast() })
}

func (o *Orchestrator) stopBroadcast() error {
	if o.role != domain.RoleTeacher {
		return fmt.Errorf("stop broadcast as %s: %w", o.role, domain.ErrPermissionDenied)
	}
	o.links.CloseAllOfKind(domain.LinkTeacherBroadcast)
	o.releaseActiveSource()
	if err := o.router.SendStreamStopped(o.ctx, true); err != nil {
		return fmt.Errorf("announce stop: %w", err)
	}
	o.notifier.Info("broadcast stopped")
	return nil
}

// StartUpload starts a student's own stream toward the teacher, stopping any
// prior upload first. Gated on the matching permission grant.
func (o *Orchestrator) StartUpload(ctx context.Context, kind domain.CaptureKind) error {
	return o.do(ctx, func() error { return o.startUpload(kind) })
}

func (o *Orchestrator) startUpload(kind domain.CaptureKind) error {
	if o.role != domain.RoleStudent {
		return fmt.Errorf("start upload as %s: %w", o.role, domain.ErrPermissionDenied)
	}
	self, ok := o.registry.Get(o.self)
	if !ok || !self.Permissions.Allows(kind.RequiredPermission()) {
		o.notifier.Error(fmt.Sprintf("%s is not allowed by the teacher", kind))
		return fmt.Errorf("%s not granted: %w", kind.RequiredPermission(), domain.ErrPermissionDenied)
	}
	teacher, ok := o.registry.Teacher()
	if !ok {
		return fmt.Errorf("no teacher in room: %w", domain.ErrUnknownParticipant)
	}

	if o.active != nil {
		if err := o.stopUpload(); err != nil {
			o.logger.Warnw("error stopping previous upload", "error", err)
		}
	}

	source, err := o.sources.Acquire(o.ctx, kind)
	if err != nil {
		o.notifier.Error(fmt.Sprintf("failed to start %s: %v", kind, err))
		return fmt.Errorf("acquire %s: %w", kind, domain.ErrCapabilityUnavailable)
	}

	key := domain.LinkKey{Kind: domain.LinkStudentUpload, Remote: teacher.Username}
	link := o.links.CreateForOutbound(key)
	offer, err := link.Initiate(o.ctx, source)
	if err != nil {
		o.links.RemoveAndClose(key)
		source.Close()
		o.notifier.Error(fmt.Sprintf("failed to start your %s", kind))
		return err
	}
	o.active = source
	o.activeKind = kind

	if err := o.router.SendStudentOffer(o.ctx, teacher.Username, offer); err != nil {
		o.links.RemoveAndClose(key)
		o.releaseActiveSource()
		return fmt.Errorf("send upload offer: %w", err)
	}
	o.notifier.Info(fmt.Sprintf("your %s has been started", kind))
	return nil
}

// StopUpload tears down the student's upload link and source.
func (o *Orchestrator) StopUpload(ctx context.Context) error {
	return o.do(ctx, func() error { return o.stopUpload() })
}

func (o *Orchestrator) stopUpload() error {
	if o.role != domain.RoleStudent {
		return fmt.Errorf("stop upload as %s: %w", o.role, domain.ErrPermissionDenied)
	}
	if teacher, ok := o.registry.Teacher(); ok {
		o.links.RemoveAndClose(domain.LinkKey{Kind: domain.LinkStudentUpload, Remote: teacher.Username})
	} else {
		o.links.CloseAllOfKind(domain.LinkStudentUpload)
	}
	o.releaseActiveSource()
	if err := o.router.SendStreamStopped(o.ctx, false); err != nil {
		return fmt.Errorf("announce stop: %w", err)
	}
	return nil
}

// GrantPermission toggles a student capability. Revocation is prospective:
// it blocks future starts but does not close an in-progress upload link.
func (o *Orchestrator) GrantPermission(ctx context.Context, target domain.Username, perm domain.Permission, status bool) error {
	return o.do(ctx, func() error {
		if o.role != domain.RoleTeacher {
			return fmt.Errorf("grant permission as %s: %w", o.role, domain.ErrPermissionDenied)
		}
		if err := o.registry.SetPermission(target, perm, status); err != nil {
			return err
		}
		return o.router.SendGrantPermission(o.ctx, target, perm, status)
	})
}

// SendChat relays an opaque chat line to the room.
func (o *Orchestrator) SendChat(ctx context.Context, text string) error {
	return o.do(ctx, func() error { return o.router.SendChat(o.ctx, text) })
}

// --- Relay events (EventHandler) ---

// HandleTeacherReady: a live teacher is announced; students pull the stream
// by requesting it once their side is set up.
func (o *Orchestrator) HandleTeacherReady() {
	if o.role != domain.RoleStudent {
		return
	}
	if err := o.router.SendRequestStream(o.ctx); err != nil {
		o.logger.Warnw("failed to request teacher stream", "error", err)
	}
}

// HandleRequestStream: a student asked for the broadcast; initiate a
// teacher_broadcast link carrying the active source.
func (o *Orchestrator) HandleRequestStream(from domain.Username) {
	if o.role != domain.RoleTeacher {
		return
	}
	if o.active == nil {
		o.logger.Warnw("stream requested with no active broadcast", "student", string(from))
		o.notifier.Error(fmt.Sprintf("cannot connect %s: broadcast is not active", from))
		return
	}

	key := domain.LinkKey{Kind: domain.LinkTeacherBroadcast, Remote: from}
	link := o.links.CreateForOutbound(key)
	offer, err := link.Initiate(o.ctx, o.active)
	if err != nil {
		o.links.RemoveAndClose(key)
		o.logger.Warnw("failed to initiate broadcast link", "student", string(from), "error", err)
		o.notifier.Error(fmt.Sprintf("failed to initiate stream for %s", from))
		return
	}
	if err := o.router.SendOffer(o.ctx, from, offer); err != nil {
		o.links.RemoveAndClose(key)
		o.logger.Warnw("failed to send offer", "student", string(from), "error", err)
	}
}

// HandleOffer: the teacher offered us their broadcast.
func (o *Orchestrator) HandleOffer(from domain.Username, offer webrtc.SessionDescription) {
	if o.role != domain.RoleStudent {
		return
	}
	o.acceptInbound(domain.LinkKey{Kind: domain.LinkTeacherBroadcast, Remote: from}, offer, o.router.SendAnswer)
}

// HandleStudentOffer: a student offered their upload stream to us.
func (o *Orchestrator) HandleStudentOffer(from domain.Username, offer webrtc.SessionDescription) {
	if o.role != domain.RoleTeacher {
		return
	}
	o.acceptInbound(domain.LinkKey{Kind: domain.LinkStudentUpload, Remote: from}, offer, o.router.SendStudentAnswer)
}

func (o *Orchestrator) acceptInbound(
	key domain.LinkKey,
	offer webrtc.SessionDescription,
	sendAnswer func(context.Context, domain.Username, webrtc.SessionDescription) error,
) {
	link := o.links.GetOrCreateForInboundOffer(key)
	// The receiving side of both link kinds only consumes media.
	answer, err := link.AcceptOffer(o.ctx, offer, nil)
	if err != nil {
		o.links.RemoveAndClose(key)
		o.logger.Warnw("failed to accept offer", "link", key.String(), "error", err)
		o.notifier.Error(fmt.Sprintf("failed to receive stream from %s", key.Remote))
		return
	}
	if err := sendAnswer(o.ctx, key.Remote, answer); err != nil {
		o.links.RemoveAndClose(key)
		o.logger.Warnw("failed to send answer", "link", key.String(), "error", err)
	}
}

// HandleAnswer: a student answered our broadcast offer.
func (o *Orchestrator) HandleAnswer(from domain.Username, answer webrtc.SessionDescription) {
	if o.role != domain.RoleTeacher {
		return
	}
	o.applyAnswer(domain.LinkKey{Kind: domain.LinkTeacherBroadcast, Remote: from}, answer)
}

// HandleStudentAnswer: the teacher answered our upload offer.
func (o *Orchestrator) HandleStudentAnswer(from domain.Username, answer webrtc.SessionDescription) {
	if o.role != domain.RoleStudent {
		return
	}
	o.applyAnswer(domain.LinkKey{Kind: domain.LinkStudentUpload, Remote: from}, answer)
}

func (o *Orchestrator) applyAnswer(key domain.LinkKey, answer webrtc.SessionDescription) {
	link, ok := o.links.Get(key)
	if !ok {
		// Late answer for a link already torn down (peer left, local stop).
		o.logger.Debugw("answer for absent link", "link", key.String())
		return
	}
	if err := link.AcceptAnswer(answer); err != nil {
		o.links.RemoveAndClose(key)
		o.logger.Warnw("failed to apply answer", "link", key.String(), "error", err)
		o.notifier.Error(fmt.Sprintf("failed to establish connection with %s", key.Remote))
	}
}

// HandleCandidate routes a remote candidate to its link by the explicit
// (kind, sender) key; the discriminator removes the ambiguity a bare
// candidate message would have.
func (o *Orchestrator) HandleCandidate(from domain.Username, kind domain.LinkKind, candidate webrtc.ICECandidateInit) {
	link, ok := o.links.Get(domain.LinkKey{Kind: kind, Remote: from})
	if !ok {
		o.logger.Debugw("candidate for absent link", "kind", string(kind), "from", string(from))
		return
	}
	link.AddRemoteCandidate(candidate)
}

// HandlePermissionChanged records a grant/revoke that targets us.
func (o *Orchestrator) HandlePermissionChanged(perm domain.Permission, status bool) {
	if _, ok := o.registry.Get(o.self); !ok {
		o.registry.Upsert(domain.Participant{Username: o.self, Role: o.role})
	}
	if err := o.registry.SetPermission(o.self, perm, status); err != nil {
		o.logger.Warnw("failed to record permission change", "error", err)
		return
	}
	verb := "revoked"
	if status {
		verb = "granted"
	}
	o.notifier.Info(fmt.Sprintf("permission for %s has been %s", perm, verb))
}

// HandleParticipantList applies a full roster snapshot.
func (o *Orchestrator) HandleParticipantList(entries []signal.ParticipantInfo) {
	students := make([]domain.Participant, 0, len(entries))
	for _, entry := range entries {
		p := domain.Participant{Username: entry.Username, Role: entry.Role, Permissions: entry.Permissions}
		if p.Role == domain.RoleTeacher {
			o.registry.Upsert(p)
			continue
		}
		students = append(students, p)
	}
	o.registry.ReplaceStudents(students)
	o.notifier.RosterChanged(o.registry.List())
}

func (o *Orchestrator) HandleParticipantJoined(entry signal.ParticipantInfo) {
	o.registry.Upsert(domain.Participant{Username: entry.Username, Role: entry.Role, Permissions: entry.Permissions})
	o.notifier.RosterChanged(o.registry.List())
}

// HandleParticipantLeft closes every link to the departed participant in the
// same orchestration step that drops them from the registry.
func (o *Orchestrator) HandleParticipantLeft(username domain.Username) {
	o.links.CloseAllForRemote(username)
	o.registry.Remove(username)
	o.notifier.RosterChanged(o.registry.List())
}

// HandleStreamStopped tears down the receiving side of a remote stop.
func (o *Orchestrator) HandleStreamStopped(from domain.Username, fromTeacher bool) {
	switch {
	case fromTeacher && o.role == domain.RoleStudent:
		o.links.RemoveAndClose(domain.LinkKey{Kind: domain.LinkTeacherBroadcast, Remote: from})
		o.notifier.Info("teacher has stopped the stream")
	case !fromTeacher && o.role == domain.RoleTeacher:
		o.links.RemoveAndClose(domain.LinkKey{Kind: domain.LinkStudentUpload, Remote: from})
		o.notifier.Info(fmt.Sprintf("%s has stopped their stream", from))
	}
}

// HandleChat passes chat through untouched; it is not part of negotiation.
func (o *Orchestrator) HandleChat(from domain.Username, text string) {
	o.notifier.ChatMessage(from, text)
}

// Links exposes the table for tests and the client binary's status output.
func (o *Orchestrator) Links() *LinkTable { return o.links }

var _ EventHandler = (*Orchestrator)(nil)
