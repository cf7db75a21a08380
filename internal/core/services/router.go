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

// EventHandler receives validated relay events, one call per message. The
// orchestrator implements it; tests can substitute their own.
type EventHandler interface {
	HandleTeacherReady()
	HandleRequestStream(from domain.Username)
	HandleOffer(from domain.Username, offer webrtc.SessionDescription)
	HandleAnswer(from domain.Username, answer webrtc.SessionDescription)
	HandleStudentOffer(from domain.Username, offer webrtc.SessionDescription)
	HandleStudentAnswer(from domain.Username, answer webrtc.SessionDescription)
	HandleCandidate(from domain.Username, kind domain.LinkKind, candidate webrtc.ICECandidateInit)
	HandlePermissionChanged(perm domain.Permission, status bool)
	HandleParticipantList(entries []signal.ParticipantInfo)
	HandleParticipantJoined(entry signal.ParticipantInfo)
	HandleParticipantLeft(username domain.Username)
	HandleStreamStopped(from domain.Username, fromTeacher bool)
	HandleChat(from domain.Username, text string)
}

// Router sits between the relay and the rest of the core: inbound envelopes
// are validated and dispatched to the handler, outbound negotiation messages
// are serialized for the relay. Malformed envelopes never reach
// state-machine logic.
type Router struct {
	relay  ports.Relay
	logger *zap.SugaredLogger
}

func NewRouter(relay ports.Relay, logger *zap.SugaredLogger) *Router {
	return &Router{relay: relay, logger: logger}
}

// Dispatch routes one inbound envelope.
func (r *Router) Dispatch(env *signal.Envelope, h EventHandler) error {
	if err := env.Validate(); err != nil {
		return fmt.Errorf("rejecting envelope: %w", err)
	}

	switch env.Type {
	case signal.TypeTeacherReady:
		h.HandleTeacherReady()
	case signal.TypeRequestStream:
		h.HandleRequestStream(env.From)
	case signal.TypeOffer:
		h.HandleOffer(env.From, *env.Offer)
	case signal.TypeAnswer:
		h.HandleAnswer(env.From, *env.Answer)
	case signal.TypeStudentOffer:
		h.HandleStudentOffer(env.From, *env.Offer)
	case signal.TypeStudentAnswer:
		h.HandleStudentAnswer(env.From, *env.Answer)
	case signal.TypeICECandidate:
		h.HandleCandidate(env.From, env.LinkKind(), *env.Candidate)
	case signal.TypePermissionChanged:
		h.HandlePermissionChanged(env.Permission, env.Status)
	case signal.TypeParticipantList:
		h.HandleParticipantList(env.Participants)
	case signal.TypeParticipantJoined:
		if len(env.Participants) == 1 {
			h.HandleParticipantJoined(env.Participants[0])
		}
	case signal.TypeParticipantLeft:
		username := env.Username
		if username == "" {
			username = env.From
		}
		h.HandleParticipantLeft(username)
	case signal.TypeStreamStopped:
		h.HandleStreamStopped(env.From, env.IsTeacher)
	case signal.TypeChat:
		h.HandleChat(env.From, env.Message)
	default:
		// join and grant-permission are relay-bound; a client sees them
		// only if the relay misroutes.
		r.logger.Debugw("ignoring envelope not addressed to clients", "type", env.Type)
	}
	return nil
}

// Outbound serialization.

func (r *Router) SendJoin(ctx context.Context, username domain.Username, isTeacher bool) error {
	return r.relay.Send(ctx, &signal.Envelope{Type: signal.TypeJoin, Username: username, IsTeacher: isTeacher})
}

func (r *Router) SendTeacherReady(ctx context.Context) error {
	return r.relay.Send(ctx, &signal.Envelope{Type: signal.TypeTeacherReady})
}

func (r *Router) SendRequestStream(ctx context.Context) error {
	return r.relay.Send(ctx, &signal.Envelope{Type: signal.TypeRequestStream})
}

func (r *Router) SendOffer(ctx context.Context, target domain.Username, offer webrtc.SessionDescription) error {
	return r.relay.Send(ctx, &signal.Envelope{Type: signal.TypeOffer, Target: target, Offer: &offer})
}

func (r *Router) SendAnswer(ctx context.Context, target domain.Username, answer webrtc.SessionDescription) error {
	return r.relay.Send(ctx, &signal.Envelope{Type: signal.TypeAnswer, Target: target, Answer: &answer})
}

func (r *Router) SendStudentOffer(ctx context.Context, target domain.Username, offer webrtc.SessionDescription) error {
	return r.relay.Send(ctx, &signal.Envelope{Type: signal.TypeStudentOffer, Target: target, Offer: &offer})
}

func (r *Router) SendStudentAnswer(ctx context.Context, target domain.Username, answer webrtc.SessionDescription) error {
	return r.relay.Send(ctx, &signal.Envelope{Type: signal.TypeStudentAnswer, Target: target, Answer: &answer})
}

func (r *Router) SendCandidate(ctx context.Context, target domain.Username, kind domain.LinkKind, candidate webrtc.ICECandidateInit) error {
	return r.relay.Send(ctx, &signal.Envelope{
		Type:            signal.TypeICECandidate,
		Target:          target,
		Candidate:       &candidate,
		IsTeacherStream: kind.IsTeacherStream(),
	})
}

func (r *Router) SendGrantPermission(ctx context.Context, target domain.Username, perm domain.Permission, status bool) error {
	return r.relay.Send(ctx, &signal.Envelope{Type: signal.TypeGrantPermission, Target: target, Permission: perm, Status: status})
}

func (r *Router) SendStreamStopped(ctx context.Context, fromTeacher bool) error {
	return r.relay.Send(ctx, &signal.Envelope{Type: signal.TypeStreamStopped, IsTeacher: fromTeacher})
}

func (r *Router) SendChat(ctx context.Context, text string) error {
	return r.relay.Send(ctx, &signal.Envelope{Type: signal.TypeChat, Message: text})
}
