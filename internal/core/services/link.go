package services

import (
	"context"
	"fmt"

	"liveclass/internal/core/domain"
	"liveclass/internal/core/ports"

	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// Link owns the negotiation lifecycle of one directional media link. All
// methods run on the orchestrator's event loop; transport callbacks are
// funneled back there before they touch the link, so no locking here.
//
// Offer/answer creation can interleave with other events. Every method
// re-checks the current state after a transport call so a completion racing
// a Close becomes a no-op instead of mutating a replaced link.
type Link struct {
	key       domain.LinkKey
	state     domain.LinkState
	transport ports.PeerTransport
	factory   ports.TransportFactory

	// candidates received before the remote description was set, FIFO
	pending       []webrtc.ICECandidateInit
	remoteDescSet bool
	answered      bool

	onCandidate func(webrtc.ICECandidateInit)
	onTrack     func(trackKind string)

	logger *zap.SugaredLogger
}

// NewLink creates an idle link. onCandidate receives locally gathered
// candidates for outbound delivery; onTrack fires per inbound media track.
func NewLink(
	key domain.LinkKey,
	factory ports.TransportFactory,
	onCandidate func(webrtc.ICECandidateInit),
	onTrack func(trackKind string),
	logger *zap.SugaredLogger,
) *Link {
	return &Link{
		key:         key,
		state:       domain.LinkStateIdle,
		factory:     factory,
		onCandidate: onCandidate,
		onTrack:     onTrack,
		logger:      logger,
	}
}

func (l *Link) Key() domain.LinkKey { return l.key }

func (l *Link) State() domain.LinkState { return l.state }

func (l *Link) Closed() bool { return l.state == domain.LinkStateClosed }

// Initiate starts negotiation as the offerer. Requires an active local
// source; the returned offer is ready for outbound delivery.
func (l *Link) Initiate(ctx context.Context, source ports.MediaSource) (webrtc.SessionDescription, error) {
	var none webrtc.SessionDescription

	if l.state != domain.LinkStateIdle {
		return none, fmt.Errorf("initiate %s in state %s: %w", l.key, l.state, domain.ErrInvalidLinkState)
	}
	if source == nil {
		return none, fmt.Errorf("initiate %s: %w", l.key, domain.ErrNoLocalSource)
	}

	transport, err := l.factory.NewTransport(ctx)
	if err != nil {
		return none, fmt.Errorf("create transport for %s: %w", l.key, domain.ErrNegotiationFailed)
	}
	l.transport = transport
	transport.OnLocalCandidate(l.onCandidate)
	transport.OnRemoteTrack(l.onTrack)

	if err := transport.AttachSource(source); err != nil {
		l.Close()
		return none, fmt.Errorf("attach source to %s: %w", l.key, domain.ErrNegotiationFailed)
	}

	l.state = domain.LinkStateLocalOfferPending
	offer, err := transport.CreateOffer(ctx)
	if err != nil {
		l.Close()
		return none, fmt.Errorf("create offer for %s: %w", l.key, domain.ErrNegotiationFailed)
	}
	// The link may have been closed while the offer was being created.
	if l.state != domain.LinkStateLocalOfferPending {
		return none, fmt.Errorf("offer for %s completed in state %s: %w", l.key, l.state, domain.ErrInvalidLinkState)
	}

	l.state = domain.LinkStateRemoteAnswerPending
	return offer, nil
}

// AcceptOffer starts negotiation as the answerer for an inbound offer.
// source may be nil; the receiving side of both link kinds only consumes
// media. The returned answer is ready for outbound delivery.
func (l *Link) AcceptOffer(ctx context.Context, offer webrtc.SessionDescription, source ports.MediaSource) (webrtc.SessionDescription, error) {
	var none webrtc.SessionDescription

	if l.state != domain.LinkStateIdle {
		return none, fmt.Errorf("accept offer on %s in state %s: %w", l.key, l.state, domain.ErrInvalidLinkState)
	}

	transport, err := l.factory.NewTransport(ctx)
	if err != nil {
		return none, fmt.Errorf("create transport for %s: %w", l.key, domain.ErrNegotiationFailed)
	}
	l.transport = transport
	transport.OnLocalCandidate(l.onCandidate)
	transport.OnRemoteTrack(l.onTrack)

	if source != nil {
		if err := transport.AttachSource(source); err != nil {
			l.Close()
			return none, fmt.Errorf("attach source to %s: %w", l.key, domain.ErrNegotiationFailed)
		}
	}

	if err := transport.SetRemoteDescription(offer); err != nil {
		l.Close()
		return none, fmt.Errorf("apply offer on %s: %w", l.key, domain.ErrNegotiationFailed)
	}
	l.state = domain.LinkStateRemoteOfferReceived
	l.remoteDescSet = true
	l.flushPending()

	l.state = domain.LinkStateLocalAnswerPending
	answer, err := transport.CreateAnswer(ctx)
	if err != nil {
		l.Close()
		return none, fmt.Errorf("create answer for %s: %w", l.key, domain.ErrNegotiationFailed)
	}
	if l.state != domain.LinkStateLocalAnswerPending {
		return none, fmt.Errorf("answer for %s completed in state %s: %w", l.key, l.state, domain.ErrInvalidLinkState)
	}

	l.state = domain.LinkStateConnected
	return answer, nil
}

// AcceptAnswer applies the remote answer exactly once. A duplicate answer
// (relay delivery can duplicate) is a no-op, never an error.
func (l *Link) AcceptAnswer(answer webrtc.SessionDescription) error {
	if l.answered || l.state == domain.LinkStateConnected {
		l.logger.Debugw("ignoring duplicate answer", "link", l.key.String())
		return nil
	}
	if l.state != domain.LinkStateLocalOfferPending && l.state != domain.LinkStateRemoteAnswerPending {
		return fmt.Errorf("accept answer on %s in state %s: %w", l.key, l.state, domain.ErrInvalidLinkState)
	}

	if err := l.transport.SetRemoteDescription(answer); err != nil {
		return fmt.Errorf("apply answer on %s: %w", l.key, domain.ErrNegotiationFailed)
	}
	l.answered = true
	l.remoteDescSet = true
	l.flushPending()
	l.state = domain.LinkStateConnected
	return nil
}

// AddRemoteCandidate applies a remote candidate, queuing it until the remote
// description is set. A single bad candidate never aborts negotiation.
func (l *Link) AddRemoteCandidate(candidate webrtc.ICECandidateInit) {
	if l.state == domain.LinkStateClosed {
		l.logger.Debugw("dropping candidate for closed link", "link", l.key.String())
		return
	}
	if !l.remoteDescSet {
		l.pending = append(l.pending, candidate)
		return
	}
	if err := l.transport.AddICECandidate(candidate); err != nil {
		l.logger.Warnw("failed to apply remote candidate", "link", l.key.String(), "error", err)
	}
}

// flushPending applies queued candidates in arrival order.
func (l *Link) flushPending() {
	for _, candidate := range l.pending {
		if err := l.transport.AddICECandidate(candidate); err != nil {
			l.logger.Warnw("failed to apply queued candidate", "link", l.key.String(), "error", err)
		}
	}
	l.pending = nil
}

// Close releases the transport and makes any in-flight negotiation result a
// no-op. Idempotent; a closed link's transport is never reused.
func (l *Link) Close() {
	if l.state == domain.LinkStateClosed {
		return
	}
	if l.transport != nil {
		if err := l.transport.Close(); err != nil {
			l.logger.Warnw("error closing transport", "link", l.key.String(), "error", err)
		}
	}
	l.state = domain.LinkStateClosed
	l.pending = nil
}
