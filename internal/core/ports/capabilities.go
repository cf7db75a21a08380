package ports

import (
	"context"

	"liveclass/internal/core/domain"
	"liveclass/internal/signal"

	"github.com/pion/webrtc/v3"
)

// PeerTransport is one underlying peer connection, owned exclusively by one
// link. Offer/answer creation also sets the local description.
type PeerTransport interface {
	CreateOffer(ctx context.Context) (webrtc.SessionDescription, error)
	CreateAnswer(ctx context.Context) (webrtc.SessionDescription, error)
	SetRemoteDescription(desc webrtc.SessionDescription) error
	AddICECandidate(candidate webrtc.ICECandidateInit) error

	// AttachSource adds the source's local tracks to the transport.
	AttachSource(source MediaSource) error

	// OnLocalCandidate registers the callback invoked for every locally
	// gathered candidate. Must be set before negotiation starts.
	OnLocalCandidate(fn func(webrtc.ICECandidateInit))

	// OnRemoteTrack fires once per inbound media track.
	OnRemoteTrack(fn func(trackKind string))

	Close() error
}

// TransportFactory creates transports configured with the room's ICE servers.
type TransportFactory interface {
	NewTransport(ctx context.Context) (PeerTransport, error)
}

// MediaSource is one local capture source (microphone, camera or screen).
type MediaSource interface {
	Kind() domain.CaptureKind
	Tracks() []webrtc.TrackLocal
	Close() error
}

// MediaSourceFactory acquires local capture sources.
type MediaSourceFactory interface {
	Acquire(ctx context.Context, kind domain.CaptureKind) (MediaSource, error)
}

// Relay is the duplex signaling channel for one room.
type Relay interface {
	Send(ctx context.Context, env *signal.Envelope) error
	// Receive yields inbound envelopes; the channel closes when the
	// underlying connection does.
	Receive() <-chan *signal.Envelope
	Close() error
}

// Notifier is the boundary to the UI layer. Only user-visible events cross
// it; negotiation-internal errors stay inside the orchestrator.
type Notifier interface {
	Info(msg string)
	Error(msg string)
	RemoteTrackStarted(remote domain.Username, kind domain.LinkKind)
	ChatMessage(from domain.Username, text string)
	RosterChanged(participants []domain.Participant)
}
