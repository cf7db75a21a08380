package services

import (
	"context"
	"sync"

	"liveclass/internal/core/domain"
	"liveclass/internal/core/ports"
	"liveclass/internal/signal"

	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

type MockTransportFactory struct {
	mock.Mock
}

func (m *MockTransportFactory) NewTransport(ctx context.Context) (ports.PeerTransport, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(ports.PeerTransport), args.Error(1)
}

type MockPeerTransport struct {
	mock.Mock
}

func (m *MockPeerTransport) CreateOffer(ctx context.Context) (webrtc.SessionDescription, error) {
	args := m.Called(ctx)
	return args.Get(0).(webrtc.SessionDescription), args.Error(1)
}

func (m *MockPeerTransport) CreateAnswer(ctx context.Context) (webrtc.SessionDescription, error) {
	args := m.Called(ctx)
	return args.Get(0).(webrtc.SessionDescription), args.Error(1)
}

func (m *MockPeerTransport) SetRemoteDescription(desc webrtc.SessionDescription) error {
	args := m.Called(desc)
	return args.Error(0)
}

func (m *MockPeerTransport) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	args := m.Called(candidate)
	return args.Error(0)
}

func (m *MockPeerTransport) AttachSource(source ports.MediaSource) error {
	args := m.Called(source)
	return args.Error(0)
}

func (m *MockPeerTransport) OnLocalCandidate(fn func(webrtc.ICECandidateInit)) {
	m.Called(fn)
}

func (m *MockPeerTransport) OnRemoteTrack(fn func(trackKind string)) {
	m.Called(fn)
}

func (m *MockPeerTransport) Close() error {
	args := m.Called()
	return args.Error(0)
}

type MockMediaSource struct {
	mock.Mock
}

func (m *MockMediaSource) Kind() domain.CaptureKind {
	args := m.Called()
	return args.Get(0).(domain.CaptureKind)
}

func (m *MockMediaSource) Tracks() []webrtc.TrackLocal {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]webrtc.TrackLocal)
}

func (m *MockMediaSource) Close() error {
	args := m.Called()
	return args.Error(0)
}

type MockMediaSourceFactory struct {
	mock.Mock
}

func (m *MockMediaSourceFactory) Acquire(ctx context.Context, kind domain.CaptureKind) (ports.MediaSource, error) {
	args := m.Called(ctx, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(ports.MediaSource), args.Error(1)
}

// fakeRelay records every outbound envelope and exposes a channel the test
// pushes inbound envelopes onto.
type fakeRelay struct {
	mu      sync.Mutex
	sent    []*signal.Envelope
	sendErr error
	inbound chan *signal.Envelope
}

func newFakeRelay() *fakeRelay {
	return &fakeRelay{inbound: make(chan *signal.Envelope, 16)}
}

func (r *fakeRelay) Send(_ context.Context, env *signal.Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sendErr != nil {
		return r.sendErr
	}
	r.sent = append(r.sent, env)
	return nil
}

func (r *fakeRelay) failSends(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sendErr = err
}

func (r *fakeRelay) Receive() <-chan *signal.Envelope { return r.inbound }

func (r *fakeRelay) Close() error {
	close(r.inbound)
	return nil
}

func (r *fakeRelay) sentEnvelopes() []*signal.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*signal.Envelope, len(r.sent))
	copy(out, r.sent)
	return out
}

func (r *fakeRelay) lastOfType(t signal.Type) *signal.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.sent) - 1; i >= 0; i-- {
		if r.sent[i].Type == t {
			return r.sent[i]
		}
	}
	return nil
}

// recordingNotifier captures UI events without asserting on wording.
type recordingNotifier struct {
	mu     sync.Mutex
	infos  []string
	errors []string
	tracks []domain.LinkKey
	chats  []string
}

func (n *recordingNotifier) Info(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.infos = append(n.infos, msg)
}

func (n *recordingNotifier) Error(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, msg)
}

func (n *recordingNotifier) RemoteTrackStarted(remote domain.Username, kind domain.LinkKind) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tracks = append(n.tracks, domain.LinkKey{Kind: kind, Remote: remote})
}

func (n *recordingNotifier) ChatMessage(from domain.Username, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.chats = append(n.chats, string(from)+": "+text)
}

func (n *recordingNotifier) RosterChanged([]domain.Participant) {}

func (n *recordingNotifier) errorCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.errors)
}
