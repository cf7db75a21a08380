package webrtc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"liveclass/internal/core/ports"

	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// TransportConfig WebRTC transport configuration
type TransportConfig struct {
	ICEServers []webrtc.ICEServer
	PortRange  struct {
		Min uint16
		Max uint16
	}
	PLIInterval time.Duration
}

// PionTransportFactory creates peer connections through a shared pion API
// instance so all transports use the same setting engine.
type PionTransportFactory struct {
	config TransportConfig
	api    *webrtc.API
	logger *zap.SugaredLogger
}

func NewPionTransportFactory(config TransportConfig, logger *zap.SugaredLogger) *PionTransportFactory {
	settingEngine := webrtc.SettingEngine{}
	if config.PortRange.Min > 0 && config.PortRange.Max > 0 {
		settingEngine.SetEphemeralUDPPortRange(config.PortRange.Min, config.PortRange.Max)
	}

	if config.PLIInterval <= 0 {
		config.PLIInterval = 3 * time.Second
	}

	return &PionTransportFactory{
		config: config,
		api:    webrtc.NewAPI(webrtc.WithSettingEngine(settingEngine)),
		logger: logger,
	}
}

func (f *PionTransportFactory) NewTransport(ctx context.Context) (ports.PeerTransport, error) {
	pc, err := f.api.NewPeerConnection(webrtc.Configuration{
		ICEServers:   f.config.ICEServers,
		SDPSemantics: webrtc.SDPSemanticsUnifiedPlanWithFallback,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	t := &pionTransport{
		pc:          pc,
		pliInterval: f.config.PLIInterval,
		logger:      f.logger,
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return // end of gathering
		}
		t.mu.RLock()
		fn := t.onCandidate
		t.mu.RUnlock()
		if fn != nil {
			fn(c.ToJSON())
		}
	})

	pc.OnTrack(t.handleRemoteTrack)

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		f.logger.Debugw("peer connection state changed",
			"connection_state", state,
		)
	})

	return t, nil
}

type pionTransport struct {
	pc          *webrtc.PeerConnection
	pliInterval time.Duration

	mu          sync.RWMutex
	onCandidate func(webrtc.ICECandidateInit)
	onTrack     func(trackKind string)
	closed      bool

	logger *zap.SugaredLogger
}

func (t *pionTransport) CreateOffer(ctx context.Context) (webrtc.SessionDescription, error) {
	offer, err := t.pc.CreateOffer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("failed to create offer: %w", err)
	}
	if err := t.pc.SetLocalDescription(offer); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("failed to set local description: %w", err)
	}
	return offer, nil
}

func (t *pionTransport) CreateAnswer(ctx context.Context) (webrtc.SessionDescription, error) {
	answer, err := t.pc.CreateAnswer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("failed to create answer: %w", err)
	}
	if err := t.pc.SetLocalDescription(answer); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("failed to set local description: %w", err)
	}
	return answer, nil
}

func (t *pionTransport) SetRemoteDescription(desc webrtc.SessionDescription) error {
	return t.pc.SetRemoteDescription(desc)
}

func (t *pionTransport) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	return t.pc.AddICECandidate(candidate)
}

func (t *pionTransport) AttachSource(source ports.MediaSource) error {
	for _, track := range source.Tracks() {
		if _, err := t.pc.AddTrack(track); err != nil {
			return fmt.Errorf("failed to add track %s: %w", track.ID(), err)
		}
	}
	return nil
}

func (t *pionTransport) OnLocalCandidate(fn func(webrtc.ICECandidateInit)) {
	t.mu.Lock()
	t.onCandidate = fn
	t.mu.Unlock()
}

func (t *pionTransport) OnRemoteTrack(fn func(trackKind string)) {
	t.mu.Lock()
	t.onTrack = fn
	t.mu.Unlock()
}

func (t *pionTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	return t.pc.Close()
}

// handleRemoteTrack drains inbound media and keeps video flowing by asking the
// sender for keyframes periodically.
func (t *pionTransport) handleRemoteTrack(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
	t.logger.Infow("remote track started",
		"track_id", track.ID(),
		"kind", track.Kind().String(),
		"codec", track.Codec().MimeType,
	)

	t.mu.RLock()
	fn := t.onTrack
	t.mu.RUnlock()
	if fn != nil {
		fn(track.Kind().String())
	}

	if track.Kind() == webrtc.RTPCodecTypeVideo {
		go t.sendPLILoop(track.SSRC())
	}

	go t.drainTrack(track)
	go t.drainRTCP(receiver)
}

// sendPLILoop requests a keyframe at a fixed interval so late joiners and
// lossy paths recover a decodable picture.
func (t *pionTransport) sendPLILoop(ssrc webrtc.SSRC) {
	ticker := time.NewTicker(t.pliInterval)
	defer ticker.Stop()

	for range ticker.C {
		t.mu.RLock()
		closed := t.closed
		t.mu.RUnlock()
		if closed {
			return
		}

		err := t.pc.WriteRTCP([]rtcp.Packet{
			&rtcp.PictureLossIndication{MediaSSRC: uint32(ssrc)},
		})
		if err != nil {
			t.logger.Debugw("failed to send PLI", "ssrc", ssrc, "error", err)
			return
		}
	}
}

func (t *pionTransport) drainTrack(track *webrtc.TrackRemote) {
	buf := make([]byte, 1500) // MTU size
	for {
		if _, _, err := track.Read(buf); err != nil {
			t.logger.Debugw("remote track ended",
				"track_id", track.ID(),
				"error", err,
			)
			return
		}
	}
}

func (t *pionTransport) drainRTCP(receiver *webrtc.RTPReceiver) {
	for {
		if _, _, err := receiver.ReadRTCP(); err != nil {
			return
		}
	}
}
