package webrtc

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"liveclass/internal/core/domain"
	"liveclass/internal/core/ports"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

const (
	audioFrameInterval = 20 * time.Millisecond
	videoFrameInterval = 33 * time.Millisecond
	audioClockRate     = 48000
	videoClockRate     = 90000
)

// SyntheticSourceFactory produces capture sources backed by generated RTP
// streams. Headless deployments (recording bots, load generators) use these
// in place of real device capture.
type SyntheticSourceFactory struct {
	logger *zap.SugaredLogger
}

func NewSyntheticSourceFactory(logger *zap.SugaredLogger) *SyntheticSourceFactory {
	return &SyntheticSourceFactory{logger: logger}
}

func (f *SyntheticSourceFactory) Acquire(ctx context.Context, kind domain.CaptureKind) (ports.MediaSource, error) {
	source := &syntheticSource{
		kind:   kind,
		done:   make(chan struct{}),
		logger: f.logger,
	}

	switch kind {
	case domain.CaptureMicrophone:
		if err := source.addAudioTrack(); err != nil {
			return nil, err
		}
	case domain.CaptureCamera:
		if err := source.addAudioTrack(); err != nil {
			return nil, err
		}
		if err := source.addVideoTrack("camera"); err != nil {
			return nil, err
		}
	case domain.CaptureScreen:
		if err := source.addVideoTrack("screen"); err != nil {
			return nil, err
		}
	default:
		return nil, domain.ErrCapabilityUnavailable
	}

	f.logger.Infow("acquired capture source",
		"kind", kind,
		"tracks", len(source.tracks),
	)
	return source, nil
}

type syntheticSource struct {
	kind   domain.CaptureKind
	tracks []webrtc.TrackLocal

	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup

	logger *zap.SugaredLogger
}

func (s *syntheticSource) Kind() domain.CaptureKind { return s.kind }

func (s *syntheticSource) Tracks() []webrtc.TrackLocal { return s.tracks }

func (s *syntheticSource) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
	})
	s.wg.Wait()
	return nil
}

func (s *syntheticSource) addAudioTrack() error {
	track, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		"audio",
		fmt.Sprintf("liveclass-%s", s.kind),
	)
	if err != nil {
		return fmt.Errorf("failed to create audio track: %w", err)
	}
	s.tracks = append(s.tracks, track)

	s.wg.Add(1)
	go s.writeLoop(track, audioFrameInterval, audioClockRate, 160)
	return nil
}

func (s *syntheticSource) addVideoTrack(label string) error {
	track, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8},
		fmt.Sprintf("video-%s", label),
		fmt.Sprintf("liveclass-%s", s.kind),
	)
	if err != nil {
		return fmt.Errorf("failed to create video track: %w", err)
	}
	s.tracks = append(s.tracks, track)

	s.wg.Add(1)
	go s.writeLoop(track, videoFrameInterval, videoClockRate, 1000)
	return nil
}

// writeLoop emits a steady RTP packet cadence until the source is closed.
// Payload content is filler; the point is a valid, timestamped stream.
func (s *syntheticSource) writeLoop(track *webrtc.TrackLocalStaticRTP, interval time.Duration, clockRate uint32, payloadSize int) {
	defer s.wg.Done()

	var ssrcBytes [4]byte
	rand.Read(ssrcBytes[:])
	ssrc := binary.BigEndian.Uint32(ssrcBytes[:])

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sequence := uint16(0)
	timestamp := uint32(0)
	step := uint32(float64(clockRate) * interval.Seconds())
	payload := make([]byte, payloadSize)

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			packet := &rtp.Packet{
				Header: rtp.Header{
					Version:        2,
					SequenceNumber: sequence,
					Timestamp:      timestamp,
					SSRC:           ssrc,
				},
				Payload: payload,
			}
			if err := track.WriteRTP(packet); err != nil {
				s.logger.Debugw("stopped writing to track",
					"track_id", track.ID(),
					"error", err,
				)
				return
			}
			sequence++
			timestamp += step
		}
	}
}
