package services

import (
	"context"
	"testing"

	"liveclass/internal/core/domain"
	"liveclass/internal/signal"

	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/assert"
)

// recordingHandler captures dispatched events by name.
type recordingHandler struct {
	calls      []string
	from       domain.Username
	linkKind   domain.LinkKind
	permission domain.Permission
	status     bool
}

func (h *recordingHandler) record(name string) { h.calls = append(h.calls, name) }

func (h *recordingHandler) HandleTeacherReady() { h.record("teacher-ready") }
func (h *recordingHandler) HandleRequestStream(from domain.Username) {
	h.record("request-stream")
	h.from = from
}
func (h *recordingHandler) HandleOffer(from domain.Username, _ webrtc.SessionDescription) {
	h.record("offer")
	h.from = from
}
func (h *recordingHandler) HandleAnswer(from domain.Username, _ webrtc.SessionDescription) {
	h.record("answer")
	h.from = from
}
func (h *recordingHandler) HandleStudentOffer(from domain.Username, _ webrtc.SessionDescription) {
	h.record("student-offer")
	h.from = from
}
func (h *recordingHandler) HandleStudentAnswer(from domain.Username, _ webrtc.SessionDescription) {
	h.record("student-answer")
	h.from = from
}
func (h *recordingHandler) HandleCandidate(from domain.Username, kind domain.LinkKind, _ webrtc.ICECandidateInit) {
	h.record("ice-candidate")
	h.from = from
	h.linkKind = kind
}
func (h *recordingHandler) HandlePermissionChanged(perm domain.Permission, status bool) {
	h.record("permission-changed")
	h.permission = perm
	h.status = status
}
func (h *recordingHandler) HandleParticipantList([]signal.ParticipantInfo) {
	h.record("participant-list")
}
func (h *recordingHandler) HandleParticipantJoined(signal.ParticipantInfo) {
	h.record("participant-joined")
}
func (h *recordingHandler) HandleParticipantLeft(username domain.Username) {
	h.record("participant-left")
	h.from = username
}
func (h *recordingHandler) HandleStreamStopped(from domain.Username, fromTeacher bool) {
	h.record("stream-stopped")
	h.from = from
	h.status = fromTeacher
}
func (h *recordingHandler) HandleChat(from domain.Username, _ string) {
	h.record("chat")
	h.from = from
}

func TestRouter_DispatchRejectsInvalidEnvelope(t *testing.T) {
	router := NewRouter(newFakeRelay(), testLogger())
	handler := &recordingHandler{}

	err := router.Dispatch(&signal.Envelope{Type: signal.TypeOffer}, handler)
	assert.Error(t, err)
	assert.Empty(t, handler.calls)

	err = router.Dispatch(&signal.Envelope{Type: "bogus"}, handler)
	assert.Error(t, err)
}

func TestRouter_DispatchCandidateCarriesLinkKind(t *testing.T) {
	router := NewRouter(newFakeRelay(), testLogger())
	candidate := webrtc.ICECandidateInit{Candidate: "candidate:1"}

	handler := &recordingHandler{}
	err := router.Dispatch(&signal.Envelope{
		Type:            signal.TypeICECandidate,
		From:            "prof",
		Candidate:       &candidate,
		IsTeacherStream: true,
	}, handler)
	assert.NoError(t, err)
	assert.Equal(t, domain.LinkTeacherBroadcast, handler.linkKind)
	assert.Equal(t, domain.Username("prof"), handler.from)

	handler = &recordingHandler{}
	err = router.Dispatch(&signal.Envelope{
		Type:      signal.TypeICECandidate,
		From:      "alice",
		Candidate: &candidate,
	}, handler)
	assert.NoError(t, err)
	assert.Equal(t, domain.LinkStudentUpload, handler.linkKind)
}

func TestRouter_DispatchParticipantLeftFallsBackToFrom(t *testing.T) {
	router := NewRouter(newFakeRelay(), testLogger())
	handler := &recordingHandler{}

	err := router.Dispatch(&signal.Envelope{Type: signal.TypeParticipantLeft, From: "alice"}, handler)
	assert.NoError(t, err)
	assert.Equal(t, []string{"participant-left"}, handler.calls)
	assert.Equal(t, domain.Username("alice"), handler.from)
}

func TestRouter_DispatchIgnoresRelayBoundTypes(t *testing.T) {
	router := NewRouter(newFakeRelay(), testLogger())
	handler := &recordingHandler{}

	err := router.Dispatch(&signal.Envelope{
		Type:       signal.TypeGrantPermission,
		Target:     "alice",
		Permission: domain.PermissionAudio,
	}, handler)
	assert.NoError(t, err)
	assert.Empty(t, handler.calls)
}

func TestRouter_SendCandidateStampsDiscriminator(t *testing.T) {
	relay := newFakeRelay()
	router := NewRouter(relay, testLogger())
	candidate := webrtc.ICECandidateInit{Candidate: "candidate:1"}

	err := router.SendCandidate(context.Background(), "alice", domain.LinkTeacherBroadcast, candidate)
	assert.NoError(t, err)
	err = router.SendCandidate(context.Background(), "prof", domain.LinkStudentUpload, candidate)
	assert.NoError(t, err)

	sent := relay.sentEnvelopes()
	assert.Len(t, sent, 2)
	assert.True(t, sent[0].IsTeacherStream)
	assert.Equal(t, domain.Username("alice"), sent[0].Target)
	assert.False(t, sent[1].IsTeacherStream)
}
