package domain

import "fmt"

// LinkKind discriminates the two directional media links in a classroom.
// It travels on every candidate message as is_teacher_stream so the router
// never infers kind from message type alone.
type LinkKind string

const (
	// LinkTeacherBroadcast carries the teacher's stream to one student.
	// The teacher is the offerer.
	LinkTeacherBroadcast LinkKind = "teacher_broadcast"
	// LinkStudentUpload carries one student's stream to the teacher.
	// The student is the offerer.
	LinkStudentUpload LinkKind = "student_upload"
)

// IsTeacherStream is the wire form of the kind discriminator.
func (k LinkKind) IsTeacherStream() bool {
	return k == LinkTeacherBroadcast
}

func LinkKindFromWire(isTeacherStream bool) LinkKind {
	if isTeacherStream {
		return LinkTeacherBroadcast
	}
	return LinkStudentUpload
}

// LinkState is the negotiation lifecycle of a single link.
type LinkState int

const (
	LinkStateIdle LinkState = iota
	// offerer path
	LinkStateLocalOfferPending
	LinkStateRemoteAnswerPending
	// answerer path
	LinkStateRemoteOfferReceived
	LinkStateLocalAnswerPending
	// terminal-ish
	LinkStateConnected
	LinkStateClosed
)

func (s LinkState) String() string {
	switch s {
	case LinkStateIdle:
		return "idle"
	case LinkStateLocalOfferPending:
		return "local-offer-pending"
	case LinkStateRemoteAnswerPending:
		return "remote-answer-pending"
	case LinkStateRemoteOfferReceived:
		return "remote-offer-received"
	case LinkStateLocalAnswerPending:
		return "local-answer-pending"
	case LinkStateConnected:
		return "connected"
	case LinkStateClosed:
		return "closed"
	default:
		return fmt.Sprintf("%d", int(s))
	}
}

// LinkKey identifies a link: at most one link per (kind, remote) exists.
type LinkKey struct {
	Kind   LinkKind
	Remote Username
}

func (k LinkKey) String() string {
	return fmt.Sprintf("%s/%s", k.Kind, k.Remote)
}
