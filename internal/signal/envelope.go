package signal

import (
	"encoding/json"
	"fmt"

	"liveclass/internal/core/domain"

	"github.com/pion/webrtc/v3"
)

// Message types carried on the relay channel. Negotiation messages always
// carry an explicit target and, for candidates, the is_teacher_stream link
// discriminator.
type Type string

const (
	TypeJoin              Type = "join"
	TypeTeacherReady      Type = "teacher-ready"
	TypeRequestStream     Type = "request-stream"
	TypeOffer             Type = "offer"
	TypeAnswer            Type = "answer"
	TypeStudentOffer      Type = "student-offer"
	TypeStudentAnswer     Type = "student-answer"
	TypeICECandidate      Type = "ice-candidate"
	TypeGrantPermission   Type = "grant-permission"
	TypePermissionChanged Type = "permission-changed"
	TypeParticipantList   Type = "participant-list"
	TypeParticipantJoined Type = "participant-joined"
	TypeParticipantLeft   Type = "participant-left"
	TypeStreamStopped     Type = "stream-stopped"
	TypeChat              Type = "chat"
)

// ParticipantInfo is one roster entry in a participant-list snapshot.
type ParticipantInfo struct {
	Username    domain.Username      `json:"username"`
	Role        domain.Role          `json:"role"`
	Permissions domain.PermissionSet `json:"permissions"`
}

// Envelope is the JSON message exchanged over the relay. One flat struct
// with omitempty fields; Validate enforces the per-type required set before
// anything reaches state-machine logic. The relay stamps From on delivery.
type Envelope struct {
	Type   Type            `json:"type"`
	From   domain.Username `json:"from_user,omitempty"`
	Target domain.Username `json:"target_user,omitempty"`

	// join
	Username  domain.Username `json:"username,omitempty"`
	IsTeacher bool            `json:"is_teacher,omitempty"`

	// negotiation
	Offer           *webrtc.SessionDescription `json:"offer,omitempty"`
	Answer          *webrtc.SessionDescription `json:"answer,omitempty"`
	Candidate       *webrtc.ICECandidateInit   `json:"candidate,omitempty"`
	IsTeacherStream bool                       `json:"is_teacher_stream,omitempty"`

	// permissions
	Permission domain.Permission `json:"permission,omitempty"`
	Status     bool              `json:"status,omitempty"`

	// roster
	Participants []ParticipantInfo `json:"participants,omitempty"`

	// chat
	Message string `json:"message,omitempty"`
}

// Decode unmarshals and validates one relay message.
func Decode(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("malformed envelope: %w", err)
	}
	if err := env.Validate(); err != nil {
		return nil, err
	}
	return &env, nil
}

func (e *Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// LinkKind returns the link discriminator carried by candidate messages.
func (e *Envelope) LinkKind() domain.LinkKind {
	return domain.LinkKindFromWire(e.IsTeacherStream)
}

// Validate checks the per-type required fields.
func (e *Envelope) Validate() error {
	switch e.Type {
	case "":
		return fmt.Errorf("envelope missing type")
	case TypeJoin:
		if e.Username == "" {
			return fmt.Errorf("join requires username")
		}
	case TypeOffer, TypeStudentOffer:
		if e.Offer == nil {
			return fmt.Errorf("%s requires offer", e.Type)
		}
	case TypeAnswer, TypeStudentAnswer:
		if e.Answer == nil {
			return fmt.Errorf("%s requires answer", e.Type)
		}
	case TypeICECandidate:
		if e.Candidate == nil {
			return fmt.Errorf("ice-candidate requires candidate")
		}
		if e.Target == "" && e.From == "" {
			return fmt.Errorf("ice-candidate requires target_user")
		}
	case TypeGrantPermission:
		if e.Target == "" {
			return fmt.Errorf("grant-permission requires target_user")
		}
		if err := validPermission(e.Permission); err != nil {
			return err
		}
	case TypePermissionChanged:
		if err := validPermission(e.Permission); err != nil {
			return err
		}
	case TypeParticipantLeft:
		if e.Username == "" && e.From == "" {
			return fmt.Errorf("participant-left requires username")
		}
	case TypeChat:
		if e.Message == "" {
			return fmt.Errorf("chat requires message")
		}
	case TypeTeacherReady, TypeRequestStream, TypeStreamStopped,
		TypeParticipantList, TypeParticipantJoined:
		// no required payload beyond type
	default:
		return fmt.Errorf("unknown message type: %s", e.Type)
	}
	return nil
}

func validPermission(p domain.Permission) error {
	switch p {
	case domain.PermissionAudio, domain.PermissionVideo, domain.PermissionScreen:
		return nil
	}
	return fmt.Errorf("unknown permission: %q", p)
}
