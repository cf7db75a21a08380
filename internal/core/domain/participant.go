package domain

type Username string
type RoomCode string

type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// Permission names one student capability the teacher can grant or revoke.
type Permission string

const (
	PermissionAudio  Permission = "audio"
	PermissionVideo  Permission = "video"
	PermissionScreen Permission = "screen"
)

// PermissionSet holds the per-student capability grants. All false until the
// teacher grants them; meaningless for the teacher's own participant entry.
type PermissionSet struct {
	Audio  bool `json:"audio"`
	Video  bool `json:"video"`
	Screen bool `json:"screen"`
}

func (p PermissionSet) Allows(perm Permission) bool {
	switch perm {
	case PermissionAudio:
		return p.Audio
	case PermissionVideo:
		return p.Video
	case PermissionScreen:
		return p.Screen
	}
	return false
}

func (p *PermissionSet) Set(perm Permission, status bool) {
	switch perm {
	case PermissionAudio:
		p.Audio = status
	case PermissionVideo:
		p.Video = status
	case PermissionScreen:
		p.Screen = status
	}
}

type Participant struct {
	Username    Username
	Role        Role
	Permissions PermissionSet
}

// CaptureKind identifies a local capture source.
type CaptureKind string

const (
	CaptureMicrophone CaptureKind = "microphone"
	CaptureCamera     CaptureKind = "camera"
	CaptureScreen     CaptureKind = "screen"
)

// RequiredPermission maps a capture source to the grant a student needs
// before starting it.
func (c CaptureKind) RequiredPermission() Permission {
	switch c {
	case CaptureMicrophone:
		return PermissionAudio
	case CaptureScreen:
		return PermissionScreen
	default:
		return PermissionVideo
	}
}
