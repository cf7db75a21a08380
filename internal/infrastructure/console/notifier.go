package console

import (
	"fmt"

	"liveclass/internal/core/domain"

	"go.uber.org/zap"
)

// Notifier renders session events to the terminal. Headless tooling swaps in
// its own ports.Notifier.
type Notifier struct {
	logger *zap.SugaredLogger
}

func NewNotifier(logger *zap.SugaredLogger) *Notifier {
	return &Notifier{logger: logger}
}

func (n *Notifier) Info(msg string) {
	fmt.Printf("* %s\n", msg)
}

func (n *Notifier) Error(msg string) {
	fmt.Printf("! %s\n", msg)
}

func (n *Notifier) RemoteTrackStarted(remote domain.Username, kind domain.LinkKind) {
	if kind.IsTeacherStream() {
		fmt.Printf("* receiving broadcast from %s\n", remote)
	} else {
		fmt.Printf("* receiving upload from %s\n", remote)
	}
}

func (n *Notifier) ChatMessage(from domain.Username, text string) {
	fmt.Printf("<%s> %s\n", from, text)
}

func (n *Notifier) RosterChanged(participants []domain.Participant) {
	fmt.Printf("* %d participant(s):", len(participants))
	for _, p := range participants {
		if p.Role == domain.RoleTeacher {
			fmt.Printf(" %s(teacher)", p.Username)
		} else {
			fmt.Printf(" %s", p.Username)
		}
	}
	fmt.Println()
}
