package approval

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/huh"
)

// TerminalSurface renders approval prompts as a confirm form on the host's
// terminal. Used when the server runs standalone, without the desktop shell.
// Prompts are serialized: one form owns the terminal at a time.
type TerminalSurface struct {
	mu sync.Mutex
}

func NewTerminalSurface() *TerminalSurface {
	return &TerminalSurface{}
}

// Open implements Surface.
func (s *TerminalSurface) Open(prompt Prompt) (*Decision, error) {
	result := make(chan bool, 1)
	dismissed := make(chan struct{})
	formCtx, cancel := context.WithCancel(context.Background())

	go func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		var approve bool
		confirm := huh.NewConfirm().
			Title(fmt.Sprintf("Allow %q to control playback?", prompt.AppName)).
			Description(fmt.Sprintf("App %s v%s presented pairing code %s.\nApprove only if the code matches what the app shows.",
				prompt.AppID, prompt.AppVersion, prompt.Code)).
			Affirmative("Approve").
			Negative("Deny").
			Value(&approve)

		err := huh.NewForm(huh.NewGroup(confirm)).RunWithContext(formCtx)
		if err != nil {
			// Esc/ctrl-c or the broker cancelling the form.
			close(dismissed)
			return
		}
		result <- approve
	}()

	return NewDecision(result, dismissed, cancel), nil
}
