// Package approval brokers the human decision that turns a pairing code
// into a bearer credential.
package approval

// Prompt carries everything an approval surface needs to render the request
// without re-deriving trust: the code and app name shown to the user must be
// the ones the broker redeemed, not anything client-supplied later.
type Prompt struct {
	RequestID  string
	AppID      string
	AppName    string
	AppVersion string
	Code       string
}

// Decision is a live approval surface. Exactly one of Result or Dismissed
// fires for a well-behaved surface; the broker honors only the first signal
// it observes and then calls Close.
type Decision struct {
	Result    <-chan bool     // true = approved, false = denied
	Dismissed <-chan struct{} // surface closed without a decision
	closeFn   func()
}

func NewDecision(result <-chan bool, dismissed <-chan struct{}, closeFn func()) *Decision {
	return &Decision{Result: result, Dismissed: dismissed, closeFn: closeFn}
}

// Close tears the surface down. Safe to call after either signal has fired.
func (d *Decision) Close() {
	if d.closeFn != nil {
		d.closeFn()
	}
}

// Surface presents one approval prompt to the user. Implementations: the
// desktop shell's approval window, the terminal surface, test fakes.
type Surface interface {
	Open(prompt Prompt) (*Decision, error)
}
