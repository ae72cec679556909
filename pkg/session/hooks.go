package session

import "time"

// TurnEvent describes one finished Dispatch.
type TurnEvent struct {
	SessionID string
	Seq       int
	Partial   bool
	Duration  time.Duration
	// Err is set when the interpreter or the commit failed.
	Err error
}

// Hooks are optional callbacks for registry lifecycle events.
// They run synchronously on the calling goroutine and must not call back into the Registry.
type Hooks struct {
	OnCreate    func(sessionID string)
	OnTurn      func(TurnEvent)
	OnEvict     func(sessionID string)
	OnTerminate func(sessionID string)
	OnFailure   func(sessionID string, err error)
}

func (h Hooks) created(id string) {
	if h.OnCreate != nil {
		h.OnCreate(id)
	}
}

func (h Hooks) turned(ev TurnEvent) {
	if h.OnTurn != nil {
		h.OnTurn(ev)
	}
}

func (h Hooks) evicted(id string) {
	if h.OnEvict != nil {
		h.OnEvict(id)
	}
}

func (h Hooks) terminated(id string) {
	if h.OnTerminate != nil {
		h.OnTerminate(id)
	}
}

func (h Hooks) failed(id string, err error) {
	if h.OnFailure != nil {
		h.OnFailure(id, err)
	}
}

// Merge returns Hooks that call h and then other.
func (h Hooks) Merge(other Hooks) Hooks {
	return Hooks{
		OnCreate: func(id string) {
			h.created(id)
			other.created(id)
		},
		OnTurn: func(ev TurnEvent) {
			h.turned(ev)
			other.turned(ev)
		},
		OnEvict: func(id string) {
			h.evicted(id)
			other.evicted(id)
		},
		OnTerminate: func(id string) {
			h.terminated(id)
			other.terminated(id)
		},
		OnFailure: func(id string, err error) {
			h.failed(id, err)
			other.failed(id, err)
		},
	}
}
