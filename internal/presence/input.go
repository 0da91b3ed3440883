package presence

// InputEvent is a host input the session reacts to while joined.
type InputEvent interface{ isInputEvent() }

type PointerMove struct{ X, Y float64 }

type KeyDown struct{ Key string }

type KeyUp struct{ Key string }

type VisibilityChange struct{ Hidden bool }

func (PointerMove) isInputEvent()      {}
func (KeyDown) isInputEvent()          {}
func (KeyUp) isInputEvent()            {}
func (VisibilityChange) isInputEvent() {}

// Keys recognised by the compose affordance.
const (
	KeyCompose = "/"
	KeySlash   = "Slash"
	KeyEscape  = "Escape"
	KeyEnter   = "Enter"
)

// Host is the page (or terminal, or test double) the session is mounted on.
type Host interface {
	// Listen attaches handler to the host's input sources. The returned
	// release detaches every listener Listen attached.
	Listen(handler func(InputEvent)) (release func())
	// HideCursor suppresses the native pointer while the remote-rendered
	// cursor substitutes for it.
	HideCursor()
	RestoreCursor()
}
