package prompt

// Key identifies a raw key event delivered to a text field.
type Key string

const (
	// KeyEnter is delivered when the user presses Enter inside a text field.
	KeyEnter Key = "enter"
	// KeyEscape is delivered when the user presses Escape inside a text field.
	KeyEscape Key = "esc"
)

// Host presents modal surfaces. Implementations own the event loop that delivers
// widget callbacks; Open itself must not block.
type Host interface {
	// Open creates a surface titled title. onDismiss is invoked when the user closes
	// the surface through the host (Escape, EOF, window close) rather than through
	// one of the attached widgets.
	Open(title string, onDismiss func()) Surface
}

// Surface is one modal dialog owned by a Host.
type Surface interface {
	// Attach appends a widget to the surface content, in display order.
	Attach(widget Widget)
	// Present shows the surface. Presenting is non-blocking.
	Present() error
	// Dismiss closes the surface. It is idempotent and never calls onDismiss.
	Dismiss()
}

// Widget is a primitive component a Host knows how to render.
type Widget interface {
	widget()
}

// Message is static body text.
type Message struct {
	Body string
}

// TextField is a single-line text input.
type TextField struct {
	Placeholder string
	// OnChange receives the full field value after every edit.
	OnChange func(value string)
	// OnKey receives raw key events the host does not consume for editing.
	OnKey func(key Key)
}

// Button is a clickable action. Emphasis marks the call-to-action button.
type Button struct {
	Label    string
	Emphasis bool
	OnClick  func()
}

func (*Message) widget()   {}
func (*TextField) widget() {}
func (*Button) widget()    {}
