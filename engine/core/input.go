package core

type Button uint16

const (
	BUTTON_LEFT Button = iota
	BUTTON_RIGHT
	BUTTON_MIDDLE
	BUTTON_MAX_BUTTONS
)

// Key codes follow the GLFW key values so the window layer can forward
// them unchanged.
type KeyCode uint16

const (
	KEY_SPACE     KeyCode = 32
	KEY_A         KeyCode = 65
	KEY_D         KeyCode = 68
	KEY_E         KeyCode = 69
	KEY_Q         KeyCode = 81
	KEY_R         KeyCode = 82
	KEY_S         KeyCode = 83
	KEY_W         KeyCode = 87
	KEY_ESCAPE    KeyCode = 256
	KEY_ENTER     KeyCode = 257
	KEY_TAB       KeyCode = 258
	KEY_RIGHT     KeyCode = 262
	KEY_LEFT      KeyCode = 263
	KEY_DOWN      KeyCode = 264
	KEY_UP        KeyCode = 265
	KEY_F1        KeyCode = 290
	KEY_LSHIFT    KeyCode = 340
	KEY_LCONTROL  KeyCode = 341
	KEYS_MAX_KEYS KeyCode = 512
)

// Mouse state structure
type MouseState struct {
	X       float64
	Y       float64
	Buttons [BUTTON_MAX_BUTTONS]bool
}

// Keyboard state structure
type KeyboardState struct {
	Keys [KEYS_MAX_KEYS]bool
}

// InputState holds the current and previous states for keyboard and mouse.
// The window layer feeds it, the game reads it, and Update rolls the state
// over at the end of every frame.
type InputState struct {
	events           *EventBus
	KeyboardCurrent  KeyboardState
	KeyboardPrevious KeyboardState
	MouseCurrent     MouseState
	MousePrevious    MouseState
	scroll           float64
}

// NewInputState fires input events on events, which may be nil.
func NewInputState(events *EventBus) *InputState {
	return &InputState{events: events}
}

func (s *InputState) Update() {
	s.KeyboardPrevious = s.KeyboardCurrent
	s.MousePrevious = s.MouseCurrent
	s.scroll = 0
}

// keyboard input
func (s *InputState) IsKeyDown(key KeyCode) bool {
	return key < KEYS_MAX_KEYS && s.KeyboardCurrent.Keys[key]
}

func (s *InputState) IsKeyUp(key KeyCode) bool {
	return !s.IsKeyDown(key)
}

func (s *InputState) WasKeyDown(key KeyCode) bool {
	return key < KEYS_MAX_KEYS && s.KeyboardPrevious.Keys[key]
}

// KeyPressed reports a key that went down during this frame.
func (s *InputState) KeyPressed(key KeyCode) bool {
	return s.IsKeyDown(key) && !s.WasKeyDown(key)
}

func (s *InputState) ProcessKey(key KeyCode, pressed bool) {
	if key >= KEYS_MAX_KEYS {
		return
	}
	// Only handle this if the state actually changed.
	if s.KeyboardCurrent.Keys[key] == pressed {
		return
	}
	s.KeyboardCurrent.Keys[key] = pressed

	code := EVENT_CODE_KEY_RELEASED
	if pressed {
		code = EVENT_CODE_KEY_PRESSED
	}
	var ctx EventContext
	ctx.Data.U32[0] = uint32(key)
	s.fire(code, ctx)
}

// mouse input
func (s *InputState) IsButtonDown(button Button) bool {
	return button < BUTTON_MAX_BUTTONS && s.MouseCurrent.Buttons[button]
}

func (s *InputState) WasButtonDown(button Button) bool {
	return button < BUTTON_MAX_BUTTONS && s.MousePrevious.Buttons[button]
}

func (s *InputState) MousePosition() (float64, float64) {
	return s.MouseCurrent.X, s.MouseCurrent.Y
}

// MouseDelta is the cursor movement since the last Update.
func (s *InputState) MouseDelta() (float64, float64) {
	return s.MouseCurrent.X - s.MousePrevious.X, s.MouseCurrent.Y - s.MousePrevious.Y
}

// Scroll is the wheel movement since the last Update.
func (s *InputState) Scroll() float64 {
	return s.scroll
}

func (s *InputState) ProcessButton(button Button, pressed bool) {
	if button >= BUTTON_MAX_BUTTONS || s.MouseCurrent.Buttons[button] == pressed {
		return
	}
	s.MouseCurrent.Buttons[button] = pressed

	code := EVENT_CODE_BUTTON_RELEASED
	if pressed {
		code = EVENT_CODE_BUTTON_PRESSED
	}
	var ctx EventContext
	ctx.Data.U32[0] = uint32(button)
	s.fire(code, ctx)
}

func (s *InputState) ProcessMouseMove(x, y float64) {
	if s.MouseCurrent.X == x && s.MouseCurrent.Y == y {
		return
	}
	s.MouseCurrent.X = x
	s.MouseCurrent.Y = y

	var ctx EventContext
	ctx.Data.F64[0] = x
	ctx.Data.F64[1] = y
	s.fire(EVENT_CODE_MOUSE_MOVED, ctx)
}

func (s *InputState) ProcessMouseWheel(zDelta float64) {
	s.scroll += zDelta

	var ctx EventContext
	ctx.Data.F64[0] = zDelta
	s.fire(EVENT_CODE_MOUSE_WHEEL, ctx)
}

func (s *InputState) fire(code SystemEventCode, ctx EventContext) {
	if s.events != nil {
		s.events.Fire(code, s, ctx)
	}
}
