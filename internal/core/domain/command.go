package domain

import "math"

// CommandKind is the wire discriminant of an input command.
type CommandKind uint8

const (
	CommandCursorLeftDown      CommandKind = 0
	CommandCursorLeftUp        CommandKind = 1
	CommandCursorLeftClick     CommandKind = 2
	CommandCursorRightClick    CommandKind = 3
	CommandCursorMove          CommandKind = 4
	CommandCursorScroll        CommandKind = 5
	CommandGamepadButtonX      CommandKind = 6
	CommandGamepadButtonY      CommandKind = 7
	CommandGamepadButtonA      CommandKind = 8
	CommandGamepadButtonB      CommandKind = 9
	CommandGamepadButtonL1     CommandKind = 10
	CommandGamepadButtonR1     CommandKind = 11
	CommandGamepadButtonL2     CommandKind = 12
	CommandGamepadButtonR2     CommandKind = 13
	CommandGamepadButtonUp     CommandKind = 14
	CommandGamepadButtonDown   CommandKind = 15
	CommandGamepadButtonLeft   CommandKind = 16
	CommandGamepadButtonRight  CommandKind = 17
	CommandGamepadLeftStick    CommandKind = 18
	CommandGamepadRightStick   CommandKind = 19
	CommandGamepadButtonStart  CommandKind = 20
	CommandGamepadButtonSelect CommandKind = 21
)

var commandNames = [...]string{
	"cursor_left_down",
	"cursor_left_up",
	"cursor_left_click",
	"cursor_right_click",
	"cursor_move",
	"cursor_scroll",
	"gamepad_x",
	"gamepad_y",
	"gamepad_a",
	"gamepad_b",
	"gamepad_l1",
	"gamepad_r1",
	"gamepad_l2",
	"gamepad_r2",
	"gamepad_up",
	"gamepad_down",
	"gamepad_left",
	"gamepad_right",
	"gamepad_left_stick",
	"gamepad_right_stick",
	"gamepad_start",
	"gamepad_select",
}

func (k CommandKind) String() string {
	if !k.Valid() {
		return "unknown"
	}
	return commandNames[k]
}

// Valid reports whether k is a known discriminant.
func (k CommandKind) Valid() bool {
	return k <= CommandGamepadButtonSelect
}

// IsCursor reports whether k targets the pointer.
func (k CommandKind) IsCursor() bool {
	return k <= CommandCursorScroll
}

// IsGamepad reports whether k targets the virtual controller.
func (k CommandKind) IsGamepad() bool {
	return k >= CommandGamepadButtonX && k <= CommandGamepadButtonSelect
}

// InputCommand is one decoded input event. Field0 and Field1 hold the
// raw 32-bit payload words; their meaning depends on Kind.
type InputCommand struct {
	Kind   CommandKind
	Field0 uint32
	Field1 uint32
}

// NewCommand builds a command from float payloads.
func NewCommand(kind CommandKind, x, y float32) InputCommand {
	return InputCommand{
		Kind:   kind,
		Field0: math.Float32bits(x),
		Field1: math.Float32bits(y),
	}
}

// X returns Field0 interpreted as an IEEE-754 float.
func (c InputCommand) X() float32 {
	return math.Float32frombits(c.Field0)
}

// Y returns Field1 interpreted as an IEEE-754 float.
func (c InputCommand) Y() float32 {
	return math.Float32frombits(c.Field1)
}

// Pressed reports whether a gamepad command carries a press.
// Releases arrive with a zero payload.
func (c InputCommand) Pressed() bool {
	return c.X() > 0
}
