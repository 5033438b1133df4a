package domain

// XInput-compatible button mask bits.
const (
	ButtonDPadUp    uint16 = 0x0001
	ButtonDPadDown  uint16 = 0x0002
	ButtonDPadLeft  uint16 = 0x0004
	ButtonDPadRight uint16 = 0x0008
	ButtonStart     uint16 = 0x0010
	ButtonSelect    uint16 = 0x0020
	ButtonL1        uint16 = 0x0100
	ButtonR1        uint16 = 0x0200
	ButtonA         uint16 = 0x1000
	ButtonB         uint16 = 0x2000
	ButtonX         uint16 = 0x4000
	ButtonY         uint16 = 0x8000
)

// GamepadState mirrors the full state pushed to the virtual
// controller after every mutation.
type GamepadState struct {
	Buttons      uint16
	LeftTrigger  uint8
	RightTrigger uint8
	ThumbLX      int16
	ThumbLY      int16
	ThumbRX      int16
	ThumbRY      int16
}

// Press sets the given button bits.
func (s *GamepadState) Press(mask uint16) {
	s.Buttons |= mask
}

// Release clears the given button bits.
func (s *GamepadState) Release(mask uint16) {
	s.Buttons &^= mask
}

// ButtonMask maps a digital gamepad command to its mask bit.
// Returns false for commands that are not digital buttons.
func ButtonMask(kind CommandKind) (uint16, bool) {
	switch kind {
	case CommandGamepadButtonX:
		return ButtonX, true
	case CommandGamepadButtonY:
		return ButtonY, true
	case CommandGamepadButtonA:
		return ButtonA, true
	case CommandGamepadButtonB:
		return ButtonB, true
	case CommandGamepadButtonL1:
		return ButtonL1, true
	case CommandGamepadButtonR1:
		return ButtonR1, true
	case CommandGamepadButtonUp:
		return ButtonDPadUp, true
	case CommandGamepadButtonDown:
		return ButtonDPadDown, true
	case CommandGamepadButtonLeft:
		return ButtonDPadLeft, true
	case CommandGamepadButtonRight:
		return ButtonDPadRight, true
	case CommandGamepadButtonStart:
		return ButtonStart, true
	case CommandGamepadButtonSelect:
		return ButtonSelect, true
	default:
		return 0, false
	}
}

// TriggerFromFloat scales a [0,1] trigger value to the 8-bit range,
// saturating instead of wrapping on out-of-range input.
func TriggerFromFloat(v float32) uint8 {
	scaled := int32(v * 256)
	if scaled < 0 {
		return 0
	}
	if scaled > 255 {
		return 255
	}
	return uint8(scaled)
}

// AxisFromFloat scales a [-1,1] stick value to the int16 range,
// saturating instead of wrapping on out-of-range input.
func AxisFromFloat(v float32) int16 {
	scaled := int32(v * 32767)
	if scaled < -32768 {
		return -32768
	}
	if scaled > 32767 {
		return 32767
	}
	return int16(scaled)
}
