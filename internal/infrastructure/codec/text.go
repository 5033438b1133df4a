package codec

import (
	"encoding/json"
	"fmt"

	"playcast/internal/core/domain"
)

// MsgTypeInput tags input envelopes on the signaling channel. Frames
// carrying any other msg-type belong to the relay, not the decoder.
const MsgTypeInput = "input"

type textEnvelope struct {
	MsgType   string  `json:"msg-type"`
	InputType *uint8  `json:"input-type,omitempty"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
}

// DecodeText decodes a JSON input envelope from a signaling text
// frame. Frames that are not input envelopes, whether tagged with
// another msg-type or not valid JSON at all, return ErrNotInput so the
// caller can relay them untouched. Only frames that claim to be input
// but break the envelope contract are malformed. The discriminant
// comes from the same enumeration as the binary form.
func DecodeText(data []byte) (domain.InputCommand, error) {
	var tag struct {
		MsgType string `json:"msg-type"`
	}
	if err := json.Unmarshal(data, &tag); err != nil || tag.MsgType != MsgTypeInput {
		return domain.InputCommand{}, domain.ErrNotInput
	}

	var env textEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return domain.InputCommand{}, fmt.Errorf("%w: %v", domain.ErrMalformedPacket, err)
	}
	if env.InputType == nil {
		return domain.InputCommand{}, fmt.Errorf("%w: missing input-type", domain.ErrMalformedPacket)
	}
	kind := domain.CommandKind(*env.InputType)
	if !kind.Valid() {
		return domain.InputCommand{}, fmt.Errorf("%w: discriminant %d",
			domain.ErrUnknownCommand, *env.InputType)
	}
	return domain.NewCommand(kind, float32(env.X), float32(env.Y)), nil
}

// EncodeText renders cmd as a signaling input envelope.
func EncodeText(cmd domain.InputCommand) ([]byte, error) {
	t := uint8(cmd.Kind)
	return json.Marshal(textEnvelope{
		MsgType:   MsgTypeInput,
		InputType: &t,
		X:         float64(cmd.X()),
		Y:         float64(cmd.Y()),
	})
}
