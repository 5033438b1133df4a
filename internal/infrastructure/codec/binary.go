// Package codec decodes viewer input from its two wire forms: a fixed
// nine-byte binary packet and a JSON text envelope. Both forms yield
// the same command type, and decoding is pure so either transport can
// call it from its own loop.
package codec

import (
	"encoding/binary"
	"fmt"

	"playcast/internal/core/domain"
)

// PacketSize is the exact length of a binary input packet: one
// discriminant byte plus two little-endian 32-bit fields.
const PacketSize = 9

// DecodePacket decodes one binary input packet. Any length other than
// PacketSize fails with ErrMalformedPacket; a discriminant outside the
// enumeration fails with ErrUnknownCommand.
func DecodePacket(buf []byte) (domain.InputCommand, error) {
	if len(buf) != PacketSize {
		return domain.InputCommand{}, fmt.Errorf("%w: got %d bytes, want %d",
			domain.ErrMalformedPacket, len(buf), PacketSize)
	}
	kind := domain.CommandKind(buf[0])
	if !kind.Valid() {
		return domain.InputCommand{}, fmt.Errorf("%w: discriminant %d",
			domain.ErrUnknownCommand, buf[0])
	}
	return domain.InputCommand{
		Kind:   kind,
		Field0: binary.LittleEndian.Uint32(buf[1:5]),
		Field1: binary.LittleEndian.Uint32(buf[5:9]),
	}, nil
}

// EncodePacket renders cmd in the binary wire form.
func EncodePacket(cmd domain.InputCommand) []byte {
	buf := make([]byte, PacketSize)
	buf[0] = byte(cmd.Kind)
	binary.LittleEndian.PutUint32(buf[1:5], cmd.Field0)
	binary.LittleEndian.PutUint32(buf[5:9], cmd.Field1)
	return buf
}
