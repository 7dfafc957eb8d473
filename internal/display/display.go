// Package display renders ITP packets for logs: bit dumps of raw headers and
// decoded request/response fields.
package display

import (
	"strings"

	"github.com/danmuck/imagedb/internal/protocol"
	"github.com/rs/zerolog"
)

const bytesPerLine = 4

// Bits renders b as binary octets, four per line, each preceded by a space.
func Bits(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b)*9 + len(b)/bytesPerLine)
	for i, octet := range b {
		if i > 0 && i%bytesPerLine == 0 {
			sb.WriteByte('\n')
		}
		sb.WriteByte(' ')
		for bit := 7; bit >= 0; bit-- {
			if octet>>uint(bit)&1 == 1 {
				sb.WriteByte('1')
			} else {
				sb.WriteByte('0')
			}
		}
	}
	return sb.String()
}

// HeaderBits renders only the fixed header of packet.
func HeaderBits(packet []byte) string {
	if len(packet) > protocol.HeaderSize {
		packet = packet[:protocol.HeaderSize]
	}
	return Bits(packet)
}

// LogPacket writes a bit dump of packet at debug level.
func LogPacket(logger zerolog.Logger, msg string, packet []byte) {
	logger.Debug().Int("bytes", len(packet)).Msg(msg + ":\n" + Bits(packet))
}

// LogRequest writes the decoded fields of req.
// The peer is expected on logger's context.
func LogRequest(logger zerolog.Logger, req protocol.Request) {
	logger.Info().
		Uint8("version", req.Version).
		Uint32("ts", req.Timestamp).
		Str("request_type", req.RequestType.String()).
		Str("image_type", req.ImageType.String()).
		Str("image", req.ImageName).
		Msg("itp request")
}

// LogResponse writes the decoded fields of resp. The payload is summarized
// by length only.
func LogResponse(logger zerolog.Logger, resp protocol.Response) {
	logger.Info().
		Uint8("version", resp.Version).
		Str("response_type", resp.ResponseType.String()).
		Uint16("seq", resp.SequenceNumber).
		Uint32("ts", resp.Timestamp).
		Uint32("payload_len", resp.PayloadLength).
		Msg("itp response")
}
