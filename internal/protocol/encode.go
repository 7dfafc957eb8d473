package protocol

import (
	"fmt"
	"strings"
	"unicode/utf16"

	"github.com/danmuck/imagedb/internal/protocol/frame"
	"github.com/danmuck/imagedb/internal/protocol/schema"
)

const (
	maxNameLen    = 1<<28 - 1
	maxPayloadLen = 1<<32 - 1
)

// Client-side spellings accepted for table extensions.
var extensionAliases = map[string]string{
	"JPG": "JPEG",
	"TIF": "TIFF",
}

// EncodeName converts an image base name to payload bytes. Each UTF-16 code
// unit is emitted high byte first, dropping a zero high byte, so ASCII names
// use one byte per character.
func EncodeName(name string) []byte {
	units := utf16.Encode([]rune(name))
	out := make([]byte, 0, len(units))
	for _, u := range units {
		if u > 0xFF {
			out = append(out, byte(u>>8))
		}
		out = append(out, byte(u))
	}
	return out
}

// DecodeName maps each payload byte back to one character.
func DecodeName(b []byte) string {
	runes := make([]rune, len(b))
	for i, c := range b {
		runes[i] = rune(c)
	}
	return string(runes)
}

// BuildRequest encodes a Query request for baseName with the given extension.
func BuildRequest(version uint8, baseName, ext string, timestamp uint32) ([]byte, error) {
	if version > 0xF {
		return nil, fmt.Errorf("%w: %d", ErrInvalidVersion, version)
	}
	imgType, err := ParseImageType(ext)
	if err != nil {
		return nil, err
	}
	payload := EncodeName(baseName)
	if len(payload) > maxNameLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrNameTooLong, len(payload))
	}
	head, err := frame.EncodeHeader(schema.RequestLayout, map[string]uint64{
		schema.FieldVersion:         uint64(version),
		schema.FieldRequestType:     uint64(RequestQuery),
		schema.FieldTimestamp:       uint64(timestamp),
		schema.FieldImageTypeCode:   uint64(imgType),
		schema.FieldImageNameLength: uint64(len(payload)),
	})
	if err != nil {
		return nil, err
	}
	return append(head, payload...), nil
}

// SplitFileName splits "photo.png" into base name and extension at the first
// dot. Extension aliases (jpg, tif) are resolved to their table names.
func SplitFileName(fileName string) (string, string, error) {
	base, ext, ok := strings.Cut(strings.TrimSpace(fileName), ".")
	if !ok || base == "" || ext == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidFileName, fileName)
	}
	if canonical, ok := extensionAliases[strings.ToUpper(ext)]; ok {
		ext = canonical
	}
	return base, ext, nil
}

// NewRequestFromFileName builds a request for a file name such as "cat.png".
func NewRequestFromFileName(version uint8, fileName string, timestamp uint32) ([]byte, error) {
	base, ext, err := SplitFileName(fileName)
	if err != nil {
		return nil, err
	}
	return BuildRequest(version, base, ext, timestamp)
}

// BuildResponse encodes a response header followed by payload.
func BuildResponse(version uint8, rt ResponseType, seq uint16, timestamp uint32, payload []byte) ([]byte, error) {
	if version > 0xF {
		return nil, fmt.Errorf("%w: %d", ErrInvalidVersion, version)
	}
	if uint64(len(payload)) > maxPayloadLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}
	head, err := frame.EncodeHeader(schema.ResponseLayout, map[string]uint64{
		schema.FieldVersion:        uint64(version),
		schema.FieldResponseType:   uint64(rt),
		schema.FieldSequenceNumber: uint64(seq),
		schema.FieldTimestamp:      uint64(timestamp),
		schema.FieldPayloadLength:  uint64(len(payload)),
	})
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(head)+len(payload))
	out = append(out, head...)
	return append(out, payload...), nil
}
