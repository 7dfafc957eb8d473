package protocol

import (
	"fmt"

	"github.com/danmuck/imagedb/internal/protocol/frame"
	"github.com/danmuck/imagedb/internal/protocol/schema"
)

// ParseRequest decodes a request packet. Bytes past the declared name length
// are ignored.
func ParseRequest(b []byte) (Request, error) {
	if len(b) < HeaderSize {
		return Request{}, fmt.Errorf("%w: request header wants %d bytes, got %d", ErrTruncated, HeaderSize, len(b))
	}
	h, err := frame.DecodeHeader(schema.RequestLayout, b)
	if err != nil {
		return Request{}, err
	}
	nameLen := h[schema.FieldImageNameLength]
	if uint64(len(b)-HeaderSize) < nameLen {
		return Request{}, fmt.Errorf("%w: name wants %d bytes, got %d", ErrTruncated, nameLen, len(b)-HeaderSize)
	}
	return Request{
		Version:     uint8(h[schema.FieldVersion]),
		RequestType: RequestType(h[schema.FieldRequestType]),
		Timestamp:   uint32(h[schema.FieldTimestamp]),
		ImageType:   ImageType(h[schema.FieldImageTypeCode]),
		ImageName:   DecodeName(b[HeaderSize : HeaderSize+int(nameLen)]),
	}, nil
}

// ParseResponse decodes a response packet. A declared payload length larger
// than the bytes present is rejected rather than guessed at.
func ParseResponse(b []byte) (Response, error) {
	if len(b) < HeaderSize {
		return Response{}, fmt.Errorf("%w: response header wants %d bytes, got %d", ErrTruncated, HeaderSize, len(b))
	}
	h, err := frame.DecodeHeader(schema.ResponseLayout, b)
	if err != nil {
		return Response{}, err
	}
	payloadLen := h[schema.FieldPayloadLength]
	if uint64(len(b)-HeaderSize) < payloadLen {
		return Response{}, fmt.Errorf("%w: payload wants %d bytes, got %d", ErrTruncated, payloadLen, len(b)-HeaderSize)
	}
	payload := make([]byte, payloadLen)
	copy(payload, b[HeaderSize:])
	return Response{
		Version:        uint8(h[schema.FieldVersion]),
		ResponseType:   ResponseType(h[schema.FieldResponseType]),
		SequenceNumber: uint16(h[schema.FieldSequenceNumber]),
		Timestamp:      uint32(h[schema.FieldTimestamp]),
		PayloadLength:  uint32(payloadLen),
		Payload:        payload,
	}, nil
}
