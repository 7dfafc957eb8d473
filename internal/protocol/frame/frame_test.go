package frame

import (
	"bytes"
	"errors"
	"io"
	"net"
	"testing"

	"github.com/danmuck/imagedb/internal/protocol/schema"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestEncodeDecodeHeaderRoundTrip(t *testing.T) {
	in := map[string]uint64{
		schema.FieldVersion:        9,
		schema.FieldResponseType:   1,
		schema.FieldSequenceNumber: 42,
		schema.FieldTimestamp:      123,
		schema.FieldPayloadLength:  5,
	}
	buf, err := EncodeHeader(schema.ResponseLayout, in)
	if err != nil {
		t.Fatalf("encode header: %v", err)
	}
	if len(buf) != FixedHeaderLen {
		t.Fatalf("unexpected header length: %d", len(buf))
	}
	out, err := DecodeHeader(schema.ResponseLayout, buf)
	if err != nil {
		t.Fatalf("decode header: %v", err)
	}
	for name, want := range in {
		if out[name] != want {
			t.Fatalf("field %s: got=%d want=%d", name, out[name], want)
		}
	}
}

func TestEncodeHeaderWireBytes(t *testing.T) {
	buf, err := EncodeHeader(schema.RequestLayout, map[string]uint64{
		schema.FieldVersion:         9,
		schema.FieldTimestamp:       0x01020304,
		schema.FieldImageTypeCode:   4,
		schema.FieldImageNameLength: 5,
	})
	if err != nil {
		t.Fatalf("encode header: %v", err)
	}
	want := []byte{0x90, 0, 0, 0, 0x01, 0x02, 0x03, 0x04, 0x40, 0, 0, 0x05}
	if !bytes.Equal(buf, want) {
		t.Fatalf("wire mismatch: got=% x want=% x", buf, want)
	}
}

func TestEncodeHeaderZeroFillsMissing(t *testing.T) {
	buf, err := EncodeHeader(schema.ResponseLayout, map[string]uint64{schema.FieldVersion: 9})
	if err != nil {
		t.Fatalf("encode header: %v", err)
	}
	out, _ := DecodeHeader(schema.ResponseLayout, buf)
	if out[schema.FieldPayloadLength] != 0 || out[schema.FieldSequenceNumber] != 0 {
		t.Fatalf("expected zero-filled fields: %+v", out)
	}
}

func TestEncodeHeaderRejectsUnknownField(t *testing.T) {
	_, err := EncodeHeader(schema.RequestLayout, map[string]uint64{schema.FieldSequenceNumber: 1})
	var ve schema.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected schema.ValidationError, got %v", err)
	}
}

func TestDecodeHeaderShort(t *testing.T) {
	_, err := DecodeHeader(schema.ResponseLayout, make([]byte, 8))
	if !errors.Is(err, ErrShortHeader) {
		t.Fatalf("expected ErrShortHeader, got %v", err)
	}
}

func TestHeaderRoundTripProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("request header round trips", prop.ForAll(
		func(version, reqType, imgType uint8, ts, nameLen uint32) bool {
			in := map[string]uint64{
				schema.FieldVersion:         uint64(version & 0xF),
				schema.FieldRequestType:     uint64(reqType),
				schema.FieldTimestamp:       uint64(ts),
				schema.FieldImageTypeCode:   uint64(imgType & 0xF),
				schema.FieldImageNameLength: uint64(nameLen & 0x0FFFFFFF),
			}
			buf, err := EncodeHeader(schema.RequestLayout, in)
			if err != nil {
				return false
			}
			out, err := DecodeHeader(schema.RequestLayout, buf)
			if err != nil {
				return false
			}
			for k, v := range in {
				if out[k] != v {
					return false
				}
			}
			return true
		},
		gen.UInt8(), gen.UInt8(), gen.UInt8(), gen.UInt32(), gen.UInt32(),
	))

	properties.Property("response header round trips", prop.ForAll(
		func(version, respType uint8, seq uint16, ts, payloadLen uint32) bool {
			in := map[string]uint64{
				schema.FieldVersion:        uint64(version & 0xF),
				schema.FieldResponseType:   uint64(respType),
				schema.FieldSequenceNumber: uint64(seq),
				schema.FieldTimestamp:      uint64(ts),
				schema.FieldPayloadLength:  uint64(payloadLen),
			}
			buf, err := EncodeHeader(schema.ResponseLayout, in)
			if err != nil {
				return false
			}
			out, err := DecodeHeader(schema.ResponseLayout, buf)
			if err != nil {
				return false
			}
			for k, v := range in {
				if out[k] != v {
					return false
				}
			}
			return true
		},
		gen.UInt8(), gen.UInt8(), gen.UInt16(), gen.UInt32(), gen.UInt32(),
	))

	properties.TestingRun(t)
}

func TestReceiveOneMessageReadsUntilEOF(t *testing.T) {
	r := io.MultiReader(bytes.NewReader([]byte{1, 2}), bytes.NewReader([]byte{3}), bytes.NewReader(nil))
	got, err := ReceiveOneMessage(r, DefaultLimits())
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if !bytes.Equal(got, []byte{1, 2, 3}) {
		t.Fatalf("unexpected bytes: %v", got)
	}

	got, err = ReceiveOneMessage(bytes.NewReader(nil), DefaultLimits())
	if err != nil || len(got) != 0 {
		t.Fatalf("expected empty message without error, got=%v err=%v", got, err)
	}
}

func TestReceiveOneMessageLimit(t *testing.T) {
	_, err := ReceiveOneMessage(bytes.NewReader(make([]byte, 9)), Limits{MaxMessageBytes: 8})
	if !errors.Is(err, ErrMessageTooLarge) {
		t.Fatalf("expected ErrMessageTooLarge, got %v", err)
	}
}

func requestBytes(t *testing.T, name string) []byte {
	t.Helper()
	head, err := EncodeHeader(schema.RequestLayout, map[string]uint64{
		schema.FieldVersion:         9,
		schema.FieldImageTypeCode:   4,
		schema.FieldImageNameLength: uint64(len(name)),
	})
	if err != nil {
		t.Fatalf("encode header: %v", err)
	}
	return append(head, name...)
}

func TestReceiveRequestAcrossSegments(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	packet := requestBytes(t, "photo")
	go func() {
		// one byte per write forces the reader to reassemble
		for _, b := range packet {
			_, _ = client.Write([]byte{b})
		}
	}()

	got, err := ReceiveRequest(server, DefaultLimits())
	if err != nil {
		t.Fatalf("receive request: %v", err)
	}
	if !bytes.Equal(got, packet) {
		t.Fatalf("packet mismatch: got=% x want=% x", got, packet)
	}
}

func TestReceiveRequestErrors(t *testing.T) {
	if _, err := ReceiveRequest(bytes.NewReader(nil), DefaultLimits()); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
	if _, err := ReceiveRequest(bytes.NewReader([]byte{0x90, 0}), DefaultLimits()); !errors.Is(err, ErrShortHeader) {
		t.Fatalf("expected ErrShortHeader, got %v", err)
	}
	packet := requestBytes(t, "photo")
	if _, err := ReceiveRequest(bytes.NewReader(packet[:14]), DefaultLimits()); !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
	if _, err := ReceiveRequest(bytes.NewReader(packet), Limits{MaxNameBytes: 2}); !errors.Is(err, ErrMessageTooLarge) {
		t.Fatalf("expected ErrMessageTooLarge, got %v", err)
	}
}

type recordingConn struct {
	bytes.Buffer
	halfClosed bool
}

func (c *recordingConn) CloseWrite() error {
	c.halfClosed = true
	return nil
}

func TestWriteMessageHalfCloses(t *testing.T) {
	var conn recordingConn
	if err := WriteMessage(&conn, []byte{1, 2, 3}); err != nil {
		t.Fatalf("write message: %v", err)
	}
	if !conn.halfClosed {
		t.Fatalf("expected CloseWrite")
	}
	if !bytes.Equal(conn.Bytes(), []byte{1, 2, 3}) {
		t.Fatalf("unexpected bytes: %v", conn.Bytes())
	}

	var plain bytes.Buffer
	if err := WriteMessage(&plain, []byte{4}); err != nil {
		t.Fatalf("write message without half close: %v", err)
	}
}

func TestDiscardDrainsTrailingBytes(t *testing.T) {
	packet := append(requestBytes(t, "photo"), 0xAA, 0xBB)
	r := bytes.NewReader(packet)
	if _, err := ReceiveRequest(r, DefaultLimits()); err != nil {
		t.Fatalf("receive request: %v", err)
	}
	n, err := Discard(r, DefaultLimits())
	if err != nil {
		t.Fatalf("discard: %v", err)
	}
	if n != 2 || r.Len() != 0 {
		t.Fatalf("expected 2 trailing bytes drained, got n=%d left=%d", n, r.Len())
	}

	n, err = Discard(bytes.NewReader(make([]byte, 10)), Limits{MaxMessageBytes: 4})
	if err != nil || n != 4 {
		t.Fatalf("expected drain capped at 4, got n=%d err=%v", n, err)
	}
}
