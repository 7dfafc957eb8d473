package bits

import (
	"bytes"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
)

func TestWriteFieldKnownLayout(t *testing.T) {
	buf := make([]byte, 2)
	require.NoError(t, WriteField(buf, 0x9, 0, 4))
	require.Equal(t, []byte{0x90, 0x00}, buf)

	require.NoError(t, WriteField(buf, 0x1, 4, 8))
	require.Equal(t, []byte{0x90, 0x10}, buf)

	require.NoError(t, WriteField(buf, 0x3, 14, 2))
	require.Equal(t, []byte{0x90, 0x13}, buf)
}

func TestReadFieldKnownLayout(t *testing.T) {
	buf := []byte{0xA5, 0x0F}
	v, err := ReadField(buf, 0, 4)
	require.NoError(t, err)
	require.Equal(t, uint64(0xA), v)

	v, err = ReadField(buf, 4, 8)
	require.NoError(t, err)
	require.Equal(t, uint64(0x50), v)

	v, err = ReadField(buf, 0, 16)
	require.NoError(t, err)
	require.Equal(t, uint64(0xA50F), v)
}

func TestWriteFieldClearsPreviousBits(t *testing.T) {
	buf := []byte{0xFF, 0xFF}
	require.NoError(t, WriteField(buf, 0, 4, 8))
	require.Equal(t, []byte{0xF0, 0x0F}, buf)
}

func TestWriteFieldRejectsOverflow(t *testing.T) {
	buf := make([]byte, 4)
	err := WriteField(buf, 16, 0, 4)
	require.ErrorIs(t, err, ErrValueOverflow)
	require.Equal(t, make([]byte, 4), buf)
}

func TestFieldRangeChecks(t *testing.T) {
	buf := make([]byte, 12)
	require.ErrorIs(t, WriteField(buf, 1, 90, 8), ErrOutOfRange)
	require.ErrorIs(t, WriteField(buf, 1, -1, 4), ErrOutOfRange)
	require.ErrorIs(t, WriteField(buf, 1, 0, 0), ErrInvalidLength)
	require.ErrorIs(t, WriteField(buf, 1, 0, 65), ErrInvalidLength)

	_, err := ReadField(buf, 64, 33)
	require.ErrorIs(t, err, ErrOutOfRange)
	_, err = ReadField(nil, 0, 1)
	require.ErrorIs(t, err, ErrOutOfRange)
}

func TestFullWidthField(t *testing.T) {
	buf := make([]byte, 9)
	require.NoError(t, WriteField(buf, ^uint64(0), 4, 64))
	v, err := ReadField(buf, 4, 64)
	require.NoError(t, err)
	require.Equal(t, ^uint64(0), v)
	require.Equal(t, byte(0xF0), buf[8])
}

func TestMustFieldPanicsOnBadInput(t *testing.T) {
	require.Panics(t, func() { MustWriteField(make([]byte, 1), 2, 7, 1) })
	require.Panics(t, func() { MustReadField(make([]byte, 1), 4, 8) })
	require.NotPanics(t, func() {
		buf := make([]byte, 1)
		MustWriteField(buf, 1, 7, 1)
		require.Equal(t, uint64(1), MustReadField(buf, 7, 1))
	})
}

func TestFieldProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	const bufBits = 96

	// round trip for any field that fits a 12 byte header
	properties.Property("read returns written value", prop.ForAll(
		func(offset, length int, raw uint64) bool {
			if offset+length > bufBits {
				return true
			}
			value := raw & (uint64(1)<<uint(length) - 1)
			buf := make([]byte, bufBits/8)
			if err := WriteField(buf, value, offset, length); err != nil {
				return false
			}
			got, err := ReadField(buf, offset, length)
			return err == nil && got == value
		},
		gen.IntRange(0, bufBits-1),
		gen.IntRange(1, 32),
		gen.UInt64(),
	))

	// writing a field leaves every bit outside it untouched
	properties.Property("neighbouring bits are isolated", prop.ForAll(
		func(offset, length int, raw uint64, fill []byte) bool {
			if offset+length > bufBits {
				return true
			}
			buf := make([]byte, bufBits/8)
			copy(buf, fill)
			before := append([]byte(nil), buf...)

			value := raw & (uint64(1)<<uint(length) - 1)
			if err := WriteField(buf, value, offset, length); err != nil {
				return false
			}
			for k := 0; k < bufBits; k++ {
				if k >= offset && k < offset+length {
					continue
				}
				if MustReadField(buf, k, 1) != MustReadField(before, k, 1) {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, bufBits-1),
		gen.IntRange(1, 32),
		gen.UInt64(),
		gen.SliceOfN(bufBits/8, gen.UInt8()),
	))

	properties.TestingRun(t)
}

func TestAdjacentFieldsDoNotBleed(t *testing.T) {
	buf := make([]byte, 12)
	require.NoError(t, WriteField(buf, 0xF, 0, 4))
	require.NoError(t, WriteField(buf, 0xFF, 4, 8))
	require.NoError(t, WriteField(buf, 0xFFFF, 12, 16))
	snapshot := append([]byte(nil), buf...)

	require.NoError(t, WriteField(buf, 0x00, 4, 8))
	v, _ := ReadField(buf, 0, 4)
	require.Equal(t, uint64(0xF), v)
	v, _ = ReadField(buf, 12, 16)
	require.Equal(t, uint64(0xFFFF), v)
	require.False(t, bytes.Equal(snapshot, buf))
}
