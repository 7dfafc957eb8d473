// Package bits packs unsigned integers into byte buffers at arbitrary bit
// offsets. Bit 0 is the most significant bit of byte 0; values are written
// and read most significant bit first.
package bits

import (
	"errors"
	"fmt"
)

// MaxFieldLen is the widest field the codec addresses in one call.
const MaxFieldLen = 64

var (
	ErrInvalidLength = errors.New("bits: field length must be 1..64")
	ErrOutOfRange    = errors.New("bits: field exceeds buffer")
	ErrValueOverflow = errors.New("bits: value does not fit field length")
)

func checkRange(buf []byte, offset, length int) error {
	if length < 1 || length > MaxFieldLen {
		return fmt.Errorf("%w: length=%d", ErrInvalidLength, length)
	}
	if offset < 0 || offset+length > len(buf)*8 {
		return fmt.Errorf("%w: offset=%d length=%d buffer_bits=%d", ErrOutOfRange, offset, length, len(buf)*8)
	}
	return nil
}

// WriteField stores the low length bits of value into buf starting at bit
// offset. Bits outside [offset, offset+length) are left untouched.
func WriteField(buf []byte, value uint64, offset, length int) error {
	if err := checkRange(buf, offset, length); err != nil {
		return err
	}
	if length < MaxFieldLen && value>>uint(length) != 0 {
		return fmt.Errorf("%w: value=%d length=%d", ErrValueOverflow, value, length)
	}
	// walk from the last bit of the field back to the first, consuming value LSB first
	k := offset + length - 1
	for i := 0; i < length; i++ {
		mask := byte(1) << uint(7-k%8)
		if value&1 == 1 {
			buf[k/8] |= mask
		} else {
			buf[k/8] &^= mask
		}
		value >>= 1
		k--
	}
	return nil
}

// ReadField returns the length bits of buf starting at bit offset.
func ReadField(buf []byte, offset, length int) (uint64, error) {
	if err := checkRange(buf, offset, length); err != nil {
		return 0, err
	}
	var v uint64
	for k := offset; k < offset+length; k++ {
		bit := (buf[k/8] >> uint(7-k%8)) & 1
		v = v<<1 | uint64(bit)
	}
	return v, nil
}

// MustWriteField is WriteField for fixed layouts where a failure is a
// programming error.
func MustWriteField(buf []byte, value uint64, offset, length int) {
	if err := WriteField(buf, value, offset, length); err != nil {
		panic(err)
	}
}

// MustReadField is ReadField for fixed layouts where a failure is a
// programming error.
func MustReadField(buf []byte, offset, length int) uint64 {
	v, err := ReadField(buf, offset, length)
	if err != nil {
		panic(err)
	}
	return v
}
