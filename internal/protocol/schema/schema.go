package schema

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"
)

// Header geometry shared by both directions.
const (
	HeaderBytes = 12
	HeaderBits  = HeaderBytes * 8
)

// Field names from the ITP header contract.
const (
	FieldVersion         = "version"
	FieldRequestType     = "requestType"
	FieldResponseType    = "responseType"
	FieldSequenceNumber  = "sequenceNumber"
	FieldTimestamp       = "timestamp"
	FieldImageTypeCode   = "imageTypeCode"
	FieldImageNameLength = "imageNameLength"
	FieldPayloadLength   = "payloadLength"
)

// Field is one fixed-position unsigned integer inside a header.
type Field struct {
	Name   string
	Offset int
	Length int
}

// End returns the first bit after the field.
func (f Field) End() int {
	return f.Offset + f.Length
}

// Max returns the largest value the field can hold.
func (f Field) Max() uint64 {
	if f.Length >= 64 {
		return ^uint64(0)
	}
	return uint64(1)<<uint(f.Length) - 1
}

// Layout is an ordered field table for one header direction.
type Layout struct {
	Name   string
	Fields []Field
}

// Request and response headers keep the type code at different offsets
// (bit 24 vs bit 4). They are separate tables on purpose; do not merge them.
var (
	RequestLayout = Layout{
		Name: "request",
		Fields: []Field{
			{FieldVersion, 0, 4},
			{FieldRequestType, 24, 8},
			{FieldTimestamp, 32, 32},
			{FieldImageTypeCode, 64, 4},
			{FieldImageNameLength, 68, 28},
		},
	}
	ResponseLayout = Layout{
		Name: "response",
		Fields: []Field{
			{FieldVersion, 0, 4},
			{FieldResponseType, 4, 8},
			{FieldSequenceNumber, 12, 16},
			{FieldTimestamp, 32, 32},
			{FieldPayloadLength, 64, 32},
		},
	}
)

type ValidationError struct {
	Layout string
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("schema: layout=%s: %s", e.Layout, e.Reason)
	}
	return fmt.Sprintf("schema: layout=%s field=%s: %s", e.Layout, e.Field, e.Reason)
}

// Lookup returns the named field of the layout.
func (l Layout) Lookup(name string) (Field, bool) {
	for _, f := range l.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Validate checks that fields are named once, fit in the header and do not
// overlap.
func (l Layout) Validate() error {
	seen := make(map[string]struct{}, len(l.Fields))
	sorted := make([]Field, len(l.Fields))
	copy(sorted, l.Fields)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Offset < sorted[j].Offset })

	prevEnd := 0
	for _, f := range sorted {
		if _, dup := seen[f.Name]; dup {
			return ValidationError{Layout: l.Name, Field: f.Name, Reason: "duplicate field"}
		}
		seen[f.Name] = struct{}{}
		if f.Length < 1 || f.Offset < 0 || f.End() > HeaderBits {
			return ValidationError{Layout: l.Name, Field: f.Name, Reason: "outside header"}
		}
		if f.Offset < prevEnd {
			return ValidationError{Layout: l.Name, Field: f.Name, Reason: "overlaps previous field"}
		}
		prevEnd = f.End()
	}
	return nil
}

// CheckValues enforces that every value names a known field and fits its
// width. Missing fields are allowed; encoders zero-fill them.
func (l Layout) CheckValues(values map[string]uint64) error {
	for name, v := range values {
		f, ok := l.Lookup(name)
		if !ok {
			log.Debug().Str("layout", l.Name).Str("field", name).Msg("schema: unknown field")
			return ValidationError{Layout: l.Name, Field: name, Reason: "unknown field"}
		}
		if v > f.Max() {
			log.Debug().
				Str("layout", l.Name).
				Str("field", name).
				Uint64("value", v).
				Uint64("max", f.Max()).
				Msg("schema: value overflow")
			return ValidationError{Layout: l.Name, Field: name, Reason: fmt.Sprintf("value %d exceeds %d bits", v, f.Length)}
		}
	}
	return nil
}
