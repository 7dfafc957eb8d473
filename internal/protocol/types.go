package protocol

import (
	"fmt"
	"strings"
)

// SupportedVersion is the only ITP version the server answers.
const SupportedVersion uint8 = 9

const HeaderSize = 12

// ImageType is the 4-bit image type code carried in request headers.
type ImageType uint8

const (
	ImageBMP  ImageType = 1
	ImageJPEG ImageType = 2
	ImageGIF  ImageType = 3
	ImagePNG  ImageType = 4
	ImageTIFF ImageType = 5
	ImageRAW  ImageType = 15
)

var imageTypeNames = map[ImageType]string{
	ImageBMP:  "BMP",
	ImageJPEG: "JPEG",
	ImageGIF:  "GIF",
	ImagePNG:  "PNG",
	ImageTIFF: "TIFF",
	ImageRAW:  "RAW",
}

var imageTypeByExt = map[string]ImageType{
	"BMP":  ImageBMP,
	"JPEG": ImageJPEG,
	"GIF":  ImageGIF,
	"PNG":  ImagePNG,
	"TIFF": ImageTIFF,
	"RAW":  ImageRAW,
}

// ParseImageType maps a file extension (with or without a leading dot,
// any case) to its type code.
func ParseImageType(ext string) (ImageType, error) {
	key := strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	t, ok := imageTypeByExt[key]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownExtension, ext)
	}
	return t, nil
}

// Valid reports whether t is one of the defined codes.
func (t ImageType) Valid() bool {
	_, ok := imageTypeNames[t]
	return ok
}

// Extension returns the canonical upper-case extension used for store
// lookups, or "" for undefined codes.
func (t ImageType) Extension() string {
	return imageTypeNames[t]
}

func (t ImageType) String() string {
	if name, ok := imageTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("ImageType(%d)", uint8(t))
}

// RequestType is the 8-bit request type. Clients only send Query.
type RequestType uint8

const RequestQuery RequestType = 0

// ResponseType is the 8-bit response type.
type ResponseType uint8

const (
	ResponseQuery    ResponseType = 0
	ResponseFound    ResponseType = 1
	ResponseNotFound ResponseType = 2
	ResponseBusy     ResponseType = 3
)

var responseTypeNames = map[ResponseType]string{
	ResponseQuery:    "Query",
	ResponseFound:    "Found",
	ResponseNotFound: "Not found",
	ResponseBusy:     "Busy",
}

func (t ResponseType) String() string {
	if name, ok := responseTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("ResponseType(%d)", uint8(t))
}

// String shares the response names since both directions use one code space.
func (t RequestType) String() string {
	return ResponseType(t).String()
}

// Request is a decoded ITP request packet.
type Request struct {
	Version     uint8
	RequestType RequestType
	Timestamp   uint32
	ImageType   ImageType
	ImageName   string
}

// FileName returns the store key for the request, e.g. "cat.PNG".
func (r Request) FileName() string {
	return r.ImageName + "." + r.ImageType.Extension()
}

// Response is a decoded ITP response packet.
type Response struct {
	Version        uint8
	ResponseType   ResponseType
	SequenceNumber uint16
	Timestamp      uint32
	PayloadLength  uint32
	Payload        []byte
}
