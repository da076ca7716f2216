package vecmath

import (
	"errors"
	"fmt"
)

// ErrMalformedEncoding indicates a buffer that does not match a fixed binary layout.
var ErrMalformedEncoding = errors.New("vecmath: malformed encoding")

// EncodingError carries the expected and actual buffer length of a failed decode.
type EncodingError struct {
	Layout string
	Want   int
	Got    int
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("%s: %s needs %d bytes, got %d", ErrMalformedEncoding, e.Layout, e.Want, e.Got)
}

func (e *EncodingError) Unwrap() error {
	return ErrMalformedEncoding
}
