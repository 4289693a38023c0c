package bitio

import "errors"

var (
	errInvalidUTF8Lead         = errors.New("bitio: invalid UTF-8 coded integer lead byte")
	errInvalidUTF8Continuation = errors.New("bitio: invalid UTF-8 coded integer continuation byte")
	errNonZeroPadding          = errors.New("bitio: non-zero padding bits")
	errNotSeekable             = errors.New("bitio: underlying reader does not support Seek")
)
