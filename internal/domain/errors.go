package domain

import "errors"

var ErrIllegalTransition = errors.New("illegal session transition")
var ErrByteBoundExceeded = errors.New("byte bound exceeded")
