package chainmodel

import "errors"

// ErrInputIndexOutOfRange is returned by SignInput for an invalid index.
var ErrInputIndexOutOfRange = errors.New("chainmodel: input index out of range")
