package sqlite

import "errors"

var errStoreClosed = errors.New("sqlite store closed")
