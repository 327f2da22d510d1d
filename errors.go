package hooshi

import "errors"

// ErrClosed indicates the database was used after Close.
var ErrClosed = errors.New("database closed")
