package storage

import "errors"

// ErrNotText is returned by ReadText when a file is not valid UTF-8.
var ErrNotText = errors.New("file is not valid UTF-8 text")
