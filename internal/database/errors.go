package database

import "errors"

// ErrJournalNotFound is returned by Open when the journal does not exist
// and CreateIfNotExists is false.
var ErrJournalNotFound = errors.New("journal not found")
