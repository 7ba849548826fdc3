package repositories

import "errors"

// Sentinel errors shared across repositories. Handlers map these to HTTP
// statuses; the sync layer uses them to decide between rollback and
// best-effort logging.
var (
	ErrNotFound      = errors.New("record not found")
	ErrAlreadyExists = errors.New("record already exists")
)
