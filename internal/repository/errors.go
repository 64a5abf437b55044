package repository

import "errors"

// ErrNoRowsAffected is returned by guarded updates whose WHERE clause matched
// nothing, usually because the row changed state or was deleted.
var ErrNoRowsAffected = errors.New("no rows affected")

// ErrEntryProcessing is returned when the scheduling API tries to change a queue
// entry the dispatcher has claimed.
var ErrEntryProcessing = errors.New("post is being published")
