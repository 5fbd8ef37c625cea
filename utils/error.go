package utils

import "errors"

// ErrorRecordNotFound is the shared not-found sentinel; domain errors wrap
// it so callers can match either the specific or the generic condition.
var ErrorRecordNotFound = errors.New("record not found")
