package usecase

import "fmt"

// ErrPersistence indicates an infrastructure/store failure inside a use case.
// Store errors never escape as panics or raw driver errors; callers match on
// this sentinel and translate it to a "failed, retry if you like" outcome.
var ErrPersistence = fmt.Errorf("chat use case persistence error")
