package state

import "errors"

var ErrNotFound = errors.New("state: not found")

type Store interface {
	Get(id string) (*Record, error)
	Put(record *Record) error
}

// Record is the last known state of an entity, kept across restarts.
type Record struct {
	ID    string
	State string
}
