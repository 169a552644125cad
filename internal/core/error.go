package core

import "github.com/pkg/errors"

// errors
var (
	ErrNilCore       = errors.New("handbook core is nil")
	ErrNilTransactor = errors.New("transactor is nil")
	ErrNilStore      = errors.New("one of the stores is nil")
	ErrNotTestMode   = errors.New("not running in test mode")
)
