package core

import (
	"github.com/agubarev/handbook/pkg/database"
	"github.com/agubarev/handbook/pkg/util"
)

// NewForTesting returns a fully initialized core over memory stores
func NewForTesting() (*Core, error) {
	if !util.IsTestMode() {
		return nil, ErrNotTestMode
	}

	return New(database.NewMemoryTransactor(), NewMemoryStores(), util.LoggerForTesting())
}
