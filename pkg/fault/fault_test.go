package fault_test

import (
	"testing"

	"github.com/agubarev/handbook/pkg/fault"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorRendering(t *testing.T) {
	a := assert.New(t)

	err := fault.Lock("Manual", "Update", "Manual is locked from editing.")
	a.EqualError(err, "ManualUpdateError: Manual is locked from editing.")
	a.Equal(fault.KLock, err.Kind)

	err = fault.NotFound("Manual")
	a.EqualError(err, "manual not found")

	err = fault.Storage(errors.New("deadlock"), "failed to commit")
	a.EqualError(err, "failed to commit: deadlock")
	a.Nil(fault.Storage(nil, "nothing"))
}

func TestKindOfWrapped(t *testing.T) {
	a := assert.New(t)

	base := fault.Invariant("QuizAttempt", "Insert", "attempt limit of 1 reached")
	wrapped := errors.Wrap(base, "start attempt")

	a.Equal(fault.KInvariant, fault.KindOf(wrapped))
	a.True(fault.Is(wrapped, fault.KInvariant))
	a.False(fault.Is(wrapped, fault.KLock))
	a.False(fault.Is(nil, fault.KInvariant))
	a.Equal(fault.KUnknown, fault.KindOf(errors.New("plain")))

	e, ok := fault.As(wrapped)
	a.True(ok)
	a.Equal("QuizAttempt", e.Entity)
	a.Equal("Insert", e.Op)
}
