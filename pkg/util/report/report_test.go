package report_test

import (
	"context"
	"testing"

	"github.com/agubarev/handbook/pkg/fault"
	"github.com/agubarev/handbook/pkg/util/report"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestReportFromContext(t *testing.T) {
	a := assert.New(t)

	_, err := report.FromContext(context.Background())
	a.Equal(report.ErrNoReport, err)

	rep, ctx := report.NewWithContext(context.Background(), nil)
	found, err := report.FromContext(ctx)
	a.NoError(err)
	a.Equal(rep, found)
}

func TestReportWithTypedError(t *testing.T) {
	a := assert.New(t)

	rep := report.New(nil)
	a.False(rep.HasError())

	rep.WithError("Update_Content", nil)
	a.False(rep.HasError())

	lockErr := fault.Lock("Content", "Update", "Cannot update content while the manual is locked from editing")
	rep.Wrap("Update_Content", lockErr, "update failed")
	a.True(rep.HasError())
	a.Equal("update_content", rep.Err.Token)
	a.Equal("lock", rep.Err.Kind)
	a.True(fault.Is(rep.Cause(), fault.KLock))
	a.Equal(lockErr, errors.Cause(rep.Cause()))

	rep.Info("entry")
	a.Len(rep.Log, 1)
}
