package util_test

import (
	"testing"

	"github.com/agubarev/handbook/pkg/util"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type sample struct {
	Title       string `diff:"title"`
	PreventEdit bool   `diff:"prevent_edit"`
	UpdatedBy   uint32 `diff:"updated_by"`
}

func TestProtectedChangelog(t *testing.T) {
	a := assert.New(t)

	allowed := map[string]bool{"title": true, "prevent_edit": true}

	before := sample{Title: "a", PreventEdit: true, UpdatedBy: 1}
	after := sample{Title: "b", PreventEdit: false, UpdatedBy: 1}

	changelog, err := util.ProtectedChangelog(allowed, before, after)
	a.NoError(err)
	a.Len(changelog, 2)
	a.True(util.Changed(changelog, "prevent_edit"))
	a.True(util.Changed(changelog, "title"))
	a.False(util.Changed(changelog, "updated_by"))

	after.UpdatedBy = 2
	_, err = util.ProtectedChangelog(allowed, before, after)
	a.Error(err)
}

func TestNewULID(t *testing.T) {
	a := assert.New(t)

	uid1 := util.NewULID()
	uid2 := util.NewULID()
	uid3 := util.NewULID()

	a.NotEqual(uid1, uid2)
	a.NotEqual(uid2, uid3)
	a.True(uid1.Compare(uid2) < 0)
	a.True(uid2.Compare(uid3) < 0)
}

func TestChecksum(t *testing.T) {
	a := assert.New(t)

	a.Equal(util.Checksum([]byte("hello")), util.ChecksumString("hello"))
	a.NotEqual(util.ChecksumString("hello"), util.ChecksumString("hello!"))
	a.Equal(`"0"`, util.ETag(0))
}

func TestDumpChangelog(t *testing.T) {
	a := assert.New(t)

	changelog, err := util.ProtectedChangelog(
		map[string]bool{"title": true},
		sample{Title: "before"},
		sample{Title: "after"},
	)
	a.NoError(err)

	// rendered only when encoded
	f := util.DumpChangelog(changelog)
	a.Equal(zapcore.StringerType, f.Type)
	a.Empty(f.String)

	core, logs := observer.New(zapcore.InfoLevel)
	zap.New(core).Debug("updated", f)
	a.Zero(logs.Len())

	core, logs = observer.New(zapcore.DebugLevel)
	zap.New(core).Debug("updated", f)
	a.Equal(1, logs.Len())

	dump, ok := logs.All()[0].ContextMap()["changelog"].(string)
	a.True(ok)
	a.Contains(dump, "after")
}
