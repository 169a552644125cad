package lock_test

import (
	"context"
	"testing"

	"github.com/agubarev/handbook/pkg/fault"
	"github.com/agubarev/handbook/pkg/lock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type decision struct {
	kind, op string
	allowed  bool
}

type recorder struct {
	decisions []decision
}

func (r *recorder) ObserveLock(kind, op string, allowed bool) {
	r.decisions = append(r.decisions, decision{kind, op, allowed})
}

// manual tree: manual(1) -> section(10) -> policy(100) -> content(1000)
type tree struct {
	manuals  map[uint32]*lock.Flags
	sections map[uint32]uint32
	policies map[uint32]uint32
	contents map[uint32]uint32
}

func newEngine(t *testing.T) (*lock.Engine, *tree, *recorder) {
	tr := &tree{
		manuals:  map[uint32]*lock.Flags{1: {}},
		sections: map[uint32]uint32{10: 1},
		policies: map[uint32]uint32{100: 10},
		contents: map[uint32]uint32{1000: 100},
	}

	parent := func(kind lock.Kind, m map[uint32]uint32) lock.ParentFunc {
		return func(ctx context.Context, id uint32) (lock.Ref, error) {
			pid, ok := m[id]
			if !ok {
				return lock.Ref{}, fault.NotFound("parent")
			}

			return lock.Ref{Kind: kind, ID: pid}, nil
		}
	}

	e := lock.NewEngine()
	require.NoError(t, e.SetLogger(zap.NewNop()))

	rec := &recorder{}
	e.SetObserver(rec)

	require.NoError(t, e.RegisterRoot(lock.KManual, func(ctx context.Context, id uint32) (lock.Flags, error) {
		f, ok := tr.manuals[id]
		if !ok {
			return lock.Flags{}, fault.NotFound("manual")
		}

		return *f, nil
	}))

	require.NoError(t, e.RegisterParent(lock.KManualSection, parent(lock.KManual, tr.sections)))
	require.NoError(t, e.RegisterParent(lock.KPolicy, parent(lock.KManualSection, tr.policies)))
	require.NoError(t, e.RegisterParent(lock.KContent, parent(lock.KPolicy, tr.contents)))

	return e, tr, rec
}

func TestResolve(t *testing.T) {
	a := assert.New(t)
	ctx := context.Background()

	e, tr, _ := newEngine(t)
	tr.manuals[1].PreventEdit = true

	root, err := e.Resolve(ctx, lock.Ref{Kind: lock.KContent, ID: 1000})
	a.NoError(err)
	a.Equal(lock.Ref{Kind: lock.KManual, ID: 1}, root.Ref)
	a.True(root.PreventEdit)
	a.False(root.PreventDelete)

	// a root resolves to itself
	root, err = e.Resolve(ctx, lock.Ref{Kind: lock.KManual, ID: 1})
	a.NoError(err)
	a.Equal(lock.Ref{Kind: lock.KManual, ID: 1}, root.Ref)

	// unknown kind
	_, err = e.Resolve(ctx, lock.Ref{Kind: lock.KQuizSection, ID: 1})
	a.Error(err)
	a.Equal(lock.ErrUnregisteredKind, errors.Cause(err))

	// missing parent surfaces as is
	_, err = e.Resolve(ctx, lock.Ref{Kind: lock.KContent, ID: 9999})
	a.True(fault.Is(err, fault.KNotFound))

	// duplicate registration
	a.Error(e.RegisterRoot(lock.KManual, nil))
}

func TestResolveCycle(t *testing.T) {
	a := assert.New(t)

	e := lock.NewEngine()
	a.NoError(e.RegisterParent(lock.KQuizSection, func(ctx context.Context, id uint32) (lock.Ref, error) {
		return lock.Ref{Kind: lock.KQuestion, ID: id}, nil
	}))
	a.NoError(e.RegisterParent(lock.KQuestion, func(ctx context.Context, id uint32) (lock.Ref, error) {
		return lock.Ref{Kind: lock.KQuizSection, ID: id}, nil
	}))

	_, err := e.Resolve(context.Background(), lock.Ref{Kind: lock.KQuestion, ID: 1})
	a.Error(err)
	a.Equal(lock.ErrTooDeep, errors.Cause(err))
}

func TestEditLockCascades(t *testing.T) {
	a := assert.New(t)
	ctx := context.Background()

	e, tr, rec := newEngine(t)

	content := lock.Ref{Kind: lock.KContent, ID: 1000}
	policy := lock.Ref{Kind: lock.KPolicy, ID: 100}

	// unlocked manual allows everything
	a.NoError(e.CheckInsert(ctx, lock.KContent, policy))
	a.NoError(e.CheckUpdate(ctx, content, lock.Flags{}))
	a.NoError(e.CheckDelete(ctx, content))

	tr.manuals[1].PreventEdit = true

	err := e.CheckInsert(ctx, lock.KContent, policy)
	a.True(fault.Is(err, fault.KLock))
	a.EqualError(err, "ContentInsertError: Cannot insert content while the manual is locked")

	err = e.CheckUpdate(ctx, content, lock.Flags{})
	a.True(fault.Is(err, fault.KLock))
	a.EqualError(err, "ContentUpdateError: Cannot update content while the manual is locked from editing")

	err = e.CheckDelete(ctx, content)
	a.True(fault.Is(err, fault.KLock))
	a.EqualError(err, "ContentDeleteError: Cannot delete content while the manual is locked from editing")

	err = e.CheckDelete(ctx, lock.Ref{Kind: lock.KManualSection, ID: 10})
	a.EqualError(err, "ManualSectionDeleteError: Cannot delete a section while the manual is locked from editing")

	// a delete lock alone does not affect children
	tr.manuals[1].PreventEdit = false
	tr.manuals[1].PreventDelete = true
	a.NoError(e.CheckDelete(ctx, content))

	// the latest decisions: a denied section delete, then an allowed content delete
	n := len(rec.decisions)
	a.Equal(decision{"Content", "Delete", true}, rec.decisions[n-1])
	a.Equal(decision{"ManualSection", "Delete", false}, rec.decisions[n-2])
}

func TestRootLocks(t *testing.T) {
	a := assert.New(t)
	ctx := context.Background()

	e, tr, _ := newEngine(t)
	manual := lock.Ref{Kind: lock.KManual, ID: 1}

	// root-level inserts are never blocked
	a.NoError(e.CheckInsert(ctx, lock.KManual, lock.Ref{}))

	tr.manuals[1].PreventDelete = true

	err := e.CheckDelete(ctx, manual)
	a.True(fault.Is(err, fault.KLock))
	a.EqualError(err, "ManualDeleteError: Cannot delete manual while delete lock is set")

	// the delete lock does not block editing
	a.NoError(e.CheckUpdate(ctx, manual, lock.Flags{PreventDelete: true}))

	tr.manuals[1].PreventEdit = true

	// any update that keeps the edit lock is denied
	err = e.CheckUpdate(ctx, manual, lock.Flags{PreventEdit: true, PreventDelete: true})
	a.True(fault.Is(err, fault.KLock))
	a.EqualError(err, "ManualUpdateError: Manual is locked from editing.")

	// releasing the edit lock is always permitted
	a.NoError(e.CheckUpdate(ctx, manual, lock.Flags{PreventEdit: false, PreventDelete: true}))

	// but only for the root itself, children cannot release it
	err = e.CheckUpdate(ctx, lock.Ref{Kind: lock.KPolicy, ID: 100}, lock.Flags{})
	a.True(fault.Is(err, fault.KLock))
}

func TestRejectUpdate(t *testing.T) {
	a := assert.New(t)

	e := lock.NewEngine()

	cases := map[lock.Kind]string{
		lock.KUserRole:    "UserRoleUpdateError: Cannot update user_role",
		lock.KContentRead: "ContentReadUpdateError: Cannot update content_read",
		lock.KQuizResult:  "QuizResultUpdateError: Cannot update quiz_result",
		lock.KEvent:       "EventUpdateError: Cannot update events",
	}

	for kind, msg := range cases {
		err := e.RejectUpdate(kind)
		a.True(fault.Is(err, fault.KInvariant), kind.String())
		a.EqualError(err, msg)
	}

	a.EqualError(e.RejectDelete(lock.KEvent), "EventDeleteError: Cannot delete events")
}

func TestCheckOwnDelete(t *testing.T) {
	a := assert.New(t)

	e := lock.NewEngine()

	a.NoError(e.CheckOwnDelete(lock.KMembership, lock.Flags{}))

	err := e.CheckOwnDelete(lock.KMembership, lock.Flags{PreventDelete: true})
	a.True(fault.Is(err, fault.KLock))
	a.EqualError(err, "MembershipDeleteError: Cannot delete membership while delete lock is set")
}
