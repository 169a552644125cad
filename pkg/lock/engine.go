package lock

import (
	"context"
	"fmt"
	"sync"

	"github.com/agubarev/handbook/pkg/fault"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// errors
var (
	ErrUnregisteredKind = errors.New("kind has neither a parent nor a root resolver")
	ErrTooDeep          = errors.New("lock root is too deep or the chain is circular")
	ErrDuplicateKind    = errors.New("kind is already registered")
)

// maximum number of hops from an entity to its lock root
const maxDepth = 8

// ParentFunc resolves the immediate parent of an entity
type ParentFunc func(ctx context.Context, id uint32) (Ref, error)

// RootFunc reads the lock flags of a root entity
// NOTE: must read under a row lock when called within a transaction
type RootFunc func(ctx context.Context, id uint32) (Flags, error)

// Observer is notified of every lock decision
type Observer interface {
	ObserveLock(kind, op string, allowed bool)
}

// Engine resolves lock roots one hop at a time and decides
// whether a mutation is permitted by the root's flags
type Engine struct {
	parents  map[Kind]ParentFunc
	roots    map[Kind]RootFunc
	observer Observer
	logger   *zap.Logger
	sync.RWMutex
}

// NewEngine initializes an empty engine, resolvers are registered
// by the packages owning the respective entities
func NewEngine() *Engine {
	return &Engine{
		parents: make(map[Kind]ParentFunc),
		roots:   make(map[Kind]RootFunc),
	}
}

// SetLogger assigns a logger for this engine
func (e *Engine) SetLogger(logger *zap.Logger) error {
	if logger != nil {
		logger = logger.Named("[lock]")
	}

	e.logger = logger

	return nil
}

// Logger returns primary logger if is set, otherwise initializing and returning
func (e *Engine) Logger() *zap.Logger {
	if e.logger == nil {
		l, err := zap.NewDevelopment()
		if err != nil {
			panic(fmt.Errorf("failed to initialize lock engine logger: %s", err))
		}

		e.logger = l
	}

	return e.logger
}

// SetObserver assigns a decision observer
func (e *Engine) SetObserver(o Observer) {
	e.Lock()
	e.observer = o
	e.Unlock()
}

// RegisterParent registers a one-hop parent resolver for a child kind
func (e *Engine) RegisterParent(kind Kind, fn ParentFunc) error {
	e.Lock()
	defer e.Unlock()

	if _, ok := e.parents[kind]; ok {
		return errors.Wrapf(ErrDuplicateKind, "parent of %s", kind)
	}

	e.parents[kind] = fn

	return nil
}

// RegisterRoot registers a flag reader for a root kind
func (e *Engine) RegisterRoot(kind Kind, fn RootFunc) error {
	e.Lock()
	defer e.Unlock()

	if _, ok := e.roots[kind]; ok {
		return errors.Wrapf(ErrDuplicateKind, "root %s", kind)
	}

	e.roots[kind] = fn

	return nil
}

// Resolve walks from an entity to its lock root
func (e *Engine) Resolve(ctx context.Context, ref Ref) (Root, error) {
	current := ref

	for depth := 0; depth < maxDepth; depth++ {
		e.RLock()
		rootFn, isRoot := e.roots[current.Kind]
		parentFn, hasParent := e.parents[current.Kind]
		e.RUnlock()

		if isRoot {
			flags, err := rootFn(ctx, current.ID)
			if err != nil {
				return Root{}, err
			}

			return Root{Ref: current, Flags: flags}, nil
		}

		if !hasParent {
			return Root{}, errors.Wrapf(ErrUnregisteredKind, "%s", current.Kind)
		}

		next, err := parentFn(ctx, current.ID)
		if err != nil {
			return Root{}, err
		}

		current = next
	}

	return Root{}, errors.Wrapf(ErrTooDeep, "starting from %s %d", ref.Kind, ref.ID)
}

// CheckInsert decides whether a new entity of a given kind may be
// created under a parent; creating a child is an edit of the parent's tree
// NOTE: a zero parent means a root-level entity, which is never lock-blocked
func (e *Engine) CheckInsert(ctx context.Context, kind Kind, parent Ref) error {
	if parent.Kind == KUnknown {
		return e.decide(kind, OpInsert, true)
	}

	root, err := e.Resolve(ctx, parent)
	if err != nil {
		return err
	}

	return e.decide(kind, OpInsert, !root.PreventEdit)
}

// CheckUpdate decides whether an entity may be updated; next holds the
// flags the update leaves the entity with, it only matters for roots
// NOTE: releasing the edit lock of a root is always permitted
func (e *Engine) CheckUpdate(ctx context.Context, ref Ref, next Flags) error {
	root, err := e.Resolve(ctx, ref)
	if err != nil {
		return err
	}

	if !root.PreventEdit {
		return e.decide(ref.Kind, OpUpdate, true)
	}

	unlocking := root.Ref == ref && !next.PreventEdit

	return e.decide(ref.Kind, OpUpdate, unlocking)
}

// CheckDelete decides whether an entity may be deleted: a root is governed
// by its own delete lock, a child by its root's edit lock
func (e *Engine) CheckDelete(ctx context.Context, ref Ref) error {
	root, err := e.Resolve(ctx, ref)
	if err != nil {
		return err
	}

	if root.Ref == ref {
		return e.decide(ref.Kind, OpDelete, !root.PreventDelete)
	}

	return e.decide(ref.Kind, OpDelete, !root.PreventEdit)
}

// CheckOwnDelete decides whether a root with a composite key may be
// deleted, given its flags as read by the caller under a row lock
func (e *Engine) CheckOwnDelete(kind Kind, flags Flags) error {
	return e.decide(kind, OpDelete, !flags.PreventDelete)
}

// RejectUpdate fails unconditionally, composite-key records must be
// deleted and recreated instead
func (e *Engine) RejectUpdate(kind Kind) error {
	e.observe(kind, OpUpdate, false)
	return fault.Invariant(kind.String(), OpUpdate.String(), "Cannot update "+table(kind))
}

// RejectDelete fails unconditionally, used for append-only records
func (e *Engine) RejectDelete(kind Kind) error {
	e.observe(kind, OpDelete, false)
	return fault.Invariant(kind.String(), OpDelete.String(), "Cannot delete "+table(kind))
}

func (e *Engine) decide(kind Kind, op Op, allowed bool) error {
	e.observe(kind, op, allowed)

	if allowed {
		return nil
	}

	err := fault.Lock(kind.String(), op.String(), message(kind, op))
	e.Logger().Debug("lock denied", zap.String("kind", kind.String()), zap.String("op", op.String()))

	return err
}

func (e *Engine) observe(kind Kind, op Op, allowed bool) {
	e.RLock()
	o := e.observer
	e.RUnlock()

	if o != nil {
		o.ObserveLock(kind.String(), op.String(), allowed)
	}
}

func table(kind Kind) string {
	if t, ok := kindTables[kind]; ok {
		return t
	}

	return kind.String()
}
