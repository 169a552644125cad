package endpoints

import (
	"context"
	"io"
	"io/ioutil"
	"net/http"
	"strconv"

	"github.com/agubarev/handbook/internal/core"
	"github.com/agubarev/handbook/pkg/auth"
	"github.com/agubarev/handbook/pkg/fault"
	"github.com/agubarev/handbook/pkg/role"
	"github.com/agubarev/handbook/pkg/util/report"
	"github.com/go-chi/chi"
)

// maximum accepted request body
const maxBodySize = 1 << 20

// StatusOf maps an error to the status code it is reported with
func StatusOf(err error) int {
	switch fault.KindOf(err) {
	case fault.KLock:
		return http.StatusMethodNotAllowed
	case fault.KAuthorization:
		return http.StatusForbidden
	case fault.KInvariant, fault.KNotFound:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Fail records an error in the report of the request being served
func Fail(ctx context.Context, err error) (result interface{}, aux interface{}, code int, rep *report.Report) {
	rep, rerr := report.FromContext(ctx)
	if rerr != nil {
		rep = report.New(nil)
	}

	name, _ := ctx.Value(ckName).(string)
	rep.WithError(name, err)

	return nil, nil, StatusOf(err), rep
}

// Actor returns the identity the request is made on behalf of
func Actor(ctx context.Context) (role.Actor, error) {
	actor, err := auth.ActorFromContext(ctx)
	if err != nil {
		return actor, fault.New(fault.KAuthorization, "Request", "Authorization", err.Error())
	}

	return actor, nil
}

// Param returns a numeric URL parameter
func Param(r *http.Request, name string) (uint32, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, name), 10, 32)
	if err != nil || id == 0 {
		return 0, fault.Newf(fault.KInvariant, "Request", "Parse", "invalid %s", name)
	}

	return uint32(id), nil
}

// Body reads the request body
func Body(r *http.Request) ([]byte, error) {
	body, err := ioutil.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return nil, fault.Invariant("Request", "Parse", "unreadable payload")
	}

	return body, nil
}

// Decode unmarshals the request body into v
func Decode(r *http.Request, v interface{}) error {
	body, err := Body(r)
	if err != nil {
		return err
	}

	return Unmarshal(body, v)
}

// Unmarshal decodes a payload into v
func Unmarshal(body []byte, v interface{}) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fault.Invariant("Request", "Parse", "malformed payload")
	}

	return nil
}

//---------------------------------------------------------------------------
// generic handlers
//---------------------------------------------------------------------------

// CreateFunc creates an entity under a given parent
type CreateFunc[T any] func(ctx context.Context, c *core.Core, actor role.Actor, parentID uint32, v T) (T, error)

// UpdateFunc applies a patch to an entity
type UpdateFunc[T any] func(ctx context.Context, c *core.Core, actor role.Actor, id uint32, patch func(ctx context.Context, v T) (T, error)) (T, error)

// ActionFunc performs an operation upon an entity
type ActionFunc[T any] func(ctx context.Context, c *core.Core, actor role.Actor, id uint32) (T, error)

// Create returns a handler decoding the body and creating an entity
// under the parent identified by a given URL parameter
func Create[T any](param string, fn CreateFunc[T]) Handler {
	return func(ctx context.Context, c *core.Core, w http.ResponseWriter, r *http.Request) (interface{}, interface{}, int, *report.Report) {
		actor, err := Actor(ctx)
		if err != nil {
			return Fail(ctx, err)
		}

		var parentID uint32
		if param != "" {
			if parentID, err = Param(r, param); err != nil {
				return Fail(ctx, err)
			}
		}

		var v T
		if err = Decode(r, &v); err != nil {
			return Fail(ctx, err)
		}

		created, err := fn(ctx, c, actor, parentID, v)
		if err != nil {
			return Fail(ctx, err)
		}

		return created, nil, http.StatusCreated, nil
	}
}

// Update returns a handler merging the body onto the current state
// of an entity; fields absent from the body are left as they are
func Update[T any](fn UpdateFunc[T]) Handler {
	return func(ctx context.Context, c *core.Core, w http.ResponseWriter, r *http.Request) (interface{}, interface{}, int, *report.Report) {
		actor, err := Actor(ctx)
		if err != nil {
			return Fail(ctx, err)
		}

		id, err := Param(r, "id")
		if err != nil {
			return Fail(ctx, err)
		}

		body, err := Body(r)
		if err != nil {
			return Fail(ctx, err)
		}

		updated, err := fn(ctx, c, actor, id, func(ctx context.Context, v T) (T, error) {
			err := Unmarshal(body, &v)
			return v, err
		})

		if err != nil {
			return Fail(ctx, err)
		}

		return updated, nil, http.StatusOK, nil
	}
}

// Get returns a handler reading an entity identified by the "id" parameter
func Get[T any](fn ActionFunc[T]) Handler {
	return Action[T](http.StatusOK, fn)
}

// Action returns a handler performing an operation upon the entity
// identified by the "id" parameter
func Action[T any](status int, fn ActionFunc[T]) Handler {
	return ActionOn[T]("id", status, fn)
}

// ActionOn is like Action but the entity is identified by a given parameter
func ActionOn[T any](param string, status int, fn ActionFunc[T]) Handler {
	return func(ctx context.Context, c *core.Core, w http.ResponseWriter, r *http.Request) (interface{}, interface{}, int, *report.Report) {
		actor, err := Actor(ctx)
		if err != nil {
			return Fail(ctx, err)
		}

		id, err := Param(r, param)
		if err != nil {
			return Fail(ctx, err)
		}

		result, err := fn(ctx, c, actor, id)
		if err != nil {
			return Fail(ctx, err)
		}

		return result, nil, status, nil
	}
}

// Delete returns a handler deleting the entity identified by the "id" parameter
func Delete(fn func(ctx context.Context, c *core.Core, actor role.Actor, id uint32) error) Handler {
	return DeleteOn("id", fn)
}

// DeleteOn is like Delete but the entity is identified by a given parameter
func DeleteOn(param string, fn func(ctx context.Context, c *core.Core, actor role.Actor, id uint32) error) Handler {
	return ActionOn[interface{}](param, http.StatusOK, func(ctx context.Context, c *core.Core, actor role.Actor, id uint32) (interface{}, error) {
		if err := fn(ctx, c, actor, id); err != nil {
			return nil, err
		}

		return map[string]uint32{"deleted": id}, nil
	})
}
