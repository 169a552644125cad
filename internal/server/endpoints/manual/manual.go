package manual

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/agubarev/handbook/internal/core"
	"github.com/agubarev/handbook/internal/server/endpoints"
	"github.com/agubarev/handbook/pkg/manual"
	"github.com/agubarev/handbook/pkg/role"
	"github.com/agubarev/handbook/pkg/util/report"
)

// NewManual is the payload of a manual creation
type NewManual struct {
	Manual      manual.Manual       `json:"manual"`
	Assignments []manual.Assignment `json:"assignments"`
}

// List returns the manuals visible to the actor
func List(ctx context.Context, c *core.Core, w http.ResponseWriter, r *http.Request) (result interface{}, aux interface{}, code int, rep *report.Report) {
	actor, err := endpoints.Actor(ctx)
	if err != nil {
		return endpoints.Fail(ctx, err)
	}

	q, err := ParseQuery(r)
	if err != nil {
		return endpoints.Fail(ctx, err)
	}

	ms, err := c.ManualManager().ListVisibleManuals(ctx, actor, q)
	if err != nil {
		return endpoints.Fail(ctx, err)
	}

	return ms, nil, http.StatusOK, nil
}

// ParseQuery reads the listing options of the query string, the
// contract itself is checked by the manager
func ParseQuery(r *http.Request) (q manual.Query, err error) {
	values := r.URL.Query()

	q.FilterField = values.Get("filter_field")
	q.Search = values.Get("search")
	q.SortField = values.Get("sort_field")
	q.SortOrder = values.Get("sort_order")

	if ids := strings.TrimSpace(values.Get("filter_ids")); ids != "" {
		for _, s := range strings.Split(ids, ",") {
			id, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
			if err != nil {
				return q, manual.ErrInvalidFilter
			}

			q.FilterIDs = append(q.FilterIDs, uint32(id))
		}
	}

	for key, dest := range map[string]*uint32{"limit": &q.Limit, "page": &q.Page} {
		if s := values.Get(key); s != "" {
			n, err := strconv.ParseUint(s, 10, 32)
			if err != nil {
				return q, manual.ErrInvalidPagination
			}

			*dest = uint32(n)
		}
	}

	return q, nil
}

// Post creates a manual along with its assignments
func Post(ctx context.Context, c *core.Core, w http.ResponseWriter, r *http.Request) (result interface{}, aux interface{}, code int, rep *report.Report) {
	actor, err := endpoints.Actor(ctx)
	if err != nil {
		return endpoints.Fail(ctx, err)
	}

	var payload NewManual
	if err = endpoints.Decode(r, &payload); err != nil {
		return endpoints.Fail(ctx, err)
	}

	m, as, err := c.ManualManager().CreateManual(ctx, actor, payload.Manual, payload.Assignments)
	if err != nil {
		return endpoints.Fail(ctx, err)
	}

	return m, as, http.StatusCreated, nil
}

var (
	Get = endpoints.Get[manual.Manual](func(ctx context.Context, c *core.Core, actor role.Actor, id uint32) (manual.Manual, error) {
		return c.ManualManager().ManualByID(ctx, actor, id)
	})

	Put = endpoints.Update[manual.Manual](func(ctx context.Context, c *core.Core, actor role.Actor, id uint32, patch func(context.Context, manual.Manual) (manual.Manual, error)) (manual.Manual, error) {
		return c.ManualManager().UpdateManual(ctx, actor, id, patch)
	})

	Delete = endpoints.Delete(func(ctx context.Context, c *core.Core, actor role.Actor, id uint32) error {
		return c.ManualManager().DeleteManual(ctx, actor, id)
	})
)

// Read leaves a read receipt of the actor
var Read = endpoints.Action[manual.Read](http.StatusCreated, func(ctx context.Context, c *core.Core, actor role.Actor, id uint32) (manual.Read, error) {
	return c.ManualManager().MarkRead(ctx, actor, id)
})

// Unread removes the read receipt of the actor
var Unread = endpoints.Delete(func(ctx context.Context, c *core.Core, actor role.Actor, id uint32) error {
	return c.ManualManager().UnmarkRead(ctx, actor, id)
})

// GetContent returns a piece of content tagged with its checksum,
// answering a matching If-None-Match without a body
func GetContent(ctx context.Context, c *core.Core, w http.ResponseWriter, r *http.Request) (result interface{}, aux interface{}, code int, rep *report.Report) {
	actor, err := endpoints.Actor(ctx)
	if err != nil {
		return endpoints.Fail(ctx, err)
	}

	id, err := endpoints.Param(r, "id")
	if err != nil {
		return endpoints.Fail(ctx, err)
	}

	content, err := c.ManualManager().ContentByID(ctx, actor, id)
	if err != nil {
		return endpoints.Fail(ctx, err)
	}

	etag := content.ETag()
	w.Header().Set("ETag", etag)

	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		return nil, nil, http.StatusNotModified, nil
	}

	return content, nil, http.StatusOK, nil
}
