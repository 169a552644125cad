package manual_test

import (
	"testing"

	"github.com/agubarev/handbook/pkg/fault"
	"github.com/agubarev/handbook/pkg/manual"
	"github.com/stretchr/testify/assert"
)

func TestQueryValidate(t *testing.T) {
	a := assert.New(t)

	cases := []struct {
		name  string
		query manual.Query
		err   error
	}{
		{"empty", manual.Query{}, nil},
		{"department filter", manual.Query{FilterField: "department", FilterIDs: []uint32{1, 2}}, nil},
		{"role filter", manual.Query{FilterField: "role", FilterIDs: []uint32{3}}, nil},
		{"filter without ids", manual.Query{FilterField: "role"}, manual.ErrInvalidFilter},
		{"ids without filter", manual.Query{FilterIDs: []uint32{3}}, manual.ErrInvalidFilter},
		{"unknown filter", manual.Query{FilterField: "business", FilterIDs: []uint32{1}}, manual.ErrInvalidFilter},
		{"sort", manual.Query{SortField: "title", SortOrder: "DESC"}, nil},
		{"lowercase order", manual.Query{SortField: "title", SortOrder: "asc"}, nil},
		{"sort without order", manual.Query{SortField: "title"}, manual.ErrInvalidSort},
		{"order without sort", manual.Query{SortOrder: "ASC"}, manual.ErrInvalidSort},
		{"unknown sort", manual.Query{SortField: "published", SortOrder: "ASC"}, manual.ErrInvalidSort},
		{"unknown order", manual.Query{SortField: "title", SortOrder: "UP"}, manual.ErrInvalidSort},
		{"pagination", manual.Query{Limit: 10, Page: 3}, nil},
		{"limit without page", manual.Query{Limit: 10}, manual.ErrInvalidPagination},
		{"page without limit", manual.Query{Page: 1}, manual.ErrInvalidPagination},
		{"search", manual.Query{Search: "safety"}, nil},
	}

	for _, c := range cases {
		err := c.query.Validate()
		if c.err == nil {
			a.NoError(err, c.name)
			continue
		}

		a.Equal(c.err, err, c.name)
		a.True(fault.Is(err, fault.KInvariant), c.name)
	}

	a.EqualError(manual.ErrInvalidFilter, "Invalid filter options")
	a.EqualError(manual.ErrInvalidSort, "Invalid sort options")
	a.EqualError(manual.ErrInvalidPagination, "Invalid pagination options")
}

func TestQueryOffset(t *testing.T) {
	a := assert.New(t)

	a.Equal(uint32(0), manual.Query{}.Offset())
	a.Equal(uint32(0), manual.Query{Limit: 10, Page: 1}.Offset())
	a.Equal(uint32(20), manual.Query{Limit: 10, Page: 3}.Offset())
	a.True(manual.Query{SortOrder: "asc"}.Ascending())
	a.False(manual.Query{SortOrder: "DESC"}.Ascending())
}
