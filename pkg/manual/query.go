package manual

import (
	"strings"

	"github.com/agubarev/handbook/pkg/fault"
)

// query contract violations
var (
	ErrInvalidFilter     = fault.New(fault.KInvariant, "", "", "Invalid filter options")
	ErrInvalidSort       = fault.New(fault.KInvariant, "", "", "Invalid sort options")
	ErrInvalidPagination = fault.New(fault.KInvariant, "", "", "Invalid pagination options")
)

// filterable fields and the assignment columns they match
var filterColumns = map[string]string{
	"department": "department_id",
	"role":       "role_id",
}

// sortable fields
var sortFields = map[string]bool{
	"title": true,
}

// Query narrows down a manual listing
type Query struct {
	FilterField string   `json:"filter_field"`
	FilterIDs   []uint32 `json:"filter_ids"`
	Search      string   `json:"search"`
	SortField   string   `json:"sort_field"`
	SortOrder   string   `json:"sort_order"`
	Limit       uint32   `json:"limit"`
	Page        uint32   `json:"page"`
}

// Validate checks the query contract; it must pass before
// the query reaches any store
func (q Query) Validate() error {
	// filtering options come together
	if q.FilterField != "" || len(q.FilterIDs) > 0 {
		if _, ok := filterColumns[q.FilterField]; !ok || len(q.FilterIDs) == 0 {
			return ErrInvalidFilter
		}
	}

	if q.SortField != "" || q.SortOrder != "" {
		if !sortFields[q.SortField] {
			return ErrInvalidSort
		}

		switch strings.ToUpper(q.SortOrder) {
		case "ASC", "DESC":
		default:
			return ErrInvalidSort
		}
	}

	if (q.Limit == 0) != (q.Page == 0) {
		return ErrInvalidPagination
	}

	return nil
}

// Ascending reports whether the requested order is ascending
func (q Query) Ascending() bool {
	return strings.ToUpper(q.SortOrder) == "ASC"
}

// Offset returns the number of records to skip
func (q Query) Offset() uint32 {
	if q.Limit == 0 {
		return 0
	}

	return q.Page*q.Limit - q.Limit
}

// matches reports whether an assignment satisfies the query filter
func (q Query) matches(as Assignment) bool {
	for _, id := range q.FilterIDs {
		switch q.FilterField {
		case "department":
			if as.DepartmentID != nil && *as.DepartmentID == id {
				return true
			}
		case "role":
			if as.RoleID != nil && *as.RoleID == id {
				return true
			}
		}
	}

	return false
}
