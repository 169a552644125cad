package util

import (
	"fmt"

	"github.com/davecgh/go-spew/spew"
	"github.com/r3labs/diff"
	"go.uber.org/zap"
)

// ProtectedChangelog computes the changes between before and after and
// fails if any of the changed fields is not listed as allowed
func ProtectedChangelog(allowedFields map[string]bool, before, after interface{}) (diff.Changelog, error) {
	changelog, err := diff.Diff(before, after)
	if err != nil {
		return nil, err
	}

	// going through changes and checking whether every changed field is allowed
	for _, change := range changelog {
		if !allowedFields[change.Path[0]] {
			return nil, fmt.Errorf("`%s` is protected and cannot be changed", change.Path[0])
		}
	}

	return changelog, nil
}

// Changed reports whether a top-level field is listed in the changelog
func Changed(changelog diff.Changelog, field string) bool {
	for _, change := range changelog {
		if len(change.Path) > 0 && change.Path[0] == field {
			return true
		}
	}

	return false
}

// changelogDump renders a changelog only once a log entry is encoded
type changelogDump diff.Changelog

func (d changelogDump) String() string {
	return spew.Sdump(diff.Changelog(d))
}

// DumpChangelog returns a debug field holding a readable changelog dump,
// nothing is rendered unless the entry is actually written
func DumpChangelog(changelog diff.Changelog) zap.Field {
	return zap.Stringer("changelog", changelogDump(changelog))
}
