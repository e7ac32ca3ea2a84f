package output

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jamesainslie/trawl/pkg/trawl/types"
)

// SortKey selects the ordering of result rows.
type SortKey int

const (
	SortPath SortKey = iota
	SortSize
	SortModified
	SortCreated
)

var sortKeyNames = map[SortKey]string{
	SortPath:     "path",
	SortSize:     "size",
	SortModified: "modified",
	SortCreated:  "created",
}

func (k SortKey) String() string {
	if name, ok := sortKeyNames[k]; ok {
		return name
	}
	return fmt.Sprintf("SortKey(%d)", int(k))
}

// ParseSortKey parses a sort key name. The empty string means path.
func ParseSortKey(s string) (SortKey, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "path", "name":
		return SortPath, nil
	case "size":
		return SortSize, nil
	case "modified", "mtime":
		return SortModified, nil
	case "created", "ctime", "birth":
		return SortCreated, nil
	default:
		return SortPath, fmt.Errorf("unknown sort key %q (want path, size, modified or created)", s)
	}
}

// SortFiles orders files in place by key. Ties are broken by path so the
// ordering is total.
func SortFiles(files []types.MatchedFile, key SortKey, descending bool) {
	less := func(a, b types.MatchedFile) bool {
		switch key {
		case SortSize:
			if a.Size != b.Size {
				return a.Size < b.Size
			}
		case SortModified:
			if !a.ModTime.Equal(b.ModTime) {
				return a.ModTime.Before(b.ModTime)
			}
		case SortCreated:
			if !a.CreateTime.Equal(b.CreateTime) {
				return a.CreateTime.Before(b.CreateTime)
			}
		}
		return a.Path < b.Path
	}

	sort.SliceStable(files, func(i, j int) bool {
		if descending {
			return less(files[j], files[i])
		}
		return less(files[i], files[j])
	})
}
