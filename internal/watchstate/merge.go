package watchstate

import "github.com/mmcdole/watchparty/internal/domain"

// Keyed is anything identified by a content ID
type Keyed interface {
	Key() domain.ContentID
}

// Merge returns local unchanged and in order, followed by each remote entry
// whose ID is not already present, in remote order. Local always wins on a
// collision, so merging the same remote input twice changes nothing.
func Merge[T Keyed](local, remote []T) []T {
	merged := make([]T, 0, len(local)+len(remote))
	merged = append(merged, local...)

	seen := make(map[domain.ContentID]struct{}, len(local)+len(remote))
	for _, item := range local {
		seen[item.Key()] = struct{}{}
	}
	for _, item := range remote {
		if _, ok := seen[item.Key()]; ok {
			continue
		}
		seen[item.Key()] = struct{}{}
		merged = append(merged, item)
	}
	return merged
}
