package watchstate

import "github.com/mmcdole/watchparty/internal/domain"

// Toggle removes item from the list if its ID is present, otherwise appends it.
// The input slice is not modified.
func Toggle(list []domain.ContentRef, item domain.ContentRef) []domain.ContentRef {
	if indexOf(list, item.ID) >= 0 {
		out := make([]domain.ContentRef, 0, len(list))
		for _, existing := range list {
			if existing.ID != item.ID {
				out = append(out, existing)
			}
		}
		return out
	}

	out := make([]domain.ContentRef, 0, len(list)+1)
	out = append(out, list...)
	return append(out, item)
}

func indexOf[T Keyed](list []T, id domain.ContentID) int {
	for i, item := range list {
		if item.Key() == id {
			return i
		}
	}
	return -1
}
