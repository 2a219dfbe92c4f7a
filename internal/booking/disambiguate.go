package booking

import (
	"strings"

	"github.com/uberswe/zhsbooker/pkg/domain"
)

// Disambiguate picks the slot to book.
//
// A single slot is taken whatever the criteria say. Several slots need a
// detail substring; the first slot in display order whose detail contains
// it (case-sensitive) wins.
func Disambiguate(slots []domain.Slot, criteria domain.Criteria) (domain.Slot, error) {
	switch {
	case len(slots) == 0:
		return domain.Slot{}, ErrNoSlotsAvailable
	case len(slots) == 1:
		return slots[0], nil
	case criteria.IsEmpty():
		return domain.Slot{}, ErrAmbiguousSelection
	}

	for _, s := range slots {
		if strings.Contains(s.Detail, criteria.Detail) {
			return s, nil
		}
	}
	return domain.Slot{}, ErrNoMatchingSlot
}
