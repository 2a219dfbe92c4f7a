package booking

import "github.com/uberswe/zhsbooker/pkg/domain"

// Offers remembers the slots seen during the run. It only feeds logging.
type Offers struct {
	seen map[offerKey]struct{}
}

type offerKey struct {
	course string
	detail string
}

// NewOffers returns an empty set.
func NewOffers() *Offers {
	return &Offers{seen: make(map[offerKey]struct{})}
}

// Record adds the slots of course and returns the ones not seen before.
func (o *Offers) Record(course string, slots []domain.Slot) []domain.Slot {
	var fresh []domain.Slot
	for _, s := range slots {
		k := offerKey{course: course, detail: s.Detail}
		if _, ok := o.seen[k]; ok {
			continue
		}
		o.seen[k] = struct{}{}
		fresh = append(fresh, s)
	}
	return fresh
}

// Len returns the number of distinct offers seen.
func (o *Offers) Len() int {
	return len(o.seen)
}
