// Package catalog reads the course catalog and the slot table of a course.
// It only looks; clicking a booking control is left to the booking package.
package catalog

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/uberswe/zhsbooker/internal/site"
	"github.com/uberswe/zhsbooker/pkg/browser"
	"github.com/uberswe/zhsbooker/pkg/domain"
)

// Courses returns the text of every course link on the catalog page.
func Courses(ctx context.Context, page browser.Page, b site.Binding) ([]string, error) {
	if err := page.Navigate(ctx, b.CatalogURL); err != nil {
		return nil, err
	}
	entries, err := page.WaitUntil(ctx, b.Locator(site.CatalogEntry), browser.Visible)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, el := range entries {
		text, err := page.Text(ctx, el)
		if err != nil {
			return nil, fmt.Errorf("read catalog entry: %w", err)
		}
		if text = strings.TrimSpace(text); text != "" {
			names = append(names, text)
		}
	}
	zerolog.Ctx(ctx).Debug().Int("courses", len(names)).Msg("Read catalog")
	return names, nil
}

// Open loads the catalog and clicks the link of the named course. A link
// that does not become clickable in time is reported as the wait timeout.
func Open(ctx context.Context, page browser.Page, b site.Binding, name string) error {
	if err := page.Navigate(ctx, b.CatalogURL); err != nil {
		return err
	}
	links, err := page.WaitUntil(ctx, b.Course(name), browser.Clickable)
	if err != nil {
		return err
	}
	return page.Click(ctx, links[0])
}

// Slots waits for the slot table of the open course page and reads every
// row in display order.
func Slots(ctx context.Context, page browser.Page, b site.Binding) ([]domain.Slot, error) {
	rows, err := page.WaitUntil(ctx, b.Locator(site.SlotRow), browser.Visible)
	if err != nil {
		return nil, err
	}

	slots := make([]domain.Slot, 0, len(rows))
	for i := range rows {
		detail, err := rowText(ctx, page, b.InRow(site.SlotDetail, i))
		if err != nil {
			return nil, err
		}
		avail, err := availability(ctx, page, b, i)
		if err != nil {
			return nil, err
		}
		slots = append(slots, domain.Slot{Index: i, Detail: detail, Availability: avail})
	}
	return slots, nil
}

func rowText(ctx context.Context, page browser.Page, loc browser.Locator) (string, error) {
	el, ok, err := page.Find(ctx, loc)
	if err != nil || !ok {
		return "", err
	}
	text, err := page.Text(ctx, el)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", loc.Role, err)
	}
	return strings.TrimSpace(text), nil
}

func availability(ctx context.Context, page browser.Page, b site.Binding, row int) (domain.Availability, error) {
	if _, ok, err := page.Find(ctx, b.InRow(site.SlotBookingControl, row)); err != nil {
		return "", err
	} else if ok {
		return domain.AvailabilityBookable, nil
	}
	if _, ok, err := page.Find(ctx, b.InRow(site.SlotPendingMarker, row)); err != nil {
		return "", err
	} else if ok {
		return domain.AvailabilityNotYetOpen, nil
	}
	return domain.AvailabilityClosed, nil
}

// PrintCourses writes one course name per line.
func PrintCourses(w io.Writer, names []string) {
	fmt.Fprintf(w, "\nCourses in the current catalog (%d):\n", len(names))
	fmt.Fprintln(w, strings.Repeat("=", 40))
	for _, n := range names {
		fmt.Fprintln(w, n)
	}
}

// PrintSlots writes the slot table of one course.
func PrintSlots(w io.Writer, course string, slots []domain.Slot) {
	fmt.Fprintf(w, "\nSlots of %s:\n", course)
	fmt.Fprintf(w, "%-4s %-14s %s\n", "Row", "Availability", "Detail")
	fmt.Fprintln(w, strings.Repeat("-", 60))
	for _, s := range slots {
		fmt.Fprintf(w, "%-4d %-14s %s\n", s.Index+1, s.Availability, s.Detail)
	}
}
