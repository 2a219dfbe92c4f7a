// Package booking implements the per-course registration workflow and the
// batch runner around it.
package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/uberswe/zhsbooker/internal/catalog"
	"github.com/uberswe/zhsbooker/internal/site"
	"github.com/uberswe/zhsbooker/pkg/browser"
	"github.com/uberswe/zhsbooker/pkg/domain"
)

// State is a point in the registration workflow of one course.
type State int

const (
	Pending State = iota
	CatalogLoaded
	CourseLocated
	SlotSelected
	RegistrationWindowOpen
	Authenticated
	PaymentDataFilled
	TermsAccepted
	Submitted
	Confirmed
)

var stateNames = [...]string{
	Pending:                "Pending",
	CatalogLoaded:          "CatalogLoaded",
	CourseLocated:          "CourseLocated",
	SlotSelected:           "SlotSelected",
	RegistrationWindowOpen: "RegistrationWindowOpen",
	Authenticated:          "Authenticated",
	PaymentDataFilled:      "PaymentDataFilled",
	TermsAccepted:          "TermsAccepted",
	Submitted:              "Submitted",
	Confirmed:              "Confirmed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Sequencer walks one course through the booking site. Every step is a
// single attempt; the first failing step ends the course.
type Sequencer struct {
	Page   browser.Page
	Site   site.Binding
	Config *domain.Config
	// DryRun stops after TermsAccepted without submitting.
	DryRun bool
	// Offers, when set, collects the slots seen on course pages.
	Offers *Offers
}

// attempt is the scratch state of one course run.
type attempt struct {
	course domain.Course
	link   browser.Element
	slot   *domain.Slot
}

type step struct {
	to  State
	run func(context.Context, *attempt) error
}

// steps returns the transitions in the only order they may run.
func (s *Sequencer) steps() []step {
	return []step{
		{CatalogLoaded, s.loadCatalog},
		{CourseLocated, s.locateCourse},
		{SlotSelected, s.selectSlot},
		{RegistrationWindowOpen, s.openRegistration},
		{Authenticated, s.authenticate},
		{PaymentDataFilled, s.fillPayment},
		{TermsAccepted, s.acceptTerms},
		{Submitted, s.submit},
		{Confirmed, s.confirm},
	}
}

// Run books course and reports how far it got.
func (s *Sequencer) Run(ctx context.Context, course domain.Course) domain.Result {
	logger := zerolog.Ctx(ctx)
	a := &attempt{course: course}
	res := domain.Result{Course: course.Name}
	reached := Pending

	for _, st := range s.steps() {
		if s.DryRun && st.to == Submitted {
			res.Outcome = domain.OutcomeRehearsed
			break
		}
		if err := st.run(ctx, a); err != nil {
			res.Error = &StepError{State: st.to, Err: err}
			res.Outcome = Classify(err)
			break
		}
		reached = st.to
		logger.Debug().Stringer("state", reached).Msg("Reached state")
	}

	if res.Outcome == "" {
		res.Outcome = domain.OutcomeBooked
	}
	res.Reached = reached.String()
	res.Slot = a.slot
	return res
}

func (s *Sequencer) loadCatalog(ctx context.Context, _ *attempt) error {
	// A previous course may have left a registration window in front.
	if err := s.Page.SwitchToWindow(ctx, 0); err != nil {
		return err
	}
	return s.Page.Navigate(ctx, s.Site.CatalogURL)
}

func (s *Sequencer) locateCourse(ctx context.Context, a *attempt) error {
	links, err := s.Page.WaitUntil(ctx, s.Site.Course(a.course.Name), browser.Clickable)
	if err != nil {
		return timeoutAs(err, ErrCourseNotFound)
	}
	a.link = links[0]
	return nil
}

func (s *Sequencer) selectSlot(ctx context.Context, a *attempt) error {
	if err := s.Page.Click(ctx, a.link); err != nil {
		return fmt.Errorf("open course page: %w", err)
	}

	slots, err := catalog.Slots(ctx, s.Page, s.Site)
	if err != nil {
		return timeoutAs(err, ErrNoSlotsAvailable)
	}

	logger := zerolog.Ctx(ctx)
	if s.Offers != nil {
		for _, o := range s.Offers.Record(a.course.Name, slots) {
			logger.Debug().
				Str("detail", o.Detail).
				Str("availability", string(o.Availability)).
				Msg("New offer")
		}
	}

	slot, err := Disambiguate(slots, a.course.Criteria)
	if err != nil {
		return err
	}
	a.slot = &slot

	logger.Info().
		Int("row", slot.Index+1).
		Int("slots", len(slots)).
		Str("detail", slot.Detail).
		Str("availability", string(slot.Availability)).
		Msg("Selected slot")
	return nil
}

func (s *Sequencer) openRegistration(ctx context.Context, a *attempt) error {
	controls, err := s.Page.WaitUntil(ctx, s.Site.InRow(site.SlotBookingControl, a.slot.Index), browser.Clickable)
	if err != nil {
		return timeoutAs(err, ErrSlotUnavailable)
	}

	// The form opens in a new window, which gets the next index.
	next, err := s.Page.Windows(ctx)
	if err != nil {
		return err
	}
	if err := s.Page.Click(ctx, controls[0]); err != nil {
		return fmt.Errorf("click booking control: %w", err)
	}
	return s.Page.SwitchToWindow(ctx, next)
}

func (s *Sequencer) authenticate(ctx context.Context, _ *attempt) error {
	login := s.Config.Login

	if _, err := s.Page.WaitUntil(ctx, s.Site.Locator(site.AnyInput), browser.Present); err != nil {
		return err
	}
	if err := s.click(ctx, site.ExistingAccount); err != nil {
		return err
	}
	if err := s.typeInto(ctx, site.MailField, login.Mail); err != nil {
		return err
	}
	if err := s.typeInto(ctx, site.PasswordField, login.Password); err != nil {
		return err
	}
	if err := s.click(ctx, site.LoginSubmit); err != nil {
		return err
	}

	// The payment form only renders for an accepted login.
	_, err := s.Page.WaitUntil(ctx, s.Site.Locator(site.AnySelect), browser.Visible)
	if err == nil || !browser.IsWaitTimeout(err) {
		return err
	}
	banner, found, ferr := s.Page.Find(ctx, s.Site.Locator(site.LoginError))
	if ferr != nil || !found {
		return err
	}
	msg, _ := s.Page.Text(ctx, banner)
	if msg = strings.TrimSpace(msg); msg != "" {
		return fmt.Errorf("%w: %s", ErrAuthenticationFailed, msg)
	}
	return ErrAuthenticationFailed
}

func (s *Sequencer) fillPayment(ctx context.Context, _ *attempt) error {
	cfg := s.Config
	logger := zerolog.Ctx(ctx)

	if _, err := s.Page.WaitUntil(ctx, s.Site.Locator(site.AnySelect), browser.Visible); err != nil {
		return err
	}

	if cfg.Login.Country != "" {
		if err := s.typeInto(ctx, site.NationalitySelect, cfg.Login.Country); err != nil {
			return err
		}
	}

	// IBAN and BIC may be prefilled from an earlier booking. Enter after the
	// IBAN lets the site derive the BIC.
	filled, err := s.fillIfEmpty(ctx, site.IBANField, cfg.Bank.IBAN+"\n")
	if err != nil {
		return err
	}
	logger.Debug().Bool("typed", filled).Msg("IBAN field")

	if cfg.Bank.BIC != "" {
		filled, err := s.fillIfEmpty(ctx, site.BICField, cfg.Bank.BIC)
		if err != nil {
			return err
		}
		logger.Debug().Bool("typed", filled).Msg("BIC field")
	}
	return nil
}

func (s *Sequencer) acceptTerms(ctx context.Context, _ *attempt) error {
	return s.click(ctx, site.TermsCheckbox)
}

func (s *Sequencer) submit(ctx context.Context, _ *attempt) error {
	return s.click(ctx, site.BookingSubmit)
}

func (s *Sequencer) confirm(ctx context.Context, _ *attempt) error {
	return s.click(ctx, site.BookingConfirm)
}

// first waits for role and returns its first match.
func (s *Sequencer) first(ctx context.Context, role site.Role, cond browser.Condition) (browser.Element, error) {
	els, err := s.Page.WaitUntil(ctx, s.Site.Locator(role), cond)
	if err != nil {
		return browser.Element{}, err
	}
	return els[0], nil
}

func (s *Sequencer) click(ctx context.Context, role site.Role) error {
	el, err := s.first(ctx, role, browser.Clickable)
	if err != nil {
		return err
	}
	if err := s.Page.Click(ctx, el); err != nil {
		return fmt.Errorf("click %s: %w", role, err)
	}
	return nil
}

func (s *Sequencer) typeInto(ctx context.Context, role site.Role, text string) error {
	el, err := s.first(ctx, role, browser.Visible)
	if err != nil {
		return err
	}
	if err := s.Page.TypeText(ctx, el, text); err != nil {
		return fmt.Errorf("type into %s: %w", role, err)
	}
	return nil
}

// fillIfEmpty types text into role unless the field already holds a value.
func (s *Sequencer) fillIfEmpty(ctx context.Context, role site.Role, text string) (bool, error) {
	el, err := s.first(ctx, role, browser.Visible)
	if err != nil {
		return false, err
	}
	v, err := s.Page.Value(ctx, el)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", role, err)
	}
	if v != "" {
		return false, nil
	}
	if err := s.Page.TypeText(ctx, el, text); err != nil {
		return false, fmt.Errorf("type into %s: %w", role, err)
	}
	return true, nil
}

// timeoutAs turns a wait timeout into the terminal failure target, keeping
// the timeout in the message.
func timeoutAs(err, target error) error {
	var wt *browser.WaitTimeoutError
	if errors.As(err, &wt) {
		return fmt.Errorf("%w: %v", target, wt)
	}
	return err
}
