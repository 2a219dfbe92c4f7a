package booking

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uberswe/zhsbooker/internal/site"
	"github.com/uberswe/zhsbooker/pkg/browser"
	"github.com/uberswe/zhsbooker/pkg/browser/browsertest"
	"github.com/uberswe/zhsbooker/pkg/domain"
)

const (
	testIBAN = "DE89370400440532013000"
	testBIC  = "COBADEFFXXX"
)

// offer is one course as the fake catalog shows it.
type offer struct {
	name    string
	slots   []string
	pending map[int]bool
}

// form controls what the registration window looks like.
type form struct {
	iban, bic   string
	rejectLogin bool
	slowLogin   bool
}

type fixture struct {
	page   *browsertest.Page
	form   form
	forms  []int // registration windows in opening order
	booked []int // slot rows whose booking control was clicked
}

func newFixture(offers ...offer) *fixture {
	f := &fixture{page: browsertest.New()}
	b := site.ZHS

	for _, o := range offers {
		link := b.Course(o.name)
		f.page.Add(link, &browsertest.Node{Text: o.name})
		f.page.OnClick(link, func(p *browsertest.Page) {
			rows := make([]*browsertest.Node, len(o.slots))
			for i, detail := range o.slots {
				rows[i] = &browsertest.Node{}
				p.Set(b.InRow(site.SlotDetail, i), &browsertest.Node{Text: detail})
				if o.pending[i] {
					p.Remove(b.InRow(site.SlotBookingControl, i))
					p.Set(b.InRow(site.SlotPendingMarker, i), &browsertest.Node{Text: "ab 16:10"})
				} else {
					p.Set(b.InRow(site.SlotBookingControl, i), &browsertest.Node{})
					p.Remove(b.InRow(site.SlotPendingMarker, i))
				}
				f.onBook(i)
			}
			if len(rows) == 0 {
				p.Remove(b.Locator(site.SlotRow))
				return
			}
			p.Set(b.Locator(site.SlotRow), rows...)
		})
	}
	return f
}

func (f *fixture) onBook(row int) {
	b := site.ZHS
	f.page.OnClick(b.InRow(site.SlotBookingControl, row), func(p *browsertest.Page) {
		f.booked = append(f.booked, row)
		w := p.OpenWindow()
		f.forms = append(f.forms, w)

		p.AddTo(w, b.Locator(site.AnyInput), &browsertest.Node{})
		p.AddTo(w, b.Locator(site.ExistingAccount), &browsertest.Node{})
		p.AddTo(w, b.Locator(site.MailField), &browsertest.Node{})
		p.AddTo(w, b.Locator(site.PasswordField), &browsertest.Node{})
		p.AddTo(w, b.Locator(site.LoginSubmit), &browsertest.Node{})
		switch {
		case f.form.rejectLogin:
			p.AddTo(w, b.Locator(site.LoginError), &browsertest.Node{Text: " Passwort falsch "})
			return
		case f.form.slowLogin:
			return
		}
		p.AddTo(w, b.Locator(site.AnySelect), &browsertest.Node{})
		p.AddTo(w, b.Locator(site.NationalitySelect), &browsertest.Node{})
		p.AddTo(w, b.Locator(site.IBANField), &browsertest.Node{Value: f.form.iban})
		p.AddTo(w, b.Locator(site.BICField), &browsertest.Node{Value: f.form.bic})
		p.AddTo(w, b.Locator(site.TermsCheckbox), &browsertest.Node{})
		p.AddTo(w, b.Locator(site.BookingSubmit), &browsertest.Node{})
		p.AddTo(w, b.Locator(site.BookingConfirm), &browsertest.Node{})
	})
}

func testConfig(courses ...domain.Course) *domain.Config {
	return &domain.Config{
		Login:   domain.Login{Mail: "anna@example.org", Password: "secret", Country: "Deutschland"},
		Bank:    domain.Bank{IBAN: testIBAN, BIC: testBIC},
		Courses: courses,
	}
}

func (f *fixture) sequencer(cfg *domain.Config) *Sequencer {
	return &Sequencer{Page: f.page, Site: site.ZHS, Config: cfg, Offers: NewOffers()}
}

func (f *fixture) field(role site.Role) *browsertest.Node {
	return f.page.Node(f.forms[len(f.forms)-1], site.ZHS.Locator(role))
}

func TestStateOrder(t *testing.T) {
	s := &Sequencer{}
	var got []State
	for _, st := range s.steps() {
		got = append(got, st.to)
	}
	assert.Equal(t, []State{
		CatalogLoaded, CourseLocated, SlotSelected, RegistrationWindowOpen,
		Authenticated, PaymentDataFilled, TermsAccepted, Submitted, Confirmed,
	}, got)
	assert.Equal(t, "RegistrationWindowOpen", RegistrationWindowOpen.String())
	assert.Equal(t, "State(42)", State(42).String())
}

func TestSingleSlotIsBooked(t *testing.T) {
	f := newFixture(offer{name: "Yoga", slots: []string{"Yoga Mo 18:00"}})
	course := domain.Course{Name: "Yoga"}

	res := f.sequencer(testConfig(course)).Run(context.Background(), course)

	require.NoError(t, res.Error)
	assert.Equal(t, domain.OutcomeBooked, res.Outcome)
	assert.Equal(t, "Confirmed", res.Reached)
	require.NotNil(t, res.Slot)
	assert.Equal(t, "Yoga Mo 18:00", res.Slot.Detail)

	assert.Equal(t, 1, f.page.Active())
	assert.Equal(t, "anna@example.org", f.field(site.MailField).Value)
	assert.Equal(t, "secret", f.field(site.PasswordField).Value)
	assert.Equal(t, "Deutschland", f.field(site.NationalitySelect).Value)
	assert.Equal(t, testIBAN, f.field(site.IBANField).Value)
	assert.Equal(t, testBIC, f.field(site.BICField).Value)
	assert.True(t, f.page.Called("click", site.ZHS.Locator(site.TermsCheckbox)))
	assert.True(t, f.page.Called("click", site.ZHS.Locator(site.BookingSubmit)))
	assert.True(t, f.page.Called("click", site.ZHS.Locator(site.BookingConfirm)))
}

func TestCriteriaSelectsSlot(t *testing.T) {
	f := newFixture(offer{name: "Tennis", slots: []string{"Tennis A1", "Tennis B2"}})
	course := domain.Course{Name: "Tennis", Criteria: domain.Criteria{Detail: "B2"}}

	res := f.sequencer(testConfig(course)).Run(context.Background(), course)

	require.NoError(t, res.Error)
	assert.Equal(t, domain.OutcomeBooked, res.Outcome)
	assert.Equal(t, "Tennis B2", res.Slot.Detail)
	assert.Equal(t, []int{1}, f.booked)
}

func TestAmbiguousSlotsStopBeforeBooking(t *testing.T) {
	f := newFixture(offer{name: "Swimming", slots: []string{"Swim Mon", "Swim Tue"}})
	course := domain.Course{Name: "Swimming"}

	res := f.sequencer(testConfig(course)).Run(context.Background(), course)

	assert.Equal(t, domain.OutcomeAmbiguousNoMatch, res.Outcome)
	assert.ErrorIs(t, res.Error, ErrAmbiguousSelection)
	assert.Equal(t, "CourseLocated", res.Reached)
	var stepErr *StepError
	require.ErrorAs(t, res.Error, &stepErr)
	assert.Equal(t, SlotSelected, stepErr.State)
	assert.Nil(t, res.Slot)
	assert.Empty(t, f.booked)
}

func TestNoMatchingSlot(t *testing.T) {
	f := newFixture(offer{name: "Tennis", slots: []string{"Tennis A1", "Tennis B2"}})
	course := domain.Course{Name: "Tennis", Criteria: domain.Criteria{Detail: "C3"}}

	res := f.sequencer(testConfig(course)).Run(context.Background(), course)

	assert.Equal(t, domain.OutcomeAmbiguousNoMatch, res.Outcome)
	assert.ErrorIs(t, res.Error, ErrNoMatchingSlot)
}

func TestCourseNotFoundStopsImmediately(t *testing.T) {
	f := newFixture(offer{name: "Yoga", slots: []string{"Yoga"}})
	course := domain.Course{Name: "Bouldern"}

	res := f.sequencer(testConfig(course)).Run(context.Background(), course)

	assert.Equal(t, domain.OutcomeCourseNotFound, res.Outcome)
	assert.ErrorIs(t, res.Error, ErrCourseNotFound)
	assert.Equal(t, "CatalogLoaded", res.Reached)
	assert.Equal(t, []string{
		"switch 0",
		"navigate " + site.ZHS.CatalogURL,
		"wait course link",
	}, f.page.Calls)
}

func TestEmptySlotTable(t *testing.T) {
	f := newFixture(offer{name: "Yoga"})
	course := domain.Course{Name: "Yoga"}

	res := f.sequencer(testConfig(course)).Run(context.Background(), course)

	assert.Equal(t, domain.OutcomeNoSlotsAvailable, res.Outcome)
	assert.ErrorIs(t, res.Error, ErrNoSlotsAvailable)
}

func TestSlotNotOpenYet(t *testing.T) {
	f := newFixture(offer{name: "Yoga", slots: []string{"Yoga Mo"}, pending: map[int]bool{0: true}})
	course := domain.Course{Name: "Yoga"}

	res := f.sequencer(testConfig(course)).Run(context.Background(), course)

	assert.Equal(t, domain.OutcomeSlotNotBookableYet, res.Outcome)
	assert.ErrorIs(t, res.Error, ErrSlotUnavailable)
	assert.Equal(t, "SlotSelected", res.Reached)
	assert.Equal(t, domain.AvailabilityNotYetOpen, res.Slot.Availability)
	assert.Empty(t, f.forms)
	assert.Equal(t, 0, f.page.Active())
}

func TestPrefilledBankDataIsKept(t *testing.T) {
	f := newFixture(offer{name: "Yoga", slots: []string{"Yoga Mo"}})
	f.form.iban = "DE02120300000000202051"
	f.form.bic = "BYLADEM1001"
	course := domain.Course{Name: "Yoga"}

	res := f.sequencer(testConfig(course)).Run(context.Background(), course)

	require.NoError(t, res.Error)
	assert.Equal(t, "DE02120300000000202051", f.field(site.IBANField).Value)
	assert.Equal(t, "BYLADEM1001", f.field(site.BICField).Value)
	assert.False(t, f.page.Called("type", site.ZHS.Locator(site.IBANField)))
	assert.False(t, f.page.Called("type", site.ZHS.Locator(site.BICField)))
}

func TestFillPaymentTwiceTypesOnce(t *testing.T) {
	f := newFixture(offer{name: "Yoga", slots: []string{"Yoga Mo"}})
	course := domain.Course{Name: "Yoga"}
	s := f.sequencer(testConfig(course))

	res := s.Run(context.Background(), course)
	require.NoError(t, res.Error)

	require.NoError(t, s.fillPayment(context.Background(), nil))
	assert.Equal(t, testIBAN, f.field(site.IBANField).Value)
	assert.Equal(t, testBIC, f.field(site.BICField).Value)
}

func TestRejectedLogin(t *testing.T) {
	f := newFixture(offer{name: "Yoga", slots: []string{"Yoga Mo"}})
	f.form.rejectLogin = true
	course := domain.Course{Name: "Yoga"}

	res := f.sequencer(testConfig(course)).Run(context.Background(), course)

	assert.Equal(t, domain.OutcomeAuthFailed, res.Outcome)
	assert.ErrorIs(t, res.Error, ErrAuthenticationFailed)
	assert.Contains(t, res.Error.Error(), "Passwort falsch")
	assert.Equal(t, "RegistrationWindowOpen", res.Reached)
}

func TestSlowLoginIsPlainTimeout(t *testing.T) {
	f := newFixture(offer{name: "Yoga", slots: []string{"Yoga Mo"}})
	f.form.slowLogin = true
	course := domain.Course{Name: "Yoga"}

	res := f.sequencer(testConfig(course)).Run(context.Background(), course)

	assert.Equal(t, domain.OutcomeFailed, res.Outcome)
	assert.True(t, browser.IsWaitTimeout(res.Error))
	assert.NotErrorIs(t, res.Error, ErrAuthenticationFailed)
}

func TestDryRunStopsBeforeSubmit(t *testing.T) {
	f := newFixture(offer{name: "Yoga", slots: []string{"Yoga Mo"}})
	course := domain.Course{Name: "Yoga"}
	s := f.sequencer(testConfig(course))
	s.DryRun = true

	res := s.Run(context.Background(), course)

	require.NoError(t, res.Error)
	assert.Equal(t, domain.OutcomeRehearsed, res.Outcome)
	assert.Equal(t, "TermsAccepted", res.Reached)
	assert.True(t, res.Success())
	assert.False(t, f.page.Called("click", site.ZHS.Locator(site.BookingSubmit)))
	assert.False(t, f.page.Called("click", site.ZHS.Locator(site.BookingConfirm)))
}

func TestNavigationFailure(t *testing.T) {
	f := newFixture(offer{name: "Yoga", slots: []string{"Yoga Mo"}})
	f.page.NavigateErr = errors.New("net::ERR_INTERNET_DISCONNECTED")
	course := domain.Course{Name: "Yoga"}

	res := f.sequencer(testConfig(course)).Run(context.Background(), course)

	assert.Equal(t, domain.OutcomeFailed, res.Outcome)
	assert.True(t, browser.IsNavigationError(res.Error))
	assert.Equal(t, "Pending", res.Reached)
}

func TestCountryIsOptional(t *testing.T) {
	f := newFixture(offer{name: "Yoga", slots: []string{"Yoga Mo"}})
	course := domain.Course{Name: "Yoga"}
	cfg := testConfig(course)
	cfg.Login.Country = ""

	res := f.sequencer(cfg).Run(context.Background(), course)

	require.NoError(t, res.Error)
	assert.False(t, f.page.Called("type", site.ZHS.Locator(site.NationalitySelect)))
}
