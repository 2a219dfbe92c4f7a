// Package site binds semantic element roles to the markup of the booking
// site. Every XPath the workflow uses lives in one Binding.
package site

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/uberswe/zhsbooker/pkg/browser"
)

// Role names what an element is for on the booking site.
type Role string

const (
	CatalogEntry       Role = "catalog entry"
	SlotRow            Role = "slot row"
	SlotDetail         Role = "slot detail"
	SlotBookingControl Role = "slot booking control"
	SlotPendingMarker  Role = "slot pending marker"
	AnyInput           Role = "input"
	ExistingAccount    Role = "existing account"
	MailField          Role = "mail field"
	PasswordField      Role = "password field"
	LoginSubmit        Role = "login submit"
	LoginError         Role = "login error"
	AnySelect          Role = "select"
	NationalitySelect  Role = "nationality select"
	IBANField          Role = "IBAN field"
	BICField           Role = "BIC field"
	TermsCheckbox      Role = "terms checkbox"
	BookingSubmit      Role = "booking submit"
	BookingConfirm     Role = "booking confirm"
)

// CourseLink is the role of the catalog link for a named course. Its XPath
// is built by Binding.Course.
const CourseLink Role = "course link"

// Roles lists every role a Binding must provide.
var Roles = []Role{
	CatalogEntry, SlotRow, SlotDetail, SlotBookingControl, SlotPendingMarker,
	AnyInput, ExistingAccount, MailField, PasswordField, LoginSubmit, LoginError,
	AnySelect, NationalitySelect, IBANField, BICField, TermsCheckbox,
	BookingSubmit, BookingConfirm,
}

// Binding is the catalog entry point plus the role table for one site.
type Binding struct {
	CatalogURL string
	XPaths     map[Role]string
}

// ZHS is the binding for the Zentraler Hochschulsport München booking pages.
var ZHS = Binding{
	CatalogURL: "https://www.buchung.zhs-muenchen.de/angebote/aktueller_zeitraum_0/index.html",
	XPaths: map[Role]string{
		CatalogEntry:       `//*[contains(@class, "bs_menu")]//a`,
		SlotRow:            `//tr[@class="bs_odd" or @class="bs_even"]`,
		SlotDetail:         `//td[@class="bs_sdet"]`,
		SlotBookingControl: `//input[@value="buchen"]`,
		SlotPendingMarker:  `//*[contains(@class, "bs_btn_ab") or contains(@class, "bs_btn_vormerk")]`,
		AnyInput:           `//input`,
		ExistingAccount:    `//div[@id="bs_pw_anmlink"]`,
		MailField:          `//input[contains(@name, "mail")]`,
		PasswordField:      `//input[@type="password"]`,
		LoginSubmit:        `//input[@value="weiter zur Buchung"]`,
		LoginError:         `//*[contains(@class, "bs_meldung") or contains(@class, "bs_error")]`,
		AnySelect:          `//select`,
		NationalitySelect:  `//div[contains(., "Nationalität")]/following-sibling::div/select`,
		IBANField:          `//div[contains(., "IBAN")]/following-sibling::div/input`,
		BICField:           `//div[contains(., "BIC")]/following-sibling::div/input`,
		TermsCheckbox:      `//a[contains(., "Teilnahmebedingungen")]/preceding-sibling::input`,
		BookingSubmit:      `//input[contains(@value, "Buchung")]`,
		BookingConfirm:     `//input[contains(@value, "buchen")]`,
	},
}

// Validate checks that the catalog URL is absolute and every role is bound.
func (b Binding) Validate() error {
	var errs []error
	u, err := url.Parse(b.CatalogURL)
	if err != nil {
		errs = append(errs, fmt.Errorf("catalog url: %w", err))
	} else if !u.IsAbs() {
		errs = append(errs, fmt.Errorf("catalog url %q is not absolute", b.CatalogURL))
	}
	for _, r := range Roles {
		if strings.TrimSpace(b.XPaths[r]) == "" {
			errs = append(errs, fmt.Errorf("no xpath bound for %s", r))
		}
	}
	return errors.Join(errs...)
}

// Locator returns the locator bound to role.
func (b Binding) Locator(role Role) browser.Locator {
	return browser.Locator{Role: string(role), XPath: b.XPaths[role]}
}

// Course matches links whose text contains name.
func (b Binding) Course(name string) browser.Locator {
	return browser.Locator{
		Role:  string(CourseLink),
		XPath: fmt.Sprintf("//a[contains(., %s)]", Literal(name)),
	}
}

// Row is the i-th slot row (zero based) in display order.
func (b Binding) Row(i int) browser.Locator {
	return b.Locator(SlotRow).Nth(i)
}

// InRow scopes role to the i-th slot row.
func (b Binding) InRow(role Role, i int) browser.Locator {
	return b.Locator(role).Within(b.Row(i))
}

// Literal quotes s as an XPath 1.0 string literal. XPath has no escape
// sequences, so a string holding both quote kinds is built with concat().
func Literal(s string) string {
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}

	parts := strings.Split(s, `"`)
	args := make([]string, 0, 2*len(parts)-1)
	for i, p := range parts {
		if i > 0 {
			args = append(args, `'"'`)
		}
		if p != "" {
			args = append(args, `"`+p+`"`)
		}
	}
	return "concat(" + strings.Join(args, ", ") + ")"
}
