// README: Trip request validation and form parsing.
package trip

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

var (
	ErrEndBeforeStart     = errors.New("end date cannot be before start date")
	ErrDateNotInFuture    = errors.New("dates must be tomorrow or later")
	ErrUnknownDestination = errors.New("unknown destination")
	ErrUnknownPreference  = errors.New("unknown package preference")
	ErrUnknownBudget      = errors.New("unknown budget")
	ErrInvalidDate        = errors.New("invalid date")
)

// Form is the raw form submission. Binding tags are enforced by gin.
type Form struct {
	City       string `form:"city" binding:"required"`
	StartDate  string `form:"start_date" binding:"required"`
	EndDate    string `form:"end_date" binding:"required"`
	Preference string `form:"preference" binding:"required"`
	Budget     string `form:"budget" binding:"required,oneof=low medium high"`
}

// Parse converts the form into a Request and validates it against today.
func (f Form) Parse(today time.Time) (Request, error) {
	start, err := time.Parse(DateLayout, f.StartDate)
	if err != nil {
		return Request{}, fmt.Errorf("%w: start date %q", ErrInvalidDate, f.StartDate)
	}
	end, err := time.Parse(DateLayout, f.EndDate)
	if err != nil {
		return Request{}, fmt.Errorf("%w: end date %q", ErrInvalidDate, f.EndDate)
	}
	r := Request{
		City:       f.City,
		StartDate:  start,
		EndDate:    end,
		Preference: f.Preference,
		Budget:     Budget(f.Budget),
	}
	if err := r.Validate(today); err != nil {
		return Request{}, err
	}
	return r, nil
}

// Validate checks enums and the date window. today is truncated to its calendar day.
func (r Request) Validate(today time.Time) error {
	if !slices.Contains(Destinations, r.City) {
		return ErrUnknownDestination
	}
	if !slices.Contains(Preferences, r.Preference) {
		return ErrUnknownPreference
	}
	if !slices.Contains(Budgets, r.Budget) {
		return ErrUnknownBudget
	}
	if r.EndDate.Before(r.StartDate) {
		return ErrEndBeforeStart
	}
	tomorrow := Tomorrow(today)
	if dateOnly(r.StartDate).Before(tomorrow) || dateOnly(r.EndDate).Before(tomorrow) {
		return ErrDateNotInFuture
	}
	return nil
}

// IsValidation reports whether err came from form validation rather than I/O.
func IsValidation(err error) bool {
	for _, target := range []error{ErrEndBeforeStart, ErrDateNotInFuture, ErrUnknownDestination, ErrUnknownPreference, ErrUnknownBudget, ErrInvalidDate} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Tomorrow returns the calendar day after today, in UTC.
func Tomorrow(today time.Time) time.Time {
	return dateOnly(today).AddDate(0, 0, 1)
}

// DefaultForm returns the values the form is pre-filled with.
func DefaultForm(today time.Time) Form {
	start := Tomorrow(today)
	return Form{
		City:       Destinations[0],
		StartDate:  start.Format(DateLayout),
		EndDate:    start.AddDate(0, 0, 2).Format(DateLayout),
		Preference: Preferences[0],
		Budget:     string(BudgetMedium),
	}
}

// FormFor returns the form values that reproduce r.
func FormFor(r Request) Form {
	return Form{
		City:       r.City,
		StartDate:  r.StartDate.Format(DateLayout),
		EndDate:    r.EndDate.Format(DateLayout),
		Preference: r.Preference,
		Budget:     string(r.Budget),
	}
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
