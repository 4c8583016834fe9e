// README: Trip request value object, enums and derived booking flags.
package trip

import (
	"strings"
	"time"
)

// DateLayout is the ISO-8601 calendar date format used on the wire and in forms.
const DateLayout = "2006-01-02"

// Fixed traveler defaults; the form does not expose them.
const (
	TravelTypeSolo = "Solo"
	DefaultAdults  = 1
	DefaultKids    = 0
)

type Budget string

const (
	BudgetLow    Budget = "low"
	BudgetMedium Budget = "medium"
	BudgetHigh   Budget = "high"
)

// Budgets lists budget options in slider order.
var Budgets = []Budget{BudgetLow, BudgetMedium, BudgetHigh}

// Destinations lists the supported cities in selector order.
var Destinations = []string{
	"New York",
	"San Francisco",
	"Chicago",
	"Seattle",
	"Las Vegas",
	"Los Angeles",
}

// Preferences lists the package options in selector order.
var Preferences = []string{
	"Suggest an itinerary with Tours, Accommodation, Things to do",
	"Suggest an itinerary with Accommodation, Things to do",
	"Suggest an itinerary with Things to do",
}

// Request holds the trip parameters collected from the form.
type Request struct {
	City       string    `json:"city"`
	StartDate  time.Time `json:"start_date"`
	EndDate    time.Time `json:"end_date"`
	Preference string    `json:"preference"`
	Budget     Budget    `json:"budget"`
}

// GeneratePayload is the body of POST /generate-itinerary.
type GeneratePayload struct {
	City                 string `json:"city"`
	StartDate            string `json:"start_date"`
	EndDate              string `json:"end_date"`
	Preference           string `json:"preference"`
	TravelType           string `json:"travel_type"`
	Adults               int    `json:"adults"`
	Kids                 int    `json:"kids"`
	Budget               string `json:"budget"`
	IncludeTours         bool   `json:"include_tours"`
	IncludeAccommodation bool   `json:"include_accommodation"`
	IncludeThings        bool   `json:"include_things"`
}

func IncludeTours(preference string) bool {
	return strings.Contains(preference, "Tours")
}

func IncludeAccommodation(preference string) bool {
	return strings.Contains(preference, "Accommodation")
}

func IncludeThings(preference string) bool {
	return strings.Contains(preference, "Things to do")
}

// Payload builds the generation request body for r.
func (r Request) Payload() GeneratePayload {
	return GeneratePayload{
		City:                 r.City,
		StartDate:            r.StartDate.Format(DateLayout),
		EndDate:              r.EndDate.Format(DateLayout),
		Preference:           r.Preference,
		TravelType:           TravelTypeSolo,
		Adults:               DefaultAdults,
		Kids:                 DefaultKids,
		Budget:               string(r.Budget),
		IncludeTours:         IncludeTours(r.Preference),
		IncludeAccommodation: IncludeAccommodation(r.Preference),
		IncludeThings:        IncludeThings(r.Preference),
	}
}

// StartDateISO returns the start date in wire format.
func (r Request) StartDateISO() string {
	return r.StartDate.Format(DateLayout)
}

// PDFFilename is the download name offered for the itinerary PDF.
func (r Request) PDFFilename() string {
	return r.City + "_Itinerary.pdf"
}
