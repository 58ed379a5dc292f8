// Package ics renders outage events as an iCalendar document.
package ics

import (
	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"loadshedcal/internal/model"
)

// DefaultProductID is the PRODID written when none is configured.
const DefaultProductID = "-//io.github.daveduthie//load-shedding-calendar//EN"

// ContentType is the media type of Render's output.
const ContentType = "text/calendar; charset=utf-8"

// Renderer builds calendars. NewUID is overridable so tests can pin UIDs.
type Renderer struct {
	ProductID string
	NewUID    func() string
}

// NewRenderer returns a Renderer writing productID, or DefaultProductID when empty.
func NewRenderer(productID string) *Renderer {
	if productID == "" {
		productID = DefaultProductID
	}
	return &Renderer{
		ProductID: productID,
		NewUID:    func() string { return uuid.NewString() },
	}
}

// Calendar assembles one VEVENT per event. DTSTAMP mirrors DTSTART.
func (r *Renderer) Calendar(events []model.OutageEvent) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.SetVersion("2.0")
	cal.SetProductId(r.ProductID)

	for _, ev := range events {
		vevent := cal.AddEvent(r.NewUID())
		vevent.SetDtStampTime(ev.Interval.Start)
		vevent.SetStartAt(ev.Interval.Start)
		vevent.SetEndAt(ev.Interval.End)
		vevent.SetSummary(ev.Title)
	}
	return cal
}

// Render serializes events as a VCALENDAR document.
func (r *Renderer) Render(events []model.OutageEvent) string {
	return r.Calendar(events).Serialize()
}
