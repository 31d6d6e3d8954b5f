package booking

import (
	"fmt"
	"strings"
)

const icsStampLayout = "20060102T150405"

// GenerateICS renders a single-event iCalendar document for the booking so
// customers can add the appointment from the link in the confirmation SMS.
func GenerateICS(b *Booking, businessName string) string {
	description := b.Notes
	if description == "" {
		description = "No additional notes"
	}

	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//Bookline//Booking Agent//EN",
		"BEGIN:VEVENT",
		fmt.Sprintf("UID:%s@bookline", b.ID),
		"DTSTAMP:" + b.CreatedAt.Format(icsStampLayout),
		"DTSTART:" + b.DateTime.Format(icsStampLayout),
		"DTEND:" + b.End().Format(icsStampLayout),
		fmt.Sprintf("SUMMARY:Appointment with %s", businessName),
		"DESCRIPTION:" + description,
		"END:VEVENT",
		"END:VCALENDAR",
	}
	return strings.Join(lines, "\r\n") + "\r\n"
}
