// Package ics writes minimal RFC 5545 calendar documents on top of
// golang-ical, which owns escaping, line folding and CRLF framing.
package ics

import (
	"bytes"
	"io"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
)

// TimeFormat is the UTC date-time form used for DTSTAMP, DTSTART and DTEND.
const TimeFormat = "20060102T150405Z"

// Calendar is a VCALENDAR document.
type Calendar struct {
	ProdID string
	Name   string
	Events []Event
}

// Event is a single VEVENT.
type Event struct {
	UID         string
	Stamp       time.Time
	Start       time.Time
	End         time.Time
	Summary     string
	Description string
	Status      string
}

// Encode writes cal to w with CRLF line endings.
func Encode(w io.Writer, cal Calendar) error {
	_, err := io.WriteString(w, build(cal).Serialize())
	return err
}

// Marshal returns the encoded document.
func Marshal(cal Calendar) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, cal); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func build(cal Calendar) *ical.Calendar {
	doc := ical.NewCalendar()
	doc.SetProductId(cal.ProdID)
	doc.SetCalscale("GREGORIAN")
	if cal.Name != "" {
		doc.SetXWRCalName(singleLine(cal.Name))
	}

	for _, ev := range cal.Events {
		event := doc.AddEvent(ev.UID)
		event.SetDtStampTime(ev.Stamp)
		event.SetStartAt(ev.Start)
		event.SetEndAt(ev.End)
		event.SetSummary(singleLine(ev.Summary))
		event.SetDescription(singleLine(ev.Description))
		status := ical.ObjectStatusConfirmed
		if ev.Status != "" {
			status = ical.ObjectStatus(ev.Status)
		}
		event.SetStatus(status)
	}
	return doc
}

// FormatTime renders t in UTC as YYYYMMDDTHHMMSSZ.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}

// golang-ical only escapes LF, so CR and CRLF are collapsed first.
var lineBreaks = strings.NewReplacer("\r\n", "\n", "\r", "\n")

func singleLine(value string) string {
	return lineBreaks.Replace(value)
}

// Escape escapes a TEXT property value the way the encoder does.
func Escape(value string) string {
	return ical.ToText(singleLine(value))
}
