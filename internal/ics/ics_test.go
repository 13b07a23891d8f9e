package ics

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

func sampleEvents(n int) []Event {
	start := time.Date(2026, time.March, 10, 14, 0, 0, 0, time.UTC)
	events := make([]Event, 0, n)
	for i := 0; i < n; i++ {
		s := start.Add(time.Duration(i) * 24 * time.Hour)
		events = append(events, Event{
			UID:         fmt.Sprintf("b-%d@amenity.local", i),
			Stamp:       start,
			Start:       s,
			End:         s.Add(2 * time.Hour),
			Summary:     "Gym booking",
			Description: "Booked by Alice",
		})
	}
	return events
}

func TestEncodeEnvelopeAndEventCount(t *testing.T) {
	t.Parallel()

	for _, n := range []int{0, 1, 2, 7} {
		n := n
		t.Run(fmt.Sprintf("%d events", n), func(t *testing.T) {
			t.Parallel()

			out, err := Marshal(Calendar{ProdID: "-//Test//EN", Events: sampleEvents(n)})
			if err != nil {
				t.Fatalf("Marshal returned error: %v", err)
			}
			text := string(out)

			if !strings.HasPrefix(text, "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//Test//EN\r\n") {
				t.Fatalf("unexpected header: %q", text)
			}
			if !strings.HasSuffix(text, "END:VCALENDAR\r\n") {
				t.Fatalf("unexpected trailer: %q", text)
			}
			if got := strings.Count(text, "BEGIN:VCALENDAR"); got != 1 {
				t.Fatalf("expected one calendar begin, got %d", got)
			}
			if got := strings.Count(text, "END:VCALENDAR"); got != 1 {
				t.Fatalf("expected one calendar end, got %d", got)
			}
			if got := strings.Count(text, "BEGIN:VEVENT\r\n"); got != n {
				t.Fatalf("expected %d events, got %d", n, got)
			}
			if got := strings.Count(text, "END:VEVENT\r\n"); got != n {
				t.Fatalf("expected %d event ends, got %d", n, got)
			}
			if strings.Count(text, "\n") != strings.Count(text, "\r\n") {
				t.Fatalf("expected every line to end with CRLF")
			}
		})
	}
}

func TestEncodeEventFields(t *testing.T) {
	t.Parallel()

	out, err := Marshal(Calendar{ProdID: "-//Test//EN", Events: sampleEvents(1)})
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}
	text := string(out)

	for _, want := range []string{
		"UID:b-0@amenity.local\r\n",
		"DTSTAMP:20260310T140000Z\r\n",
		"DTSTART:20260310T140000Z\r\n",
		"DTEND:20260310T160000Z\r\n",
		"SUMMARY:Gym booking\r\n",
		"DESCRIPTION:Booked by Alice\r\n",
		"STATUS:CONFIRMED\r\n",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in output:\n%s", want, text)
		}
	}
}

func TestFormatTimeConvertsToUTC(t *testing.T) {
	t.Parallel()

	tokyo := time.FixedZone("JST", 9*60*60)
	got := FormatTime(time.Date(2026, time.March, 10, 9, 0, 0, 0, tokyo))
	if got != "20260310T000000Z" {
		t.Fatalf("FormatTime = %q", got)
	}
}

func TestEscape(t *testing.T) {
	t.Parallel()

	got := Escape("Room A; floor 2, east\\wing\r\nline")
	want := `Room A\; floor 2\, east\\wing\nline`
	if got != want {
		t.Fatalf("Escape = %q, want %q", got, want)
	}
}

func TestEncodeEscapesTextValues(t *testing.T) {
	t.Parallel()

	out, err := Marshal(Calendar{ProdID: "-//Test//EN", Events: []Event{{
		UID:         "b-1@amenity.local",
		Summary:     "Studio; level 2, north",
		Description: "Booked by Bob\r\nfor rehearsal",
	}}})
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}
	text := string(out)

	for _, want := range []string{
		`SUMMARY:Studio\; level 2\, north` + "\r\n",
		`DESCRIPTION:Booked by Bob\nfor rehearsal` + "\r\n",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in output:\n%s", want, text)
		}
	}
}

func TestFoldLongLines(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("é", 100)
	out, err := Marshal(Calendar{ProdID: "-//Test//EN", Events: []Event{{UID: "x", Summary: long}}})
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}

	var unfolded strings.Builder
	for _, line := range strings.Split(strings.TrimSuffix(string(out), "\r\n"), "\r\n") {
		if len(line) > 75 {
			t.Fatalf("line exceeds 75 octets: %d", len(line))
		}
		if strings.HasPrefix(line, " ") {
			unfolded.WriteString(line[1:])
			continue
		}
		unfolded.WriteString("\n")
		unfolded.WriteString(line)
	}
	if !strings.Contains(unfolded.String(), "SUMMARY:"+long) {
		t.Fatalf("folded summary did not unfold to the original text")
	}
}
