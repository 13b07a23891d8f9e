// Package seed loads the building, space and user catalog from a YAML file.
//
// The booking subsystem never edits the catalog; deployments without an
// external catalog feed it from a document like:
//
//	buildings:
//	  - id: tower-a
//	    name: Tower A
//	users:
//	  - id: u-1
//	    name: Alice
//	    email: alice@example.com
//	spaces:
//	  - id: gym
//	    building_id: tower-a
//	    name: Gym
//	    capacity: 12
//	    opening_hours:
//	      monday: {open: "09:00", close: "21:00"}
//	      sunday: {closed: true}
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/example/amenity-booking/internal/domain"
	"github.com/example/amenity-booking/internal/persistence"
	"github.com/example/amenity-booking/internal/scheduler"
)

// Document is the parsed seed file.
type Document struct {
	Buildings []Building `yaml:"buildings"`
	Users     []User     `yaml:"users"`
	Spaces    []Space    `yaml:"spaces"`
}

// Building is a seeded building.
type Building struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// User is a seeded directory entry.
type User struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
}

// Space is a seeded common space. Reservable defaults to true.
type Space struct {
	ID           string                        `yaml:"id"`
	BuildingID   string                        `yaml:"building_id"`
	Name         string                        `yaml:"name"`
	Capacity     int                           `yaml:"capacity"`
	Reservable   *bool                         `yaml:"reservable"`
	BookingRules string                        `yaml:"booking_rules"`
	OpeningHours map[string]scheduler.DayHours `yaml:"opening_hours"`
}

// Load reads and validates the seed file at path.
func Load(path string) (Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return Document{}, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	doc, err := Parse(f)
	if err != nil {
		return Document{}, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Parse decodes and validates a seed document. Unknown keys are rejected.
func Parse(r io.Reader) (Document, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc Document
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return Document{}, fmt.Errorf("decode seed: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// Validate checks identifiers, references and opening hours. Every problem is
// reported in one error.
func (d Document) Validate() error {
	var problems []string
	addf := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	buildings := make(map[string]bool, len(d.Buildings))
	for i, b := range d.Buildings {
		switch {
		case strings.TrimSpace(b.ID) == "":
			addf("buildings[%d]: id is required", i)
		case buildings[b.ID]:
			addf("buildings[%d]: duplicate id %q", i, b.ID)
		}
		buildings[b.ID] = true
	}

	users := make(map[string]bool, len(d.Users))
	for i, u := range d.Users {
		switch {
		case strings.TrimSpace(u.ID) == "":
			addf("users[%d]: id is required", i)
		case users[u.ID]:
			addf("users[%d]: duplicate id %q", i, u.ID)
		}
		users[u.ID] = true
	}

	spaces := make(map[string]bool, len(d.Spaces))
	for i, s := range d.Spaces {
		switch {
		case strings.TrimSpace(s.ID) == "":
			addf("spaces[%d]: id is required", i)
		case spaces[s.ID]:
			addf("spaces[%d]: duplicate id %q", i, s.ID)
		}
		spaces[s.ID] = true

		if !buildings[s.BuildingID] {
			addf("spaces[%d]: unknown building %q", i, s.BuildingID)
		}
		if s.Capacity < 0 {
			addf("spaces[%d]: capacity must not be negative", i)
		}
		hours, err := scheduler.FromNames(s.OpeningHours)
		if err == nil {
			err = hours.Validate()
		}
		if err != nil {
			addf("spaces[%d]: opening_hours: %v", i, err)
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid seed: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Counts reports how many records Apply wrote.
type Counts struct {
	Buildings int
	Spaces    int
	Users     int
}

// Apply upserts the document into writer, buildings first. Re-applying the
// same document only moves the space timestamps.
func Apply(ctx context.Context, writer persistence.CatalogWriter, doc Document, now time.Time) (Counts, error) {
	var counts Counts
	now = now.UTC().Truncate(time.Second)

	for _, b := range doc.Buildings {
		if err := writer.UpsertBuilding(ctx, domain.Building{ID: b.ID, Name: b.Name}); err != nil {
			return counts, fmt.Errorf("seed building %s: %w", b.ID, err)
		}
		counts.Buildings++
	}

	for _, u := range doc.Users {
		if err := writer.UpsertUser(ctx, domain.User{ID: u.ID, Name: u.Name, Email: u.Email}); err != nil {
			return counts, fmt.Errorf("seed user %s: %w", u.ID, err)
		}
		counts.Users++
	}

	for _, s := range doc.Spaces {
		hours, err := scheduler.FromNames(s.OpeningHours)
		if err != nil {
			return counts, fmt.Errorf("seed space %s: %w", s.ID, err)
		}
		reservable := true
		if s.Reservable != nil {
			reservable = *s.Reservable
		}
		space := domain.CommonSpace{
			ID:           s.ID,
			BuildingID:   s.BuildingID,
			Name:         s.Name,
			Capacity:     s.Capacity,
			IsReservable: reservable,
			OpeningHours: hours,
			BookingRules: s.BookingRules,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := writer.UpsertSpace(ctx, space); err != nil {
			return counts, fmt.Errorf("seed space %s: %w", s.ID, err)
		}
		counts.Spaces++
	}

	return counts, nil
}
