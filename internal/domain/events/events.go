// Package events holds the catalogue of ranked events, age groups and sexes.
package events

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/okian/qualtrack/internal/domain/model"
)

//go:embed catalogue.yaml
var catalogueYAML []byte

// ErrUnknownEvent is returned for event names outside the catalogue.
var ErrUnknownEvent = errors.New("unknown event")

// Event is a ranked event and its results-site stroke code.
type Event struct {
	Name string `yaml:"name" json:"name"`
	Code int    `yaml:"code" json:"code"`
}

// Catalogue lists what can be ranked.
type Catalogue struct {
	Pool      string   `yaml:"pool" json:"pool"`
	AgeGroups []string `yaml:"ageGroups" json:"ageGroups"`
	Sexes     []string `yaml:"sexes" json:"sexes"`
	Events    []Event  `yaml:"events" json:"events"`

	byName map[string]Event
}

// Parse decodes a catalogue document.
func Parse(doc []byte) (*Catalogue, error) {
	var c Catalogue
	if err := yaml.Unmarshal(doc, &c); err != nil {
		return nil, fmt.Errorf("parse catalogue: %w", err)
	}
	if len(c.Events) == 0 {
		return nil, fmt.Errorf("parse catalogue: no events")
	}
	c.byName = make(map[string]Event, len(c.Events))
	for _, e := range c.Events {
		c.byName[key(e.Name)] = e
	}
	return &c, nil
}

// Default returns the embedded catalogue.
func Default() *Catalogue {
	c, err := Parse(catalogueYAML)
	if err != nil {
		panic(err)
	}
	return c
}

func key(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// Lookup finds an event by name, ignoring case and spacing.
func (c *Catalogue) Lookup(name string) (Event, error) {
	e, ok := c.byName[key(name)]
	if !ok {
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownEvent, name)
	}
	return e, nil
}

// Segments enumerates every event, age group and sex combination.
func (c *Catalogue) Segments() []model.Segment {
	out := make([]model.Segment, 0, len(c.Events)*len(c.AgeGroups)*len(c.Sexes))
	for _, e := range c.Events {
		for _, a := range c.AgeGroups {
			for _, s := range c.Sexes {
				out = append(out, model.Segment{Event: e.Name, AgeGroup: a, Sex: s})
			}
		}
	}
	return out
}

// ValidSex reports whether sex is M, F or All.
func ValidSex(sex string) bool {
	switch sex {
	case model.SexMale, model.SexFemale, model.SexBoth:
		return true
	}
	return false
}
