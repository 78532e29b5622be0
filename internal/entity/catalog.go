package entity

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// SlotCategory groups slots that share a name and an optional weekday schedule.
// A slot belongs to the category when its identifier contains the keyword,
// compared case-insensitively.
type SlotCategory struct {
	Name    string         `json:"name"`
	Keyword string         `json:"keyword,omitempty"`
	Slots   []string       `json:"slots"`
	Days    []time.Weekday `json:"days,omitempty"`
}

func (c SlotCategory) keyword() string {
	if c.Keyword != "" {
		return strings.ToLower(c.Keyword)
	}
	return strings.ToLower(c.Name)
}

func (c SlotCategory) Restricted() bool {
	return len(c.Days) > 0
}

func (c SlotCategory) Matches(slotKey string) bool {
	kw := c.keyword()
	return kw != "" && strings.Contains(strings.ToLower(slotKey), kw)
}

func (c SlotCategory) AllowsDay(day time.Weekday) bool {
	if !c.Restricted() {
		return true
	}
	for _, d := range c.Days {
		if d == day {
			return true
		}
	}
	return false
}

// RestrictionMessage reads like "Mosque slots are only available on Fridays."
func (c SlotCategory) RestrictionMessage() string {
	days := make([]string, 0, len(c.Days))
	for _, d := range c.Days {
		days = append(days, d.String()+"s")
	}

	var list string
	switch len(days) {
	case 0:
		list = "no days"
	case 1:
		list = days[0]
	default:
		list = strings.Join(days[:len(days)-1], ", ") + " and " + days[len(days)-1]
	}

	return fmt.Sprintf("%s slots are only available on %s.", displayName(c.Name), list)
}

func displayName(name string) string {
	if name == "" {
		return "These"
	}
	first, size := utf8.DecodeRuneInString(name)
	return string(unicode.ToUpper(first)) + strings.ToLower(name[size:])
}

// Catalog is the set of slot categories offered to riders.
type Catalog struct {
	categories []SlotCategory
}

func NewCatalog(categories []SlotCategory) *Catalog {
	cp := make([]SlotCategory, len(categories))
	copy(cp, categories)
	return &Catalog{categories: cp}
}

// DefaultCatalog mirrors the slots the college runs today.
func DefaultCatalog() *Catalog {
	return NewCatalog([]SlotCategory{
		{
			Name:    "MOSQUE",
			Keyword: "mosque",
			Slots:   []string{"Mosque Slot 1", "Mosque Slot 2", "Mosque Slot 3", "Mosque Slot 4"},
			Days:    []time.Weekday{time.Friday},
		},
		{
			Name:  "EVENING",
			Slots: []string{"Evening Slot 1", "Evening Slot 2", "Evening Slot 3", "Evening Slot 4"},
		},
	})
}

func (c *Catalog) Categories() []SlotCategory {
	cp := make([]SlotCategory, len(c.categories))
	copy(cp, c.categories)
	return cp
}

// SlotsData returns the category name to slot names listing served to the client.
func (c *Catalog) SlotsData() map[string][]string {
	data := make(map[string][]string, len(c.categories))
	for _, cat := range c.categories {
		slots := make([]string, len(cat.Slots))
		copy(slots, cat.Slots)
		data[cat.Name] = slots
	}
	return data
}

// Restriction returns the first restricted category the slot belongs to that
// does not run on day. Every matching category applies, so a slot in two
// restricted categories only runs on the days both allow.
func (c *Catalog) Restriction(slotKey string, day time.Weekday) (SlotCategory, bool) {
	for _, cat := range c.categories {
		if cat.Matches(slotKey) && !cat.AllowsDay(day) {
			return cat, true
		}
	}
	return SlotCategory{}, false
}

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

func ParseWeekday(s string) (time.Weekday, error) {
	if d, ok := weekdays[strings.ToLower(strings.TrimSpace(s))]; ok {
		return d, nil
	}
	return time.Sunday, fmt.Errorf("unknown weekday %q", s)
}
