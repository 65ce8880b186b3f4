package trident

import (
	"fmt"
	"math"
	"time"

	"golang.org/x/exp/slices"
)

// ContactWindow is a contiguous visibility period of a station, both ends inclusive.
type ContactWindow struct {
	Station    string
	Start, End time.Time
}

// Duration returns the length of this contact.
func (c ContactWindow) Duration() time.Duration { return c.End.Sub(c.Start) }

// Contains returns whether t is within this contact.
func (c ContactWindow) Contains(t time.Time) bool {
	return !t.Before(c.Start) && !t.After(c.End)
}

func (c ContactWindow) String() string {
	return fmt.Sprintf("%s %s -> %s", c.Station, c.Start.Format(time.RFC3339), c.End.Format(time.RFC3339))
}

// ContactWindows returns the entry/exit crossings of the visibility series of a station.
func ContactWindows(station string, series []VisibilityPoint) []ContactWindow {
	var contacts []ContactWindow
	open := -1
	for i, p := range series {
		switch {
		case p.Visible && open < 0:
			open = i
		case !p.Visible && open >= 0:
			contacts = append(contacts, ContactWindow{station, series[open].Time, series[i-1].Time})
			open = -1
		}
	}
	if open >= 0 {
		contacts = append(contacts, ContactWindow{station, series[open].Time, series[len(series)-1].Time})
	}
	return contacts
}

// MergeContacts returns the union of the provided contacts sorted by start
// time. Overlapping contacts of different stations are merged into one contact
// named after every station involved.
func MergeContacts(contacts []ContactWindow) []ContactWindow {
	if len(contacts) == 0 {
		return nil
	}
	sorted := make([]ContactWindow, len(contacts))
	copy(sorted, contacts)
	slices.SortStableFunc(sorted, func(a, b ContactWindow) int {
		return a.Start.Compare(b.Start)
	})
	merged := []ContactWindow{sorted[0]}
	for _, c := range sorted[1:] {
		last := &merged[len(merged)-1]
		if c.Start.After(last.End) {
			merged = append(merged, c)
			continue
		}
		if c.End.After(last.End) {
			last.End = c.End
		}
		if c.Station != last.Station {
			last.Station += "+" + c.Station
		}
	}
	return merged
}

// LatencyReport is the command latency over the horizon.
type LatencyReport struct {
	Requests int
	Unserved int // Requests after the last contact, measured to the end of the horizon.
	Max      time.Duration
	Mean     time.Duration
	Ceiling  time.Duration
	Margin   time.Duration // Ceiling - Max
	Pass     bool
	Worst    time.Time // Request time of the maximum latency.
}

// CommandLatency returns the latency of a command request issued every step
// from start to end: zero within a contact, else the time to the start of the
// next contact. The contacts must be sorted and not overlap, see MergeContacts.
func CommandLatency(contacts []ContactWindow, start, end time.Time, step, ceiling time.Duration) (LatencyReport, error) {
	if step <= 0 {
		return LatencyReport{}, configErr("Budgets.LatencyRequestStep", "must be positive, got %s", step)
	}
	if ceiling <= 0 {
		return LatencyReport{}, configErr("Budgets.LatencyCeiling", "must be positive, got %s", ceiling)
	}
	if end.Before(start) {
		return LatencyReport{}, configErr("horizon", "end %s before start %s", end, start)
	}
	report := LatencyReport{Ceiling: ceiling}
	var total float64
	next := 0
	for t := start; !t.After(end); t = t.Add(step) {
		for next < len(contacts) && contacts[next].End.Before(t) {
			next++
		}
		var latency time.Duration
		switch {
		case next == len(contacts):
			latency = end.Sub(t)
			report.Unserved++
		case contacts[next].Contains(t):
			latency = 0
		default:
			latency = contacts[next].Start.Sub(t)
		}
		if report.Requests == 0 || latency > report.Max {
			report.Max = latency
			report.Worst = t
		}
		total += float64(latency)
		report.Requests++
	}
	report.Mean = time.Duration(math.Round(total / float64(report.Requests)))
	report.Margin = ceiling - report.Max
	report.Pass = report.Max <= ceiling
	return report, nil
}
