package assistant

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// ErrUnparseableDate signals that a phrase could not be resolved to a date.
var ErrUnparseableDate = errors.New("unparseable date")

var (
	todayWords    = []string{"today", "aujourd"}
	tomorrowWords = []string{"tomorrow", "demain"}

	// Characters outside this set confuse the date parser and are dropped.
	dateNoiseRe = regexp.MustCompile(`[^a-z0-9/\-: ]`)
)

// ResolveDate turns a natural-language phrase into a calendar date.
// "today"/"aujourd'hui" and "tomorrow"/"demain" resolve against the
// reference date; anything else is stripped of punctuation and handed to a
// lenient date parser. Dates resolve in the reference's location, no
// timezone normalization.
func ResolveDate(phrase string, reference time.Time) (time.Time, error) {
	text := strings.ToLower(strings.TrimSpace(phrase))

	for _, w := range todayWords {
		if strings.Contains(text, w) {
			return dayOf(reference), nil
		}
	}
	for _, w := range tomorrowWords {
		if strings.Contains(text, w) {
			return dayOf(reference.AddDate(0, 0, 1)), nil
		}
	}

	cleaned := strings.TrimSpace(dateNoiseRe.ReplaceAllString(text, ""))
	if cleaned == "" {
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnparseableDate, phrase)
	}

	t, err := dateparse.ParseIn(cleaned, reference.Location())
	if err != nil {
		// Day-first phrases like "25 oct" carry no year and fail outright;
		// retry with the reference year appended.
		withYear := cleaned + " " + strconv.Itoa(reference.Year())
		t, err = dateparse.ParseIn(withYear, reference.Location())
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnparseableDate, phrase)
	}
	// Month-first phrases like "oct 25" parse but report year zero; such a
	// date belongs to the reference year.
	if t.Year() == 0 {
		t = t.AddDate(reference.Year(), 0, 0)
	}
	return dayOf(t), nil
}

// dayOf truncates a timestamp to its calendar day.
func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
