// Package timeparse extracts durations from free-form model output.
//
// The generation model is prompted to answer with a time expression but may
// wrap it in commentary ("Sure, I'll wait 2h30s"). Parsing is therefore
// maximally permissive: each unit is matched independently anywhere in the
// text, missing units default to zero, and input with no time expression at
// all yields a zero duration rather than an error. A strict parser would
// stall the response cycle on every chatty reply.
package timeparse

import (
	"regexp"
	"strconv"
	"time"
)

var (
	daysRx    = regexp.MustCompile(`(\d+)d`)
	hoursRx   = regexp.MustCompile(`(\d+)h`)
	minutesRx = regexp.MustCompile(`(\d+)m`)
	secondsRx = regexp.MustCompile(`(\d+)s`)
)

// Parse returns the duration expressed in text. For each of the four units
// (d, h, m, s) the leftmost occurrence wins; later mentions of the same unit
// are ignored.
func Parse(text string) time.Duration {
	d := firstInt(daysRx, text)
	h := firstInt(hoursRx, text)
	m := firstInt(minutesRx, text)
	s := firstInt(secondsRx, text)
	return time.Duration(d)*24*time.Hour +
		time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second
}

func firstInt(rx *regexp.Regexp, text string) int64 {
	m := rx.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		// Digits too large to fit; treat as absent.
		return 0
	}
	return n
}
