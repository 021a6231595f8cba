package model

import (
	"errors"
	"fmt"

	"github.com/robertof/go-miband-heartrate/device"
)

type Outcome string

const (
	OutcomeAccepted  Outcome = "accepted"
	OutcomeFiltered  Outcome = "filtered"
	OutcomeMalformed Outcome = "malformed"
	OutcomeNoReading Outcome = "no_reading"
)

var AllOutcomes = []Outcome{OutcomeAccepted, OutcomeFiltered, OutcomeMalformed, OutcomeNoReading}

// Result is the outcome of decoding one advertisement.
type Result struct {
	Advertisement device.Advertisement
	Reading       device.Reading
	Error         error
}

func (c Result) Accepted() bool {
	return c.Error == nil
}

func (c Result) Outcome() Outcome {
	switch {
	case c.Error == nil:
		return OutcomeAccepted
	case errors.Is(c.Error, device.ErrFilteredOut):
		return OutcomeFiltered
	case errors.Is(c.Error, device.ErrNoReading):
		return OutcomeNoReading
	default:
		return OutcomeMalformed
	}
}

func (c Result) String() string {
	if c.Error != nil {
		return fmt.Sprintf("result:%v(%v)", c.Outcome(), c.Error)
	} else {
		return fmt.Sprintf("result:success(%v)", c.Reading)
	}
}
