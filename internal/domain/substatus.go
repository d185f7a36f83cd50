package domain

import (
	"fmt"
	"strings"
)

// Substatus is the lifecycle stage of a bulk operation.
type Substatus int

const (
	SubstatusUnspecified Substatus = iota
	SubstatusPending
	SubstatusInitializingItems
	SubstatusProcessing
	SubstatusSuccess
	SubstatusCanceled
	SubstatusFailure
)

var substatusNames = map[Substatus]string{
	SubstatusPending:           "PENDING",
	SubstatusInitializingItems: "INITIALIZING_ITEMS",
	SubstatusProcessing:        "PROCESSING",
	SubstatusSuccess:           "SUCCESS",
	SubstatusCanceled:          "CANCELED",
	SubstatusFailure:           "FAILURE",
}

func (s Substatus) String() string {
	if name, ok := substatusNames[s]; ok {
		return name
	}
	return ""
}

// ParseSubstatus accepts the wire names case-insensitively. An empty string
// parses to SubstatusUnspecified.
func ParseSubstatus(value string) (Substatus, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return SubstatusUnspecified, nil
	}
	for s, name := range substatusNames {
		if strings.EqualFold(name, value) {
			return s, nil
		}
	}
	return SubstatusUnspecified, fmt.Errorf("unknown bulk operation substatus %q", value)
}

func (s Substatus) MarshalText() ([]byte, error) {
	if s == SubstatusUnspecified {
		return []byte{}, nil
	}
	name, ok := substatusNames[s]
	if !ok {
		return nil, fmt.Errorf("invalid bulk operation substatus %d", int(s))
	}
	return []byte(name), nil
}

// UnmarshalText decodes names this service does not know as
// SubstatusUnspecified so newer upstream stages never break a decode.
func (s *Substatus) UnmarshalText(text []byte) error {
	parsed, err := ParseSubstatus(string(text))
	if err != nil {
		parsed = SubstatusUnspecified
	}
	*s = parsed
	return nil
}

// IsTerminal reports whether no further transitions are possible.
func (s Substatus) IsTerminal() bool {
	switch s {
	case SubstatusSuccess, SubstatusCanceled, SubstatusFailure:
		return true
	case SubstatusUnspecified, SubstatusPending, SubstatusInitializingItems, SubstatusProcessing:
		return false
	default:
		return false
	}
}

// CanTransitionTo reports whether moving from s to next keeps the lifecycle
// moving forward. CANCELED and FAILURE are reachable from any live stage.
func (s Substatus) CanTransitionTo(next Substatus) bool {
	if s.IsTerminal() {
		return false
	}
	switch next {
	case SubstatusCanceled, SubstatusFailure:
		return true
	case SubstatusPending:
		return s == SubstatusUnspecified
	case SubstatusInitializingItems:
		return s == SubstatusUnspecified || s == SubstatusPending
	case SubstatusProcessing:
		return s == SubstatusUnspecified || s == SubstatusPending || s == SubstatusInitializingItems
	case SubstatusSuccess:
		return s == SubstatusProcessing
	case SubstatusUnspecified:
		return false
	default:
		return false
	}
}
