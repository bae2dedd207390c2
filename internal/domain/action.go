// Package domain defines core data structures used throughout the trading agent.
package domain

import (
	"fmt"
	"strings"
)

// Action trading intent produced by the decision source.
type Action int

const (
	// ActionDoNothing keep the current state.
	ActionDoNothing Action = iota
	// ActionOpenLong buy to open a long position.
	ActionOpenLong
	// ActionOpenShort sell to open a short position.
	ActionOpenShort
	// ActionClosePosition flatten the held position in the symbol.
	ActionClosePosition
)

// action string constants as they appear on the wire
const (
	actionStringDoNothing     = "DO_NOTHING"
	actionStringOpenLong      = "OPEN_LONG"
	actionStringOpenShort     = "OPEN_SHORT"
	actionStringClosePosition = "CLOSE_POSITION"
)

// ParseAction maps wire spellings ("OPEN_LONG", "open long", "open-long") to an Action.
func ParseAction(s string) (Action, error) {
	normalized := strings.ToUpper(strings.TrimSpace(s))
	normalized = strings.NewReplacer(" ", "_", "-", "_").Replace(normalized)

	switch normalized {
	case actionStringOpenLong:
		return ActionOpenLong, nil
	case actionStringOpenShort:
		return ActionOpenShort, nil
	case actionStringClosePosition, "CLOSE":
		return ActionClosePosition, nil
	case actionStringDoNothing, "HOLD", "NONE":
		return ActionDoNothing, nil
	}
	return ActionDoNothing, fmt.Errorf("unknown action: %q", s)
}

// String returns the wire representation of the action.
func (a Action) String() string {
	switch a {
	case ActionOpenLong:
		return actionStringOpenLong
	case ActionOpenShort:
		return actionStringOpenShort
	case ActionClosePosition:
		return actionStringClosePosition
	case ActionDoNothing:
		return actionStringDoNothing
	default:
		return "UNKNOWN"
	}
}

// IsOpen reports whether the action opens a new position.
func (a Action) IsOpen() bool {
	return a == ActionOpenLong || a == ActionOpenShort
}

// MarshalText implements encoding.TextMarshaler.
func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Action) UnmarshalText(text []byte) error {
	parsed, err := ParseAction(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
