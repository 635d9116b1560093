package activity

import (
	"fmt"
	"strings"
)

// Action is a counted user action.
type Action string

const (
	ActionEchoSent    Action = "ECHO_SENT"
	ActionEchoReplied Action = "ECHO_REPLIED"
	ActionAppOpened   Action = "APP_OPENED"
)

func ParseAction(s string) (Action, error) {
	a := Action(strings.ToUpper(strings.TrimSpace(s)))
	if !a.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
	}
	return a, nil
}

func (a Action) Valid() bool {
	switch a {
	case ActionEchoSent, ActionEchoReplied, ActionAppOpened:
		return true
	}
	return false
}
