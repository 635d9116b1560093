package reward

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/echoapp/echo-rewards/internal/domain/activity"
	"github.com/echoapp/echo-rewards/internal/domain/ledger"
	"github.com/echoapp/echo-rewards/internal/domain/seasonal"
	"github.com/echoapp/echo-rewards/internal/domain/streak"
	"github.com/echoapp/echo-rewards/internal/pkg/calendar"
)

// Kind is the type of domain event the messaging and session layers report.
type Kind string

const (
	KindEchoSent    Kind = "ECHO_SENT"
	KindEchoReplied Kind = "ECHO_REPLIED"
	KindAppOpened   Kind = "APP_OPENED"
)

func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToUpper(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidEvent, s)
	}
	return k, nil
}

func (k Kind) Valid() bool {
	switch k {
	case KindEchoSent, KindEchoReplied, KindAppOpened:
		return true
	}
	return false
}

// Action is the activity counter this kind bumps.
func (k Kind) Action() activity.Action {
	switch k {
	case KindEchoSent:
		return activity.ActionEchoSent
	case KindEchoReplied:
		return activity.ActionEchoReplied
	case KindAppOpened:
		return activity.ActionAppOpened
	}
	return ""
}

// Sentiment of an echo as classified upstream.
type Sentiment string

const (
	SentimentPositive Sentiment = "POSITIVE"
	SentimentNeutral  Sentiment = "NEUTRAL"
	SentimentNegative Sentiment = "NEGATIVE"
)

func ParseSentiment(s string) (Sentiment, error) {
	if strings.TrimSpace(s) == "" {
		return "", nil
	}
	v := Sentiment(strings.ToUpper(strings.TrimSpace(s)))
	if !v.Valid() {
		return "", fmt.Errorf("%w: unknown sentiment %q", ErrInvalidEvent, s)
	}
	return v, nil
}

func (s Sentiment) Valid() bool {
	switch s {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
		return true
	}
	return false
}

// DomainEvent is one reportable user action. ID is the caller's stable id
// for the action; replays must reuse it.
type DomainEvent struct {
	ID        string
	Kind      Kind
	UserID    uuid.UUID
	Sentiment Sentiment
	Timestamp time.Time
	Timezone  string
}

func (e DomainEvent) Validate() error {
	switch {
	case strings.TrimSpace(e.ID) == "":
		return fmt.Errorf("%w: missing id", ErrInvalidEvent)
	case !e.Kind.Valid():
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidEvent, e.Kind)
	case e.UserID == uuid.Nil:
		return fmt.Errorf("%w: missing user id", ErrInvalidEvent)
	case e.Timestamp.IsZero():
		return fmt.Errorf("%w: missing timestamp", ErrInvalidEvent)
	case e.Sentiment != "" && !e.Sentiment.Valid():
		return fmt.Errorf("%w: unknown sentiment %q", ErrInvalidEvent, e.Sentiment)
	}
	return nil
}

// positive reports whether an echo counts toward kindness.
func (e DomainEvent) positive() bool {
	return e.Kind == KindEchoSent && e.Sentiment == SentimentPositive
}

// streakKinds maps the event to the tracks it touches.
func (e DomainEvent) streakKinds() []streak.Kind {
	switch {
	case e.Kind == KindAppOpened:
		return []streak.Kind{streak.KindPresence}
	case e.positive():
		return []streak.Kind{streak.KindKindness}
	case e.Kind == KindEchoReplied:
		return []streak.Kind{streak.KindResponse}
	}
	return nil
}

// ruleTypes maps the event to seasonal rule types. An app open only counts
// as a comeback when it reset a presence streak the user already had.
func (e DomainEvent) ruleTypes(transitions []streak.Transition) []seasonal.RuleType {
	switch {
	case e.positive():
		return []seasonal.RuleType{seasonal.RuleSendPositive}
	case e.Kind == KindEchoReplied:
		return []seasonal.RuleType{seasonal.RuleRespond}
	case e.Kind == KindAppOpened:
		for _, tr := range transitions {
			if tr.Kind == streak.KindPresence && tr.Outcome == streak.OutcomeReset {
				return []seasonal.RuleType{seasonal.RuleComeback}
			}
		}
	}
	return nil
}

// Result describes what one Handle call did.
type Result struct {
	EventID     string
	LocalDate   calendar.Date
	Transitions []streak.Transition
	Granted     []ledger.CreditTransaction
	// Dropped is set when reward bookkeeping failed twice and was given up.
	Dropped bool
	// Replayed is set when the event id was already processed for the user.
	Replayed bool
}

// Credits is the total granted by this call.
func (r *Result) Credits() int64 {
	var sum int64
	for _, tx := range r.Granted {
		sum += tx.Amount
	}
	return sum
}
