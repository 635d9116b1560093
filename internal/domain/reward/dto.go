package reward

import (
	"time"

	"github.com/google/uuid"

	"github.com/echoapp/echo-rewards/internal/domain/ledger"
	"github.com/echoapp/echo-rewards/internal/domain/streak"
	"github.com/echoapp/echo-rewards/internal/pkg/calendar"
)

// EventRequest is the body of POST /internal/v1/events.
type EventRequest struct {
	ID        string `json:"id" validate:"required,max=128"`
	Kind      string `json:"kind" validate:"required,oneof=ECHO_SENT ECHO_REPLIED APP_OPENED"`
	UserID    string `json:"user_id" validate:"required,uuid"`
	Sentiment string `json:"sentiment" validate:"omitempty,oneof=POSITIVE NEUTRAL NEGATIVE"`
	Timestamp string `json:"timestamp" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	// Timezone is not validated here: an unknown zone falls back instead of failing the event.
	Timezone string `json:"timezone" validate:"max=64"`
}

func (r EventRequest) toEvent() (DomainEvent, error) {
	kind, err := ParseKind(r.Kind)
	if err != nil {
		return DomainEvent{}, err
	}
	sentiment, err := ParseSentiment(r.Sentiment)
	if err != nil {
		return DomainEvent{}, err
	}
	userID, err := uuid.Parse(r.UserID)
	if err != nil {
		return DomainEvent{}, ErrInvalidEvent
	}
	ts, err := time.Parse(time.RFC3339, r.Timestamp)
	if err != nil {
		return DomainEvent{}, ErrInvalidEvent
	}
	return DomainEvent{
		ID:        r.ID,
		Kind:      kind,
		UserID:    userID,
		Sentiment: sentiment,
		Timestamp: ts,
		Timezone:  r.Timezone,
	}, nil
}

type TransitionResponse struct {
	Kind    streak.Kind    `json:"kind"`
	Outcome streak.Outcome `json:"outcome"`
	Count   int            `json:"count"`
	Cycle   int            `json:"cycle"`
}

type GrantResponse struct {
	Type      ledger.TxType `json:"type"`
	Amount    int64         `json:"amount"`
	RelatedID string        `json:"related_id"`
}

type EventResponse struct {
	EventID     string               `json:"event_id"`
	LocalDate   calendar.Date        `json:"local_date"`
	Transitions []TransitionResponse `json:"transitions"`
	Grants      []GrantResponse      `json:"grants"`
	Credits     int64                `json:"credits"`
	Dropped     bool                 `json:"dropped,omitempty"`
	Replayed    bool                 `json:"replayed,omitempty"`
}

func EventResponseFrom(r *Result) EventResponse {
	out := EventResponse{
		EventID:     r.EventID,
		LocalDate:   r.LocalDate,
		Transitions: make([]TransitionResponse, 0, len(r.Transitions)),
		Grants:      make([]GrantResponse, 0, len(r.Granted)),
		Credits:     r.Credits(),
		Dropped:     r.Dropped,
		Replayed:    r.Replayed,
	}
	for _, tr := range r.Transitions {
		out.Transitions = append(out.Transitions, TransitionResponse{
			Kind: tr.Kind, Outcome: tr.Outcome, Count: tr.After.Count, Cycle: tr.After.Cycle,
		})
	}
	for _, tx := range r.Granted {
		out.Grants = append(out.Grants, GrantResponse{Type: tx.Type, Amount: tx.Amount, RelatedID: tx.Related()})
	}
	return out
}
