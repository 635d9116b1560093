package ledger

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/echoapp/echo-rewards/internal/pkg/calendar"
)

// TransactionResponse is the history row sent to clients.
type TransactionResponse struct {
	ID          uuid.UUID `json:"id"`
	Amount      int64     `json:"amount"`
	Type        TxType    `json:"type"`
	Intent      Intent    `json:"intent"`
	Description string    `json:"description"`
	Metadata    Metadata  `json:"metadata,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func TransactionResponseFrom(t CreditTransaction) TransactionResponse {
	return TransactionResponse{
		ID:          t.ID,
		Amount:      t.Amount,
		Type:        t.Type,
		Intent:      t.Intent,
		Description: t.Description,
		Metadata:    t.Metadata,
		CreatedAt:   t.CreatedAt,
	}
}

// HistoryQuery is the parsed query string of the history endpoint.
type HistoryQuery struct {
	Page     int    `json:"page" validate:"gte=0"`
	PageSize int    `json:"page_size" validate:"gte=0,lte=100"`
	Types    string `json:"type"`
	Query    string `json:"q" validate:"max=100"`
	From     string `json:"from" validate:"omitempty,datetime=2006-01-02"`
	To       string `json:"to" validate:"omitempty,datetime=2006-01-02"`
}

// Filter converts the query to a repository filter. Date bounds are whole
// days: From is inclusive, To is inclusive of the whole day.
func (q HistoryQuery) Filter(loc *time.Location) (HistoryFilter, error) {
	filter := HistoryFilter{
		Query:       q.Query,
		Page:        q.Page,
		PageSize:    q.PageSize,
		VisibleOnly: true,
	}

	if q.Types != "" {
		for _, raw := range strings.Split(q.Types, ",") {
			raw = strings.ToUpper(strings.TrimSpace(raw))
			if raw == "" {
				continue
			}
			t, err := ParseTxType(raw)
			if err != nil {
				return HistoryFilter{}, err
			}
			filter.Types = append(filter.Types, t)
		}
	}
	if q.From != "" {
		d, err := calendar.Parse(q.From)
		if err != nil {
			return HistoryFilter{}, err
		}
		from := d.Start(loc)
		filter.From = &from
	}
	if q.To != "" {
		d, err := calendar.Parse(q.To)
		if err != nil {
			return HistoryFilter{}, err
		}
		to := d.AddDays(1).Start(loc)
		filter.To = &to
	}
	return filter, nil
}
