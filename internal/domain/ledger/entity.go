package ledger

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TxType is the closed set of credit transaction types.
type TxType string

const (
	TxTypeReferral        TxType = "REFERRAL"
	TxTypePurchase        TxType = "PURCHASE"
	TxTypeStreakReward    TxType = "STREAK_REWARD"
	TxTypeSeasonReward    TxType = "SEASON_REWARD"
	TxTypeMilestoneReward TxType = "MILESTONE_REWARD"
	TxTypeSignupBonus     TxType = "SIGNUP_BONUS"
	TxTypeAdminGrant      TxType = "ADMIN_GRANT"
	TxTypeSpend           TxType = "SPEND"
	TxTypeRefund          TxType = "REFUND"
	TxTypeAdjustment      TxType = "ADJUSTMENT"
)

// AllTxTypes lists every known type in display order.
var AllTxTypes = []TxType{
	TxTypeReferral,
	TxTypePurchase,
	TxTypeStreakReward,
	TxTypeSeasonReward,
	TxTypeMilestoneReward,
	TxTypeSignupBonus,
	TxTypeAdminGrant,
	TxTypeSpend,
	TxTypeRefund,
	TxTypeAdjustment,
}

// ParseTxType rejects values outside the closed set.
func ParseTxType(s string) (TxType, error) {
	t := TxType(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownTxType, s)
	}
	return t, nil
}

func (t TxType) Valid() bool {
	switch t {
	case TxTypeReferral, TxTypePurchase, TxTypeStreakReward, TxTypeSeasonReward,
		TxTypeMilestoneReward, TxTypeSignupBonus, TxTypeAdminGrant, TxTypeSpend,
		TxTypeRefund, TxTypeAdjustment:
		return true
	}
	return false
}

// DefaultIntent is the intent a transaction of this type carries unless the
// caller overrides it.
func (t TxType) DefaultIntent() Intent {
	switch t {
	case TxTypeReferral, TxTypeStreakReward, TxTypeSeasonReward, TxTypeMilestoneReward,
		TxTypeSignupBonus, TxTypeAdminGrant:
		return IntentReward
	case TxTypeSpend:
		return IntentSpend
	case TxTypePurchase, TxTypeRefund, TxTypeAdjustment:
		return IntentLog
	}
	return IntentLog
}

// Description is the fallback history label.
func (t TxType) Description() string {
	switch t {
	case TxTypeReferral:
		return "Referral bonus"
	case TxTypePurchase:
		return "Credit purchase"
	case TxTypeStreakReward:
		return "Streak reward"
	case TxTypeSeasonReward:
		return "Seasonal bonus"
	case TxTypeMilestoneReward:
		return "Milestone reward"
	case TxTypeSignupBonus:
		return "Welcome bonus"
	case TxTypeAdminGrant:
		return "Credits granted"
	case TxTypeSpend:
		return "Credits spent"
	case TxTypeRefund:
		return "Refund"
	case TxTypeAdjustment:
		return "Balance adjustment"
	}
	return "Credit balance change"
}

func (t *TxType) Scan(src interface{}) error {
	s, err := scanString(src)
	if err != nil {
		return err
	}
	parsed, err := ParseTxType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Visibility controls whether a row shows in the user-facing history.
type Visibility string

const (
	VisibilityVisible  Visibility = "VISIBLE"
	VisibilityInternal Visibility = "INTERNAL"
)

func (v Visibility) Valid() bool {
	return v == VisibilityVisible || v == VisibilityInternal
}

func (v *Visibility) Scan(src interface{}) error {
	s, err := scanString(src)
	if err != nil {
		return err
	}
	vis := Visibility(s)
	if !vis.Valid() {
		return fmt.Errorf("ledger: unknown visibility %q", s)
	}
	*v = vis
	return nil
}

// Intent classifies what a transaction means for the user.
type Intent string

const (
	IntentReward Intent = "REWARD"
	IntentSpend  Intent = "SPEND"
	IntentLog    Intent = "LOG"
)

func (i Intent) Valid() bool {
	return i == IntentReward || i == IntentSpend || i == IntentLog
}

func (i *Intent) Scan(src interface{}) error {
	s, err := scanString(src)
	if err != nil {
		return err
	}
	in := Intent(s)
	if !in.Valid() {
		return fmt.Errorf("ledger: unknown intent %q", s)
	}
	*i = in
	return nil
}

// Metadata is an opaque JSON payload explaining why a row exists.
type Metadata map[string]interface{}

func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func (m *Metadata) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*m = Metadata{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("ledger: cannot scan %T into Metadata", src)
	}
	out := Metadata{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	*m = out
	return nil
}

// CreditTransaction is an immutable ledger row.
type CreditTransaction struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	UserID      uuid.UUID  `db:"user_id" json:"user_id"`
	Amount      int64      `db:"amount" json:"amount"`
	Type        TxType     `db:"tx_type" json:"type"`
	Visibility  Visibility `db:"visibility" json:"visibility"`
	Intent      Intent     `db:"intent" json:"intent"`
	RelatedID   *string    `db:"related_id" json:"related_id,omitempty"`
	Description string     `db:"description" json:"description"`
	Metadata    Metadata   `db:"metadata" json:"metadata,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// Related returns the related id or "".
func (t *CreditTransaction) Related() string {
	if t.RelatedID == nil {
		return ""
	}
	return *t.RelatedID
}

// Normalize fills defaults and checks the row before it is written.
func (t *CreditTransaction) Normalize() error {
	if t.UserID == uuid.Nil {
		return ErrInvalidUser
	}
	if !t.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownTxType, t.Type)
	}
	if t.Amount == 0 {
		return ErrInvalidAmount
	}
	if t.Intent == "" {
		t.Intent = t.Type.DefaultIntent()
	}
	if !t.Intent.Valid() {
		return fmt.Errorf("ledger: unknown intent %q", t.Intent)
	}
	if t.Intent == IntentReward && t.Amount < 0 {
		return ErrInvalidAmount
	}
	if t.Intent == IntentSpend && t.Amount > 0 {
		return ErrInvalidAmount
	}
	if t.Visibility == "" {
		t.Visibility = VisibilityVisible
	}
	if !t.Visibility.Valid() {
		return fmt.Errorf("ledger: unknown visibility %q", t.Visibility)
	}
	if t.RelatedID != nil && *t.RelatedID == "" {
		t.RelatedID = nil
	}
	if t.Intent == IntentReward && t.RelatedID == nil {
		return ErrMissingRelatedID
	}
	if t.Description == "" {
		t.Description = t.Type.Description()
	}
	if t.Metadata == nil {
		t.Metadata = Metadata{}
	}
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	return nil
}

// HistoryFilter drives the paginated history read.
type HistoryFilter struct {
	Types       []TxType
	Query       string
	From        *time.Time
	To          *time.Time
	VisibleOnly bool
	Page        int
	PageSize    int
}

// HistoryPage is one page of history plus the unpaginated total.
type HistoryPage struct {
	Items    []CreditTransaction
	Total    int
	Page     int
	PageSize int
}

// Reconciliation reports one balance check.
type Reconciliation struct {
	UserID   uuid.UUID `json:"user_id"`
	Cached   int64     `json:"cached_balance"`
	Ledger   int64     `json:"ledger_balance"`
	Repaired bool      `json:"repaired"`
}

// RelatedID is a convenience for building a *string related id.
func RelatedID(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func scanString(src interface{}) (string, error) {
	switch v := src.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return "", fmt.Errorf("ledger: cannot scan %T into string enum", src)
	}
}
