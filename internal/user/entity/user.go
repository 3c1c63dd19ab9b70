package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// User is a person identified by a Slack account. Rows are created lazily on
// first interaction and never deleted.
type User struct {
	ID          string      `db:"id" json:"id"`
	SlackUserID string      `db:"slack_user_id" json:"slackUserId"`
	Name        string      `db:"name" json:"name"`
	Email       *string     `db:"email" json:"email,omitempty"`
	Preferences Preferences `db:"preferences" json:"preferences"`
	TeamID      *string     `db:"team_id" json:"teamId,omitempty"`
	CreatedAt   time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time   `db:"updated_at" json:"updatedAt"`
}

// Preferences is an opaque key/value mapping stored as JSONB.
type Preferences map[string]any

// Value implements driver.Valuer. A nil map is stored as '{}'.
func (p Preferences) Value() (driver.Value, error) {
	if p == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(map[string]any(p))
	if err != nil {
		return nil, fmt.Errorf("marshal preferences: %w", err)
	}
	return b, nil
}

// Scan implements sql.Scanner.
func (p *Preferences) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*p = Preferences{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("preferences: unsupported type %T", src)
	}
	m := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &m); err != nil {
			return fmt.Errorf("unmarshal preferences: %w", err)
		}
	}
	*p = m
	return nil
}

// Merge returns a copy of p with every key of other applied on top.
// A nil value in other removes the key.
func (p Preferences) Merge(other Preferences) Preferences {
	out := make(Preferences, len(p)+len(other))
	for k, v := range p {
		out[k] = v
	}
	for k, v := range other {
		if v == nil {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	return out
}
