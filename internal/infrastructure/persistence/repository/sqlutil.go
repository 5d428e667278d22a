package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
)

// timeLayout is fixed-width so stored timestamps sort lexically
const timeLayout = "2006-01-02 15:04:05.000000000-07:00"

// sq builds SQLite statements with ? placeholders
var sq = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question)

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatDate(t time.Time) string {
	return t.Format(time.DateOnly)
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func nullableString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

// encodeJSON stores slices and structs in TEXT columns
func encodeJSON(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode json column: %w", err)
	}
	return string(b), nil
}

func decodeStrings(raw string) ([]string, error) {
	out := []string{}
	if raw == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode json column: %w", err)
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}
