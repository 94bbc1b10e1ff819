package local

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/julianstephens/habitual/internal/constants"
)

// timeLayout is fixed width so TEXT columns sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// timeValue scans a timestamp stored as TEXT (SQLite) or TIMESTAMPTZ (PostgreSQL).
type timeValue struct {
	Time  time.Time
	Valid bool
}

var _ sql.Scanner = (*timeValue)(nil)

func (v *timeValue) Scan(src any) error {
	switch s := src.(type) {
	case nil:
		*v = timeValue{}
		return nil
	case time.Time:
		*v = timeValue{Time: s.UTC(), Valid: true}
		return nil
	case string:
		return v.parse(s)
	case []byte:
		return v.parse(string(s))
	default:
		return fmt.Errorf("cannot scan %T into timestamp", src)
	}
}

func (v *timeValue) parse(s string) error {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	*v = timeValue{Time: t.UTC(), Valid: true}
	return nil
}

func (v timeValue) ptr() *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

// dateValue scans a calendar date stored as TEXT or DATE into YYYY-MM-DD.
type dateValue string

func (d *dateValue) Scan(src any) error {
	switch s := src.(type) {
	case time.Time:
		*d = dateValue(s.Format(constants.DateFormat))
	case string:
		*d = dateValue(s)
	case []byte:
		*d = dateValue(s)
	default:
		return fmt.Errorf("cannot scan %T into date", src)
	}
	return nil
}
