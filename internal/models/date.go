package models

import (
	"bytes"
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// DateLayout is the wire and storage layout of calendar dates.
const DateLayout = "2006-01-02"

// Date is a DATE column that serializes as YYYY-MM-DD.
type Date struct {
	datatypes.Date
}

// NewDate truncates t to its UTC calendar day.
func NewDate(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return Date{datatypes.Date(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return NewDate(t), nil
}

// Time returns midnight UTC of the date.
func (d Date) Time() time.Time {
	y, m, day := time.Time(d.Date).Date()
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

func (d Date) IsZero() bool {
	return time.Time(d.Date).IsZero()
}

func (d Date) String() string {
	return d.Time().Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if parsed, err := ParseDate(s); err == nil {
		*d = parsed
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return err
	}
	*d = NewDate(t)
	return nil
}
