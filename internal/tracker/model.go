package tracker

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// DateLayout is the only accepted calendar date format, on write and on query.
const DateLayout = "2006-01-02"

// Date is a calendar date without time of day, always held as UTC midnight.
type Date struct {
	time.Time
}

func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return NewDate(t), nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

type User struct {
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type Exercise struct {
	UserID      string `json:"userId"`
	Description string `json:"description"`
	Duration    int    `json:"duration"`
	Date        Date   `json:"date"`
}

// LogEntry is an exercise as it appears in a user's log.
type LogEntry struct {
	Description string `json:"description"`
	Duration    int    `json:"duration"`
	Date        Date   `json:"date"`
}

type ExerciseLog struct {
	UserID string     `json:"_id"`
	Count  int        `json:"count"`
	Logs   []LogEntry `json:"logs"`
}

func NewExerciseLog(userID string, logs []LogEntry) *ExerciseLog {
	if logs == nil {
		logs = []LogEntry{}
	}
	return &ExerciseLog{
		UserID: userID,
		Count:  len(logs),
		Logs:   logs,
	}
}

// LogQuery filters a user's exercises. From and To are inclusive, a zero Limit means no limit.
type LogQuery struct {
	UserID string
	From   *Date
	To     *Date
	Limit  int
}

// RangeKind tells which single date range clause applies to a LogQuery.
type RangeKind int

const (
	RangeNone RangeKind = iota
	RangeBetween
	RangeFrom
	RangeTo
)

func (q LogQuery) Range() RangeKind {
	switch {
	case q.From != nil && q.To != nil:
		return RangeBetween
	case q.From != nil:
		return RangeFrom
	case q.To != nil:
		return RangeTo
	default:
		return RangeNone
	}
}
