package postgres

import (
	"fmt"
	"strings"

	"github.com/2beens/exercisetracker/internal/tracker"
)

// buildLogQuery returns the SQL and args selecting the log entries matching q.
// Exactly one date range clause is added, depending on which bounds are set.
func buildLogQuery(q tracker.LogQuery) (string, []any) {
	var sb strings.Builder
	sb.WriteString(`SELECT description, duration, exercise_date FROM exercises WHERE user_id = $1`)
	args := []any{q.UserID}

	switch q.Range() {
	case tracker.RangeBetween:
		args = append(args, q.From.Time, q.To.Time)
		sb.WriteString(fmt.Sprintf(` AND exercise_date >= $%d AND exercise_date <= $%d`, len(args)-1, len(args)))
	case tracker.RangeFrom:
		args = append(args, q.From.Time)
		sb.WriteString(fmt.Sprintf(` AND exercise_date >= $%d`, len(args)))
	case tracker.RangeTo:
		args = append(args, q.To.Time)
		sb.WriteString(fmt.Sprintf(` AND exercise_date <= $%d`, len(args)))
	}

	sb.WriteString(` ORDER BY id`)

	if q.Limit > 0 {
		args = append(args, q.Limit)
		sb.WriteString(fmt.Sprintf(` LIMIT $%d`, len(args)))
	}

	return sb.String() + ";", args
}
