package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/table-reservation/internal/model"
)

// DefaultQueryTimeout bounds a single repository call.
const DefaultQueryTimeout = 5 * time.Second

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = DefaultQueryTimeout
	}
	return context.WithTimeout(ctx, d)
}

// placeholders returns "?, ?, ?" for n values.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// idArgs converts ids into query arguments.
func idArgs(ids []uuid.UUID) []interface{} {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id.String()
	}
	return args
}

// pairInClause builds "(resource_id, slot_id) IN ((?, ?), ...)" and its
// arguments.  Column names are prefixed with alias when given.
func pairInClause(alias string, pairs []model.Pair) (string, []interface{}) {
	prefix := ""
	if alias != "" {
		prefix = alias + "."
	}
	tuples := make([]string, len(pairs))
	args := make([]interface{}, 0, len(pairs)*2)
	for i, p := range pairs {
		tuples[i] = "(?, ?)"
		args = append(args, p.ResourceID.String(), p.SlotID.String())
	}
	clause := "(" + prefix + "resource_id, " + prefix + "slot_id) IN (" + strings.Join(tuples, ", ") + ")"
	return clause, args
}

// activeLinesQuery builds the conflict lookup for pairs on date.
func activeLinesQuery(pairs []model.Pair, date model.Date, exclude *uuid.UUID) (string, []interface{}) {
	in, pairArgs := pairInClause("", pairs)
	q := `SELECT resource_id, slot_id FROM reservation_lines WHERE active = 1 AND date = ? AND ` + in
	args := append([]interface{}{date.String()}, pairArgs...)
	if exclude != nil {
		q += ` AND reservation_id <> ?`
		args = append(args, exclude.String())
	}
	return q, args
}
