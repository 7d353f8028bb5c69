package repository

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const ticketColumns = `id, title, description, status, priority, created_by, assigned_to,
       sla_deadline, is_breached, version, created_at, updated_at`

// dialect captures the differences between the SQL backends.
type dialect struct {
	placeholder func(n int) string
	timeValue   func(t time.Time) any
	noLimit     string
	// idSet renders "id is one of" over a single bound id list.
	idSet   func(placeholder string) string
	idValue func(ids []string) any
}

var postgresDialect = dialect{
	placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	timeValue:   func(t time.Time) any { return t },
	noLimit:     "ALL",
	idSet:       func(p string) string { return "id = ANY(" + p + "::text[]::uuid[])" },
	idValue:     func(ids []string) any { return ids },
}

var sqliteDialect = dialect{
	placeholder: func(int) string { return "?" },
	timeValue:   func(t time.Time) any { return formatSQLiteTime(t) },
	noLimit:     "-1",
	idSet:       func(p string) string { return "id IN (SELECT value FROM json_each(" + p + "))" },
	idValue:     jsonIDList,
}

func jsonIDList(ids []string) any {
	if ids == nil {
		ids = []string{}
	}
	encoded, _ := json.Marshal(ids)
	return string(encoded)
}

// queryArgs accumulates positional arguments for one statement.
type queryArgs struct {
	d    dialect
	args []any
}

func (q *queryArgs) add(v any) string {
	q.args = append(q.args, v)
	return q.d.placeholder(len(q.args))
}

func (q *queryArgs) addTime(t time.Time) string {
	return q.add(q.d.timeValue(t))
}

func (q *queryArgs) addList(values []string) string {
	placeholders := make([]string, len(values))
	for i, v := range values {
		placeholders[i] = q.add(v)
	}
	return strings.Join(placeholders, ",")
}

// addIDSet binds ids as one argument so the statement size does not grow
// with the list.
func (q *queryArgs) addIDSet(ids []string) string {
	return q.d.idSet(q.add(q.d.idValue(ids)))
}

// ticketWhere renders the WHERE clause for filter.
func ticketWhere(filter TicketFilter, q *queryArgs) string {
	clauses := []string{"1=1"}

	if len(filter.Statuses) > 0 {
		values := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			values[i] = string(s)
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", q.addList(values)))
	}
	if len(filter.Priorities) > 0 {
		values := make([]string, len(filter.Priorities))
		for i, p := range filter.Priorities {
			values[i] = string(p)
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", q.addList(values)))
	}
	if filter.AssignedTo != nil {
		clauses = append(clauses, fmt.Sprintf("assigned_to=%s", q.add(*filter.AssignedTo)))
	}
	if filter.Breached != nil {
		clauses = append(clauses, fmt.Sprintf("is_breached=%s", q.add(*filter.Breached)))
	}
	if filter.DeadlineBefore != nil {
		clauses = append(clauses, fmt.Sprintf("sla_deadline < %s", q.addTime(*filter.DeadlineBefore)))
	}
	if filter.IDs != nil {
		if len(filter.IDs) == 0 {
			clauses = append(clauses, "1=0")
		} else {
			clauses = append(clauses, q.addIDSet(filter.IDs))
		}
	}
	return strings.Join(clauses, " AND ")
}

// pageClause renders LIMIT/OFFSET. A non-positive limit means no limit.
func pageClause(filter TicketFilter, d dialect) string {
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if filter.Limit <= 0 {
		if offset == 0 {
			return ""
		}
		return fmt.Sprintf(" LIMIT %s OFFSET %d", d.noLimit, offset)
	}
	return fmt.Sprintf(" LIMIT %d OFFSET %d", filter.Limit, offset)
}

// likePattern builds a case-insensitive literal substring pattern for LIKE ... ESCAPE '\'.
// The column side must be folded the same way: LOWER on postgres and
// unicode_lower on sqlite, whose LOWER only folds ASCII.
func likePattern(term string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + replacer.Replace(strings.ToLower(term)) + "%"
}

func groupColumn(field GroupField) (string, error) {
	switch field {
	case GroupByStatus:
		return "status", nil
	case GroupByPriority:
		return "priority", nil
	default:
		return "", fmt.Errorf("unsupported group field %q", field)
	}
}

const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatSQLiteTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func parseSQLiteTime(v string) (time.Time, error) {
	t, err := time.Parse(sqliteTimeLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", v, err)
	}
	return t.UTC(), nil
}
