package postgres

import (
	"fmt"
	"strings"

	"github.com/alanyoungcy/lottobet/internal/domain"
)

// listQuery accumulates a SELECT with positional arguments.
type listQuery struct {
	sb   strings.Builder
	args []any
}

func newListQuery(base string, args ...any) *listQuery {
	q := &listQuery{args: args}
	q.sb.WriteString(base)
	return q
}

// where appends "AND <col> <op> $n".
func (q *listQuery) where(col, op string, v any) {
	q.args = append(q.args, v)
	fmt.Fprintf(&q.sb, " AND %s %s $%d", col, op, len(q.args))
}

// window applies the time range, ordering and paging of opts on timeCol.
func (q *listQuery) window(timeCol string, opts domain.ListOpts) {
	if opts.Since != nil {
		q.where(timeCol, ">=", *opts.Since)
	}
	if opts.Until != nil {
		q.where(timeCol, "<=", *opts.Until)
	}
	fmt.Fprintf(&q.sb, " ORDER BY %s DESC", timeCol)
	if opts.Limit > 0 {
		q.args = append(q.args, opts.Limit)
		fmt.Fprintf(&q.sb, " LIMIT $%d", len(q.args))
	}
	if opts.Offset > 0 {
		q.args = append(q.args, opts.Offset)
		fmt.Fprintf(&q.sb, " OFFSET $%d", len(q.args))
	}
}

func (q *listQuery) String() string { return q.sb.String() }
