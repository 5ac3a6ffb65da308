package pg

import (
	"context"
	"database/sql"

	"auditdesk.org/internal/audit"
)

type auditStore struct{ q querier }

func (s auditStore) Append(ctx context.Context, rec *audit.Record) error {
	_, err := s.q.ExecContext(ctx, `
		insert into audit_logs (id, action, performed_by, performed_at, target_resource)
		values ($1, $2, $3, $4, $5)
	`, rec.ID, string(rec.Action), rec.PerformedBy, rec.PerformedAt, rec.TargetResource)
	return mapErr(err)
}

func (s auditStore) List(ctx context.Context, limit, offset int) ([]*audit.Record, error) {
	var lim sql.NullInt64
	if limit > 0 {
		lim = sql.NullInt64{Int64: int64(limit), Valid: true}
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.q.QueryContext(ctx, `
		select id, action, performed_by, performed_at, target_resource, deleted_at
		from audit_logs
		where deleted_at is null
		order by performed_at desc, id desc
		limit $1 offset $2
	`, lim, offset)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	out := []*audit.Record{}
	for rows.Next() {
		var (
			rec     audit.Record
			action  string
			deleted sql.NullTime
		)
		if err := rows.Scan(&rec.ID, &action, &rec.PerformedBy, &rec.PerformedAt, &rec.TargetResource, &deleted); err != nil {
			return nil, err
		}
		rec.Action = audit.Action(action)
		if deleted.Valid {
			t := deleted.Time.UTC()
			rec.DeletedAt = &t
		}
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
