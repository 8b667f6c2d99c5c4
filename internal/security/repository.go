package security

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/wudi/bridgerouter/internal/logging"
)

// Repository reads audit and exploit facts from Postgres.
type Repository struct {
	db *sqlx.DB
}

// NewRepository wraps an open connection pool.
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// GetAuditReports returns all audit reports, newest first.
func (r *Repository) GetAuditReports(ctx context.Context) ([]AuditReport, error) {
	const query = `
		SELECT id, bridge, audit_firm, audit_date, result, created_at
		FROM audit_reports
		ORDER BY audit_date DESC, bridge ASC`

	var reports []AuditReport
	if err := r.db.SelectContext(ctx, &reports, query); err != nil {
		return nil, err
	}
	return reports, nil
}

// GetExploitHistory returns all recorded incidents, newest first.
func (r *Repository) GetExploitHistory(ctx context.Context) ([]ExploitHistory, error) {
	const query = `
		SELECT id, bridge, incident_date, loss_amount, description, created_at
		FROM exploit_history
		ORDER BY incident_date DESC, loss_amount DESC NULLS LAST`

	var exploits []ExploitHistory
	if err := r.db.SelectContext(ctx, &exploits, query); err != nil {
		return nil, err
	}
	return exploits, nil
}

// GetBatchMetadata returns one Metadata per requested bridge, preserving
// input order. Bridges absent from storage get neutral metadata. Two
// aggregate queries run, one per table, then an in-memory join.
func (r *Repository) GetBatchMetadata(ctx context.Context, bridges []string) ([]Metadata, error) {
	if len(bridges) == 0 {
		return nil, nil
	}

	auditQuery, auditArgs, err := sqlx.In(`
		SELECT
			bridge,
			COUNT(*) AS audit_count,
			MAX(audit_date) AS latest_audit_date,
			(SELECT result FROM audit_reports a2
			 WHERE a2.bridge = audit_reports.bridge
			 ORDER BY audit_date DESC
			 LIMIT 1) AS latest_result
		FROM audit_reports
		WHERE bridge IN (?)
		GROUP BY bridge`, bridges)
	if err != nil {
		return nil, err
	}

	type auditRow struct {
		Bridge          string     `db:"bridge"`
		AuditCount      int64      `db:"audit_count"`
		LatestAuditDate *time.Time `db:"latest_audit_date"`
		LatestResult    *string    `db:"latest_result"`
	}
	var auditRows []auditRow
	if err := r.db.SelectContext(ctx, &auditRows, r.db.Rebind(auditQuery), auditArgs...); err != nil {
		return nil, err
	}

	exploitQuery, exploitArgs, err := sqlx.In(`
		SELECT
			bridge,
			COUNT(*) AS exploit_count,
			COALESCE(SUM(loss_amount), 0) AS total_loss
		FROM exploit_history
		WHERE bridge IN (?)
		GROUP BY bridge`, bridges)
	if err != nil {
		return nil, err
	}

	type exploitRow struct {
		Bridge       string  `db:"bridge"`
		ExploitCount int64   `db:"exploit_count"`
		TotalLoss    float64 `db:"total_loss"`
	}
	var exploitRows []exploitRow
	if err := r.db.SelectContext(ctx, &exploitRows, r.db.Rebind(exploitQuery), exploitArgs...); err != nil {
		return nil, err
	}

	audits := make(map[string]auditRow, len(auditRows))
	for _, row := range auditRows {
		audits[row.Bridge] = row
	}
	exploits := make(map[string]exploitRow, len(exploitRows))
	for _, row := range exploitRows {
		exploits[row.Bridge] = row
	}

	out := make([]Metadata, 0, len(bridges))
	for _, bridge := range bridges {
		meta := Neutral(bridge)
		if row, ok := audits[bridge]; ok {
			meta.HasAudit = row.AuditCount > 0
			meta.LatestAuditResult = row.LatestResult
		}
		if row, ok := exploits[bridge]; ok {
			meta.HasExploit = row.ExploitCount > 0
			meta.ExploitCount = int(row.ExploitCount)
			if row.TotalLoss > 0 {
				loss := row.TotalLoss
				meta.TotalLossUSD = &loss
			}
		}
		out = append(out, meta)
	}

	logging.Debug("Fetched bridge security metadata", zap.Int("bridges", len(out)))
	return out, nil
}

// Ping checks database connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
