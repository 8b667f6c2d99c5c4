package security

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
)

func newMockRepo(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewRepository(sqlx.NewDb(db, "postgres")), mock
}

func TestGetBatchMetadata(t *testing.T) {
	repo, mock := newMockRepo(t)

	auditDate := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	passed := "Passed"

	mock.ExpectQuery("SELECT(.|\n)*FROM audit_reports(.|\n)*GROUP BY bridge").
		WithArgs("Hop", "Across", "Wormhole").
		WillReturnRows(sqlmock.NewRows([]string{"bridge", "audit_count", "latest_audit_date", "latest_result"}).
			AddRow("Hop", 2, auditDate, passed).
			AddRow("Across", 1, auditDate, passed))

	mock.ExpectQuery("SELECT(.|\n)*FROM exploit_history(.|\n)*GROUP BY bridge").
		WithArgs("Hop", "Across", "Wormhole").
		WillReturnRows(sqlmock.NewRows([]string{"bridge", "exploit_count", "total_loss"}).
			AddRow("Wormhole", 1, 320000000.0))

	metas, err := repo.GetBatchMetadata(context.Background(), []string{"Hop", "Across", "Wormhole"})
	if err != nil {
		t.Fatalf("batch metadata failed: %v", err)
	}
	if len(metas) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(metas))
	}

	// Input order is preserved.
	if metas[0].Bridge != "Hop" || metas[1].Bridge != "Across" || metas[2].Bridge != "Wormhole" {
		t.Fatalf("input order not preserved: %+v", metas)
	}

	if !metas[0].HasAudit || metas[0].HasExploit {
		t.Errorf("Hop should be audited without exploits: %+v", metas[0])
	}
	if metas[0].LatestAuditResult == nil || *metas[0].LatestAuditResult != "Passed" {
		t.Errorf("Hop latest audit result missing: %+v", metas[0])
	}

	if metas[2].HasAudit {
		t.Errorf("Wormhole has no audits in this fixture: %+v", metas[2])
	}
	if !metas[2].HasExploit || metas[2].ExploitCount != 1 {
		t.Errorf("Wormhole exploit not reflected: %+v", metas[2])
	}
	if metas[2].TotalLossUSD == nil || *metas[2].TotalLossUSD != 320000000.0 {
		t.Errorf("Wormhole loss amount missing: %+v", metas[2])
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestGetBatchMetadataMissingBridgesAreNeutral(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("FROM audit_reports").
		WillReturnRows(sqlmock.NewRows([]string{"bridge", "audit_count", "latest_audit_date", "latest_result"}))
	mock.ExpectQuery("FROM exploit_history").
		WillReturnRows(sqlmock.NewRows([]string{"bridge", "exploit_count", "total_loss"}))

	metas, err := repo.GetBatchMetadata(context.Background(), []string{"Orbiter"})
	if err != nil {
		t.Fatalf("batch metadata failed: %v", err)
	}
	if len(metas) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(metas))
	}
	m := metas[0]
	if m.HasAudit || m.HasExploit || m.ExploitCount != 0 || m.TotalLossUSD != nil {
		t.Errorf("missing bridge should be neutral: %+v", m)
	}
}

func TestGetBatchMetadataEmptyInput(t *testing.T) {
	repo, _ := newMockRepo(t)

	metas, err := repo.GetBatchMetadata(context.Background(), nil)
	if err != nil {
		t.Fatalf("expected no error for empty input, got %v", err)
	}
	if metas != nil {
		t.Errorf("expected nil result for empty input, got %+v", metas)
	}
}

func TestGetAuditReports(t *testing.T) {
	repo, mock := newMockRepo(t)

	auditDate := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT id, bridge, audit_firm(.|\n)*FROM audit_reports").
		WillReturnRows(sqlmock.NewRows([]string{"id", "bridge", "audit_firm", "audit_date", "result", "created_at"}).
			AddRow(1, "Hop", "Trail of Bits", auditDate, "Passed", nil))

	reports, err := repo.GetAuditReports(context.Background())
	if err != nil {
		t.Fatalf("audit reports failed: %v", err)
	}
	if len(reports) != 1 || reports[0].AuditFirm != "Trail of Bits" {
		t.Errorf("unexpected reports: %+v", reports)
	}
}
