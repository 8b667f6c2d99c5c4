// Package security reads bridge audit and exploit metadata from Postgres.
// The data is read-only here; an out-of-band pipeline maintains it.
package security

import "time"

// AuditReport is one third-party audit of a bridge protocol.
type AuditReport struct {
	ID        int        `db:"id" json:"id"`
	Bridge    string     `db:"bridge" json:"bridge"`
	AuditFirm string     `db:"audit_firm" json:"audit_firm"`
	AuditDate time.Time  `db:"audit_date" json:"audit_date"`
	Result    string     `db:"result" json:"result"`
	CreatedAt *time.Time `db:"created_at" json:"created_at,omitempty"`
}

// ExploitHistory is one recorded incident against a bridge.
type ExploitHistory struct {
	ID           int        `db:"id" json:"id"`
	Bridge       string     `db:"bridge" json:"bridge"`
	IncidentDate time.Time  `db:"incident_date" json:"incident_date"`
	LossAmount   *float64   `db:"loss_amount" json:"loss_amount"`
	Description  string     `db:"description" json:"description"`
	CreatedAt    *time.Time `db:"created_at" json:"created_at,omitempty"`
}

// Metadata is the per-bridge summary the scorer consumes.
type Metadata struct {
	Bridge            string   `json:"bridge"`
	HasAudit          bool     `json:"has_audit"`
	HasExploit        bool     `json:"has_exploit"`
	LatestAuditResult *string  `json:"latest_audit_result,omitempty"`
	ExploitCount      int      `json:"exploit_count"`
	TotalLossUSD      *float64 `json:"total_loss_usd,omitempty"`
}

// Neutral returns the default metadata for a bridge absent from storage.
func Neutral(bridge string) Metadata {
	return Metadata{Bridge: bridge}
}
