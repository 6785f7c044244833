package directory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/iland112/local-pkd-sub001/core"
	"github.com/iland112/local-pkd-sub001/trust"
)

// SQLClient is a core.DirectoryClient backed by the same
// trust.ContextExecutor capability interface trust.SQLStore uses
// (spec §6 leaves the directory's transport undefined beyond
// Add/idempotent-exists; this implementation stores published
// entries as rows rather than speaking LDAP wire protocol, letting
// one borp.DbMap serve both the trust store and the directory).
type SQLClient struct {
	db trust.ContextExecutor
}

type directoryEntryModel struct {
	DN         string `db:"dn"`
	Attributes string `db:"attributes_json"`
}

// NewSQLClient wraps an already-connected borp.DbMap (or equivalent).
func NewSQLClient(db trust.ContextExecutor) *SQLClient {
	return &SQLClient{db: db}
}

// Add implements core.DirectoryClient.
func (c *SQLClient) Add(ctx context.Context, entry core.DirectoryEntry) error {
	exec := c.db.WithContext(ctx)

	var existing directoryEntryModel
	err := exec.SelectOne(&existing, "SELECT dn, attributes_json FROM directory_entries WHERE dn = ?", entry.DN)
	if err == nil {
		return &core.ErrEntryExists{DN: entry.DN}
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	attrs, err := json.Marshal(entry.Attributes)
	if err != nil {
		return err
	}
	return exec.Insert(&directoryEntryModel{DN: entry.DN, Attributes: string(attrs)})
}
