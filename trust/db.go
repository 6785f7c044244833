// Package trust provides TrustStoreRepository implementations: a
// borp/MySQL-backed SQLStore for production use, and an in-memory
// MemStore for tests and the CLI's standalone mode.
//
// The capability-interface split (OneSelector/Selector/Inserter/Execer)
// is grounded on the teacher's db/mocks.go, adapted from
// gopkg.in/go-gorp/gorp.v2 to github.com/letsencrypt/borp (the fork
// actually listed in the teacher's go.mod).
package trust

import "database/sql"

// OneSelector is anything providing borp's SelectOne.
type OneSelector interface {
	SelectOne(holder interface{}, query string, args ...interface{}) error
}

// Selector is anything providing borp's Select.
type Selector interface {
	Select(holder interface{}, query string, args ...interface{}) ([]interface{}, error)
}

// Inserter is anything providing borp's Insert.
type Inserter interface {
	Insert(list ...interface{}) error
}

// Execer is anything providing borp's Exec.
type Execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
}

// SqlExecutor is the subset of *borp.DbMap / *borp.Transaction the SQL
// store needs: enough to select, insert, and exec raw SQL without
// depending on borp's full surface in this package's signatures.
type SqlExecutor interface {
	OneSelector
	Selector
	Inserter
	Execer
}
