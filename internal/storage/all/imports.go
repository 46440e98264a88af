// Package all wires all built-in storage backends into the storage factory.
//
// This package exists purely for side effects: importing it (even as a blank
// import) runs the init functions of each backend, which register their
// factories and DDL with the storage package. After that the following kinds
// are available to storage.New:
//
//   - "postgres" (internal/storage/postgres)
//   - "sqlite"   (internal/storage/sqlite)
//   - "mssql"    (internal/storage/mssql)
//   - "mysql"    (internal/storage/mysql)
//
// A binary that should support only a subset can import the backend packages
// it needs instead.
package all

import (
	_ "github.com/jrwils/sparkifydb-pg/internal/storage/mssql"
	_ "github.com/jrwils/sparkifydb-pg/internal/storage/mysql"
	_ "github.com/jrwils/sparkifydb-pg/internal/storage/postgres"
	_ "github.com/jrwils/sparkifydb-pg/internal/storage/sqlite"
)
