// Package postgres implements the store contracts on PostgreSQL through
// database/sql and the pgx driver. Each store takes a store.DBTX, so it can
// run on the pool or inside a transaction; Transactor binds all of them to
// one transaction for a unit of work. The schema is embedded as goose
// migrations, and database errors are mapped to store errors by MapError.
package postgres
