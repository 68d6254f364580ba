// Package postgres is the SQL persistence layer of jwtauthd: users, posts,
// and the outstanding/blacklisted token tables.
//
// Repositories take a [DBTX] so they run against *sql.DB or inside a
// transaction opened by [WithTx]. Schema changes are goose migrations
// embedded from the migrations directory and applied by [Migrate].
//
// Query errors are wrapped as "db error: %w". TokenStore additionally wraps
// them with blacklist.ErrUnavailable so the engine reports a backend outage.
package postgres
