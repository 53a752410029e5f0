// Package database provides SQLite connectivity for Ashara Core.
//
// This package manages:
//   - Opening the database file with WAL mode and a busy timeout
//   - Versioned schema migrations read from an fs.FS
//   - Transaction helpers and health checks
//
// Security Considerations:
//   - All queries use parameterised statements
//   - The database file is chmod 0600
//   - Credentials and tokens are stored hashed, never in plaintext
//
// Usage:
//
//	db, err := database.Open(ctx, cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with an
// optional matching .down.sql. New columns must be nullable or carry a
// default so older binaries keep working against a newer schema.
package database
