// Package migration applies versioned SQL migrations to a SQLite database.
//
// Migrations are read from an fs.FS (usually an embed.FS compiled into the
// binary) and must be named {version}_{description}.sql, for example
// "001_initial_schema.sql". Each migration runs in its own transaction
// together with the row that records it in the schema_migrations table, so a
// failed migration leaves no trace. Applied migrations whose file content
// changed are reported as ErrChecksumMismatch instead of being re-run.
//
// Example usage:
//
//	manager := migration.NewManager(migration.NewScanner(files, "migrations"), migration.NewExecutor(db), logger)
//	if err := manager.Run(ctx); err != nil {
//		return err
//	}
package migration
