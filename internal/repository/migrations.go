package repository

import (
	"context"
	"embed"
	"fmt"
	"strings"

	"plantcare/pkg/database"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migration names an embedded schema script.
type Migration string

const (
	SessionSchema       Migration = "001_session.up.sql"
	ReferenceSchema     Migration = "002_reference.up.sql"
	ReferenceSchemaDown Migration = "002_reference.down.sql"
)

// Apply runs the statements of m against db in order.
func Apply(ctx context.Context, db *database.DB, m Migration) error {
	content, err := migrationFS.ReadFile("migrations/" + string(m))
	if err != nil {
		return fmt.Errorf("failed to read migration %s: %w", m, err)
	}

	for i, stmt := range splitStatements(string(content)) {
		if _, err := db.ExecContext(ctx, "migrate", stmt); err != nil {
			return fmt.Errorf("migration %s statement %d: %w", m, i+1, err)
		}
	}
	return nil
}

// splitStatements drops comment lines and splits on semicolons.
// The embedded scripts contain no semicolons inside literals.
func splitStatements(script string) []string {
	var b strings.Builder
	for _, line := range strings.Split(script, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}

	var out []string
	for _, stmt := range strings.Split(b.String(), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}
