// Package migrations embeds the booking-service schema.
package migrations

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"

	"github.com/md-rashed-zaman/lexbook/libs/db"
)

//go:embed *.sql
var files embed.FS

// Apply runs every script in name order. Scripts are idempotent, so Apply is
// safe on every start.
func Apply(ctx context.Context, pool *db.Pool) error {
	names, err := fs.Glob(files, "*.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)
	for _, name := range names {
		sql, err := files.ReadFile(name)
		if err != nil {
			return err
		}
		if _, err := pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("migration %s: %w", name, err)
		}
	}
	return nil
}
