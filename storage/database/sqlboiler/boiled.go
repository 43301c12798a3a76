// Package boiledrepos implements the answer statistics and summary repositories on Postgres with sqlboiler raw queries.
package boiledrepos

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/matembezi/core"
)

type repository struct {
	exec core.DBExecutor
}

// trapNoRowsErr maps psql "no rows" err to notFound
func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// params numbers the placeholders of a raw query.
type params []interface{}

func (p *params) add(v interface{}) string {
	*p = append(*p, v)
	return fmt.Sprintf("$%d", len(*p))
}

func joinPlaceholders(ph []string) string {
	return strings.Join(ph, ", ")
}
