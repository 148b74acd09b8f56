package pipeline

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Query cells are the 3rd through 11th columns. The range is positional and
// is not checked against header names.
const (
	queryFirstCell = 2
	queryLastCell  = 10
)

// BuildQuery joins the address cells of a data row with commas.
func BuildQuery(row Row) (string, error) {
	if len(row) <= queryLastCell {
		return "", &Error{
			Kind: KindSchema,
			Err:  eris.Errorf("query: row has %d cells, need at least %d", len(row), queryLastCell+1),
		}
	}
	return strings.Join(row[queryFirstCell:queryLastCell+1], ","), nil
}
