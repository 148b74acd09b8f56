package pipeline

import (
	"encoding/json"
	"strconv"

	"github.com/sells-group/osmatch-cli/pkg/osmatch"
)

// EnrichmentColumns are appended to the input header, in this order.
var EnrichmentColumns = []string{
	"UPRN",
	"ADDRESS",
	"POSTCODE",
	"X_COORDINATE",
	"Y_COORDINATE",
	"MATCH",
	"API_RESPONSE",
}

// Enrichment holds the canonical address fields of a matched candidate.
type Enrichment struct {
	UPRN        string
	Address     string
	Postcode    string
	XCoordinate string
	YCoordinate string
	Match       string
}

// Values returns the fields in EnrichmentColumns order, without the trace.
func (e Enrichment) Values() []string {
	return []string{e.UPRN, e.Address, e.Postcode, e.XCoordinate, e.YCoordinate, e.Match}
}

// MatchResponse is the outcome of one lookup: either NoMatch or Match.
type MatchResponse interface {
	// Trace is the raw response text kept for audit.
	Trace() string
	isMatchResponse()
}

// NoMatch is a response without a non-empty results array.
type NoMatch struct {
	Raw string
}

// Trace implements MatchResponse.
func (n NoMatch) Trace() string { return n.Raw }

func (NoMatch) isMatchResponse() {}

// Match is a response whose first result supplied a candidate.
type Match struct {
	Candidate Enrichment
	Raw       string
}

// Trace implements MatchResponse.
func (m Match) Trace() string { return m.Raw }

func (Match) isMatchResponse() {}

const emptyResponseTrace = "empty response"

// Interpret classifies a parsed response. Only the first result is used.
// Missing or malformed nested values become empty strings.
func Interpret(resp *osmatch.Response) MatchResponse {
	if resp == nil {
		return NoMatch{Raw: emptyResponseTrace}
	}

	results, _ := resp.Body["results"].([]any)
	if len(results) == 0 {
		return NoMatch{Raw: resp.Raw}
	}

	first, _ := results[0].(map[string]any)
	dpa, _ := first["DPA"].(map[string]any)

	return Match{
		Candidate: Enrichment{
			UPRN:        textValue(dpa["UPRN"]),
			Address:     textValue(dpa["ADDRESS"]),
			Postcode:    textValue(dpa["POSTCODE"]),
			XCoordinate: textValue(dpa["X_COORDINATE"]),
			YCoordinate: textValue(dpa["Y_COORDINATE"]),
			Match:       textValue(dpa["MATCH"]),
		},
		Raw: resp.Raw,
	}
}

// textValue renders a decoded JSON value as text. Absent and null are empty.
func textValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// RowResult is the processed form of one data row. Err is set for row-level
// failures; in that case Fields is empty and Trace holds the error text.
type RowResult struct {
	Index  int
	Row    Row
	Fields Enrichment
	Trace  string
	Err    error
}

// OK reports whether the row was looked up without error.
func (r RowResult) OK() bool { return r.Err == nil }

// Cells returns the output row: input cells, enrichment fields, trace.
func (r RowResult) Cells() Row {
	out := make(Row, 0, len(r.Row)+len(EnrichmentColumns))
	out = append(out, r.Row...)
	out = append(out, r.Fields.Values()...)
	return append(out, r.Trace)
}

// Merge builds the result for a row from its lookup outcome.
func Merge(index int, row Row, mr MatchResponse) RowResult {
	res := RowResult{Index: index, Row: row, Trace: mr.Trace()}
	if m, ok := mr.(Match); ok {
		res.Fields = m.Candidate
	}
	return res
}

// Failed builds the degraded result for a row whose query or lookup failed.
func Failed(index int, row Row, err error) RowResult {
	return RowResult{Index: index, Row: row, Trace: err.Error(), Err: err}
}

// OutputHeader returns the input header followed by EnrichmentColumns.
func OutputHeader(header Row) Row {
	out := make(Row, 0, len(header)+len(EnrichmentColumns))
	out = append(out, header...)
	return append(out, EnrichmentColumns...)
}
