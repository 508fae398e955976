// Package csvcodec parses delimited text into a header plus ordered rows and
// writes it back using the same dialect.
package csvcodec

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pricofy/csv-translation/internal/domain"
)

// SampleLines is the number of leading lines inspected by Sniff.
const SampleLines = 5

// candidateDelimiters are tried in preference order.
var candidateDelimiters = []rune{',', ';', '\t', '|'}

// Dialect is the set of delimiter conventions of one document. The quote
// character is always '"'.
type Dialect struct {
	Delimiter rune
	UseCRLF   bool
}

// LineTerminator returns the record separator written by Serialize.
func (d Dialect) LineTerminator() string {
	if d.UseCRLF {
		return "\r\n"
	}
	return "\n"
}

// Sample returns the first n lines of text.
func Sample(text string, n int) string {
	lines := strings.SplitN(text, "\n", n+1)
	if len(lines) > n {
		lines = lines[:n]
	}
	return strings.Join(lines, "\n")
}

// Sniff detects the dialect of a content sample. It picks the candidate
// delimiter that splits every sampled record into the same number of fields,
// at least two, preferring more fields and then the earlier candidate.
func Sniff(sample string) (Dialect, error) {
	if strings.TrimSpace(sample) == "" {
		return Dialect{}, fmt.Errorf("%w: empty sample", domain.ErrMalformedCSV)
	}

	var best rune
	bestFields := 1
	for _, c := range candidateDelimiters {
		n, ok := consistentFields(sample, c)
		if ok && n > bestFields {
			best, bestFields = c, n
		}
	}
	if best == 0 {
		return Dialect{}, fmt.Errorf("%w: could not determine delimiter", domain.ErrMalformedCSV)
	}

	return Dialect{Delimiter: best, UseCRLF: strings.Contains(sample, "\r\n")}, nil
}

// consistentFields reads the sample with comma and reports the shared field
// count. A quoted field left open by the end of the sample (an odd number of
// quote characters) is tolerated once at least one full record has been read.
func consistentFields(sample string, comma rune) (int, bool) {
	r := csv.NewReader(strings.NewReader(sample))
	r.Comma = comma
	r.FieldsPerRecord = -1
	truncated := strings.Count(sample, `"`)%2 == 1

	fields, records := 0, 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			if records > 0 && truncated && errors.Is(err, csv.ErrQuote) {
				break
			}
			return 0, false
		}
		if records == 0 {
			fields = len(rec)
		} else if len(rec) != fields {
			return 0, false
		}
		records++
	}

	return fields, records > 0
}
