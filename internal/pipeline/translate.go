package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pricofy/csv-translation/internal/chunker"
	"github.com/pricofy/csv-translation/internal/csvcodec"
	"github.com/pricofy/csv-translation/internal/domain"
)

// Cell is the outcome of translating one cell. Fallback means Text is the
// original value because the translation call failed.
type Cell struct {
	Text     string
	Fallback bool
}

// TranslateDocument translates every data cell of doc with at most
// Options.Concurrency calls in flight, preserving row and column order.
// Header cells and blank cells are copied unchanged. It returns the number of
// cells that fell back to their original text. Only cancellation of ctx is
// reported as an error.
func (p *Pipeline) TranslateDocument(ctx context.Context, doc *csvcodec.Document, langs domain.Languages) (*csvcodec.Document, int, error) {
	rows := make([]csvcodec.Row, len(doc.Rows))
	for i, row := range doc.Rows {
		rows[i] = append(csvcodec.Row(nil), row...)
	}

	var fallbacks atomic.Int64
	var g errgroup.Group
	g.SetLimit(p.opts.Concurrency)

schedule:
	for i := range rows {
		for j := range rows[i] {
			if strings.TrimSpace(rows[i][j]) == "" {
				continue
			}
			if ctx.Err() != nil {
				break schedule
			}
			g.Go(func() error {
				cell := p.TranslateCell(ctx, rows[i][j], langs)
				if cell.Fallback {
					fallbacks.Add(1)
				}
				rows[i][j] = cell.Text
				return nil
			})
		}
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, 0, fmt.Errorf("translation interrupted: %w", err)
	}
	return doc.WithRows(rows), int(fallbacks.Load()), nil
}

// TranslateCell translates text, falling back to text itself on any failure.
// Blank input is returned as is without a call.
func (p *Pipeline) TranslateCell(ctx context.Context, text string, langs domain.Languages) Cell {
	if strings.TrimSpace(text) == "" {
		return Cell{Text: text}
	}

	cctx, cancel := context.WithTimeout(ctx, p.cellTimeout())
	defer cancel()

	out, err := p.translator.Translate(cctx, text, langs)
	if err != nil {
		p.logger.DebugContext(ctx, "cell translation failed, keeping original", "error", err)
		return Cell{Text: text, Fallback: true}
	}
	return Cell{Text: out}
}

// TranslateText translates a single string and reports failures, for
// requests where there is no original to fall back to.
func (p *Pipeline) TranslateText(ctx context.Context, text string, langs domain.Languages) (string, error) {
	if err := langs.Validate(); err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrInvalidContent, err)
	}
	if strings.TrimSpace(text) == "" {
		return text, nil
	}

	var out strings.Builder
	for _, chunk := range chunker.Split(text, chunker.DefaultMaxBytes) {
		translated, err := p.translateChunk(ctx, chunk, langs)
		if err != nil {
			return "", err
		}
		out.WriteString(translated)
	}
	return out.String(), nil
}

// translateChunk translates chunk without its surrounding whitespace, which
// is kept as is.
func (p *Pipeline) translateChunk(ctx context.Context, chunk string, langs domain.Languages) (string, error) {
	core := strings.TrimSpace(chunk)
	if core == "" {
		return chunk, nil
	}
	lead := chunk[:strings.Index(chunk, core)]
	trail := chunk[len(lead)+len(core):]

	cctx, cancel := context.WithTimeout(ctx, p.cellTimeout())
	defer cancel()
	translated, err := p.translator.Translate(cctx, core, langs)
	if err != nil {
		return "", err
	}
	return lead + translated + trail, nil
}

func (p *Pipeline) cellTimeout() time.Duration {
	if p.opts.CellTimeout <= 0 {
		return defaultCellTimeout
	}
	return p.opts.CellTimeout
}
