package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/joseph-ayodele/bill-audit/constants"
	"github.com/joseph-ayodele/bill-audit/internal/entity"
	"github.com/joseph-ayodele/bill-audit/internal/ingest"
	"github.com/joseph-ayodele/bill-audit/internal/jobs"
	"github.com/joseph-ayodele/bill-audit/internal/matching"
	"github.com/joseph-ayodele/bill-audit/internal/ocr"
)

type ocrOutcome struct {
	idx   int
	pages []ocr.PageText
	err   error
	dur   time.Duration
}

// runOCR extracts every file on a bounded pool of goroutines. Only this
// goroutine touches the job; outcomes are logged in completion order and
// documents are assembled in enumeration order.
func (p *Processor) runOCR(ctx context.Context, job *jobs.Job, files []ingest.BillFile) ([]*entity.Document, error) {
	work := make(chan int)
	out := make(chan ocrOutcome)

	var wg sync.WaitGroup
	workers := min(p.cfg.OCRWorkers, len(files))
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				out <- p.extractOne(ctx, files[i], i)
			}
		}()
	}
	go func() {
		defer close(work)
		for i := range files {
			select {
			case work <- i:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(out)
	}()

	pages := make([][]ocr.PageText, len(files))
	done := 0
	for o := range out {
		done++
		f := files[o.idx]
		pages[o.idx] = o.pages
		p.logOCR(job, f, o)
		job.Advance(ProgressFound+(ProgressOCRDone-ProgressFound)*done/len(files), fmt.Sprintf("OCR %d/%d", done, len(files)))
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("ocr: %w", err)
	}

	var docs []*entity.Document
	for i, f := range files {
		ps := pages[i]
		if len(ps) == 0 {
			ps = []ocr.PageText{{Page: 0}}
		}
		for _, pg := range ps {
			text := matching.Aggregate(pg.Candidates)
			docs = append(docs, &entity.Document{
				ID:            len(docs),
				Path:          f.RelPath,
				Folder:        f.Folder,
				FileName:      f.Name,
				Page:          pg.Page,
				SHA256:        f.HashHex,
				Candidates:    pg.Candidates,
				Text:          text,
				LowConfidence: matching.IsLowConfidence(text, p.cfg.Rules.MinUsableChars),
			})
		}
	}
	return docs, nil
}

func (p *Processor) extractOne(ctx context.Context, f ingest.BillFile, idx int) (o ocrOutcome) {
	start := time.Now()
	o.idx = idx
	defer func() {
		if r := recover(); r != nil {
			o.err = fmt.Errorf("ocr panic: %v", r)
		}
		o.dur = time.Since(start)
	}()

	if p.cfg.DocTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.DocTimeout)
		defer cancel()
	}
	ctx = ocr.WithContentHash(ctx, f.HashHex)
	o.pages, o.err = p.ocr.ExtractDocument(ctx, f.Path)
	return o
}

func (p *Processor) logOCR(job *jobs.Job, f ingest.BillFile, o ocrOutcome) {
	if o.err != nil {
		p.metrics.Document("failed", o.dur)
		p.logger.Warn("pipeline.ocr.doc", "job_id", job.ID, "file", f.RelPath, "error", o.err)
		job.Log(constants.SeverityErr, fmt.Sprintf("OCR failed: %s (%v)", f.Name, o.err))
		return
	}
	for _, pg := range o.pages {
		name := f.Name
		if pg.Page > 0 {
			name = fmt.Sprintf("%s (p%d)", f.Name, pg.Page)
		}
		text := matching.Aggregate(pg.Candidates)
		switch {
		case text == "":
			p.metrics.Document("empty", o.dur)
			job.Log(constants.SeverityErr, "OCR empty: "+name)
		case matching.IsLowConfidence(text, p.cfg.Rules.MinUsableChars):
			p.metrics.Document("weak", o.dur)
			job.Log(constants.SeverityErr, fmt.Sprintf("OCR weak: %s (%d chars)", name, len(text)))
		default:
			p.metrics.Document("ok", o.dur)
			job.Log(constants.SeverityOK, "OCR OK: "+name)
		}
	}
	if len(o.pages) == 0 {
		p.metrics.Document("empty", o.dur)
		job.Log(constants.SeverityErr, "OCR empty: "+f.Name)
	}
	p.logger.Debug("pipeline.ocr.doc", "job_id", job.ID, "file", f.RelPath, "pages", len(o.pages), "duration_ms", o.dur.Milliseconds())
}

func bytesReader(b []byte) io.Reader { return bytes.NewReader(b) }
