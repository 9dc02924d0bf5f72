package main

import (
	"os"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

type progress struct {
	pbs  *mpb.Progress
	bars []*mpb.Bar
}

func newProgress(enabled bool) *progress {
	if !enabled {
		return nil
	}
	return &progress{pbs: mpb.New(mpb.WithWidth(40), mpb.WithOutput(os.Stderr))}
}

// bar adds a bar over total queries and returns its increment function,
// safe to call from worker goroutines.
func (p *progress) bar(total int) func() {
	bar := p.pbs.AddBar(int64(total),
		mpb.PrependDecorators(
			decor.Name("clustered queries: ", decor.WC{W: len("clustered queries: "), C: decor.DindentRight}),
			decor.Name("", decor.WCSyncSpaceR),
			decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
		),
		mpb.AppendDecorators(
			decor.Name("ETA: ", decor.WC{W: len("ETA: ")}),
			decor.AverageETA(decor.ET_STYLE_GO),
			decor.OnComplete(decor.Name(""), ". done"),
		),
	)
	p.bars = append(p.bars, bar)
	return func() { bar.Increment() }
}

// wait aborts bars left unfinished by a failed stage, then waits for
// rendering to end.
func (p *progress) wait() {
	if p == nil {
		return
	}
	for _, bar := range p.bars {
		if !bar.Completed() {
			bar.Abort(false)
		}
	}
	p.pbs.Wait()
}
