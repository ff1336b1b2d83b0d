package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/DeBrosOfficial/scenestream/pkg/logging"
)

// fileExporter stands in for the host's scene exporter: every export copies
// a source file, typically one a DCC tool keeps overwriting, to the path
// the engine asks for.
type fileExporter struct {
	source string
}

func (e fileExporter) Export(path string) error {
	src, err := os.Open(e.source)
	if err != nil {
		return fmt.Errorf("open export source: %w", err)
	}
	defer src.Close()

	dst, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("copy export source: %w", err)
	}
	return dst.Close()
}

// changeWatcher polls a file's modification time and size and reports a
// content change whenever either moves.
type changeWatcher struct {
	path     string
	interval time.Duration
	clk      clock.Clock
	onChange func()
	logger   *logging.ColoredLogger
}

type fileStamp struct {
	mod  time.Time
	size int64
}

func (s fileStamp) same(o fileStamp) bool {
	return s.size == o.size && s.mod.Equal(o.mod)
}

func stat(path string) (fileStamp, bool) {
	fi, err := os.Stat(path)
	if err != nil {
		return fileStamp{}, false
	}
	return fileStamp{mod: fi.ModTime(), size: fi.Size()}, true
}

// run polls until ctx is done.
func (w changeWatcher) run(ctx context.Context) error {
	last, ok := stat(w.path)
	if !ok {
		w.logger.ComponentWarn(logging.ComponentExport, "Watched file does not exist yet", zap.String("path", w.path))
	}

	ticker := w.clk.Ticker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			cur, ok := stat(w.path)
			if !ok || cur.same(last) {
				continue
			}
			last = cur
			w.logger.ComponentDebug(logging.ComponentExport, "Scene source changed",
				zap.String("path", w.path),
				zap.Int64("size", cur.size),
			)
			w.onChange()
		}
	}
}
