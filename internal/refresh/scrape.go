package refresh

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Scrape runs the external proxy-scraper (spec.md §4.2.1) and returns the
// path to the JSON candidates file it produced. A non-zero exit or a
// timeout fails the whole chain; Dispatch never runs against a partial
// candidates file.
func (p *Pipeline) Scrape(ctx context.Context) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, p.scrapeTimeout)
	defer cancel()

	parts := strings.Fields(p.scraperCmd)
	if len(parts) == 0 {
		return nil, fmt.Errorf("refresh: scrape: no scraper command configured")
	}

	outPath := filepath.Join(os.TempDir(), fmt.Sprintf("proxy-candidates-%s.json", uuid.NewString()))
	args := append(append([]string{}, parts[1:]...), "--output", outPath)

	cmd := exec.CommandContext(ctx, parts[0], args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("refresh: scrape: scraper timed out after %s: %w", p.scrapeTimeout, ctx.Err())
		}
		return nil, fmt.Errorf("refresh: scrape: scraper exited: %w (stderr: %s)", err, stderr.String())
	}

	if _, err := os.Stat(outPath); err != nil {
		return nil, fmt.Errorf("refresh: scrape: scraper produced no candidates file: %w", err)
	}

	p.logger.Info("proxy scrape complete", "duration", time.Since(start), "output", outPath)
	return outPath, nil
}
