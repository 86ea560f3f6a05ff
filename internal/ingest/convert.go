package ingest

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// Converter renders a source document into one JPEG per page, written to
// outDir as page.{n}.jpg with n starting at 1. It returns the page count.
// External collaborator boundary: implementations may be slow and are
// called without any in-process lock held.
type Converter interface {
	Convert(ctx context.Context, documentPath, outDir string) (int, error)
}

// PDFConverter renders PDF pages with pdftoppm (poppler-utils), using
// pdfcpu for the page count. Pages render concurrently on a bounded
// worker pool.
type PDFConverter struct {
	// DPI is the render resolution (default 300).
	DPI int
	// Workers bounds concurrent renders; 0 means NumCPU.
	Workers int
	// Retries is the per-page attempt count for transient pdftoppm
	// failures (default 3).
	Retries int
}

func (c *PDFConverter) Convert(ctx context.Context, documentPath, outDir string) (int, error) {
	f, err := os.Open(documentPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open document: %w", err)
	}
	pageCount, err := api.PageCount(f, nil)
	f.Close()
	if err != nil {
		return 0, fmt.Errorf("failed to get page count: %w", err)
	}
	if pageCount == 0 {
		return 0, nil
	}

	workers := c.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	type result struct {
		pageNum int
		err     error
	}

	results := make(chan result, pageCount)
	sem := make(chan struct{}, workers)

	for page := 1; page <= pageCount; page++ {
		sem <- struct{}{} // acquire
		go func(pageNum int) {
			defer func() { <-sem }() // release
			results <- result{pageNum: pageNum, err: c.renderPage(ctx, documentPath, outDir, pageNum)}
		}(page)
	}

	var firstErr error
	for i := 0; i < pageCount; i++ {
		r := <-results
		if r.err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to render page %d: %w", r.pageNum, r.err)
		}
	}
	if firstErr != nil {
		return 0, firstErr
	}
	return pageCount, nil
}

// renderPage renders one page via pdftoppm, retrying transient failures.
func (c *PDFConverter) renderPage(ctx context.Context, documentPath, outDir string, pageNum int) error {
	attempts := c.Retries
	if attempts <= 0 {
		attempts = 3
	}
	return retry.Do(
		func() error { return c.renderPageOnce(ctx, documentPath, outDir, pageNum) },
		retry.Context(ctx),
		retry.Attempts(uint(attempts)),
		retry.Delay(500*time.Millisecond),
	)
}

func (c *PDFConverter) renderPageOnce(ctx context.Context, documentPath, outDir string, pageNum int) error {
	tmpDir, err := os.MkdirTemp("", "scriptorium-page-*")
	if err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	outputPrefix := filepath.Join(tmpDir, "page")

	dpi := c.DPI
	if dpi <= 0 {
		dpi = 300
	}

	// -jpeg: JPEG output
	// -f/-l N: render exactly one page
	// -r: resolution in DPI
	// -singlefile: no page number suffix on the output name
	pageStr := fmt.Sprintf("%d", pageNum)
	cmd := exec.CommandContext(ctx, "pdftoppm",
		"-jpeg",
		"-f", pageStr,
		"-l", pageStr,
		"-r", fmt.Sprintf("%d", dpi),
		"-singlefile",
		documentPath,
		outputPrefix,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("pdftoppm failed: %w (output: %s)", err, string(output))
	}

	srcPath := outputPrefix + ".jpg"
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return fmt.Errorf("pdftoppm did not create expected output: %w", err)
	}

	dstPath := filepath.Join(outDir, fmt.Sprintf("page.%d.jpg", pageNum))
	if err := os.WriteFile(dstPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write page image: %w", err)
	}
	return nil
}
