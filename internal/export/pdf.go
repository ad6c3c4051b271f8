package export

import (
	"context"
	"encoding/base64"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// chromeBinaries are tried in order when looking for a headless browser.
var chromeBinaries = []string{"chromium-browser", "chromium", "google-chrome"}

// Intake forms print on US letter with 0.6in margins.
const (
	paperWidthIn  = 8.5
	paperHeightIn = 11.0
	marginIn      = 0.6
	pdfTimeout    = 30 * time.Second
)

func findChrome() (string, error) {
	for _, name := range chromeBinaries {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: none of %s found", ErrPDFDependencyMissing, strings.Join(chromeBinaries, ", "))
}

// htmlDataURL inlines the rendered page so Chrome needs no file or server.
func htmlDataURL(html string) string {
	return "data:text/html;charset=utf-8;base64," + base64.StdEncoding.EncodeToString([]byte(html))
}

// exportPDF prints the intake page through headless Chrome.
func exportPDF(parent context.Context, html, title string) (*Result, error) {
	chrome, err := findChrome()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(parent, pdfTimeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(chrome),
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	var data []byte
	printForm := chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		data, _, err = page.PrintToPDF().
			WithPrintBackground(true).
			WithPaperWidth(paperWidthIn).
			WithPaperHeight(paperHeightIn).
			WithMarginTop(marginIn).
			WithMarginBottom(marginIn).
			WithMarginLeft(marginIn).
			WithMarginRight(marginIn).
			Do(ctx)
		return err
	})
	if err := chromedp.Run(browserCtx, chromedp.Navigate(htmlDataURL(html)), chromedp.WaitReady("body"), printForm); err != nil {
		return nil, fmt.Errorf("print intake pdf: %w", err)
	}

	return &Result{
		Data:     data,
		Filename: fileSlug(title) + ".pdf",
		MimeType: "application/pdf",
	}, nil
}

const maxSlugLength = 60

// fileSlug lowercases the title and joins its words with single hyphens.
func fileSlug(title string) string {
	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(title) {
		isWord := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !isWord {
			pendingDash = b.Len() > 0
			continue
		}
		need := 1
		if pendingDash {
			need = 2
		}
		if b.Len()+need > maxSlugLength {
			break
		}
		if pendingDash {
			b.WriteByte('-')
			pendingDash = false
		}
		b.WriteRune(r)
	}
	if b.Len() == 0 {
		return "intake-form"
	}
	return b.String()
}
