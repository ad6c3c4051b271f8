package export

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

const docxMimeType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// exportDOCX pipes the intake page through pandoc.
func exportDOCX(ctx context.Context, html, title string) (*Result, error) {
	pandoc, err := exec.LookPath("pandoc")
	if err != nil {
		return nil, fmt.Errorf("%w: pandoc not found", ErrDOCXDependencyMissing)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, pandoc, "--from=html", "--to=docx", "--metadata=title:"+title, "--output=-")
	cmd.Stdin = strings.NewReader(html)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("pandoc: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	return &Result{
		Data:     stdout.Bytes(),
		Filename: fileSlug(title) + ".docx",
		MimeType: docxMimeType,
	}, nil
}
