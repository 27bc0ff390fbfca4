package extract

import (
	"fmt"
	"os"

	"code.sajari.com/docconv/v2"
)

// DocumentReader converts PDF and office documents with docconv.
// PDF conversion shells out to pdftotext, which must be on PATH.
type DocumentReader struct{}

func (r *DocumentReader) CanRead(path string) bool {
	return hasExt(path, ".pdf", ".docx", ".odt", ".rtf", ".pages")
}

func (r *DocumentReader) ReadText(path string) (string, error) {
	res, err := docconv.ConvertPath(path)
	if err != nil {
		return "", fmt.Errorf("failed to convert document: %w", err)
	}
	return res.Body, nil
}

// TxtReader reads plain text files as-is.
type TxtReader struct{}

func (r *TxtReader) CanRead(path string) bool {
	return hasExt(path, ".txt")
}

func (r *TxtReader) ReadText(path string) (string, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading text file: %w", err)
	}
	return string(buf), nil
}
