package document

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/infra-assist/backend/pkg/logger"
)

// minTextLen is the threshold below which a page is treated as having no
// usable text layer (scanned/image-only pages typically extract a few stray
// characters at most).
const minTextLen = 50

// ExtractionError reports an unreadable document or page. Page is 0 when the
// whole document failed to open.
type ExtractionError struct {
	Path string
	Page int
	Err  error
}

func (e *ExtractionError) Error() string {
	if e.Page > 0 {
		return fmt.Sprintf("extraction failed for %s page %d: %v", e.Path, e.Page, e.Err)
	}
	return fmt.Sprintf("extraction failed for %s: %v", e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Page is one page of extracted document text. Numbering is 1-based.
type Page struct {
	Number int
	Text   string
}

// OCRFunc recovers text from a page with no embedded text layer. Optional;
// when nil, such pages fail with an ExtractionError.
type OCRFunc func(path string, page int) (string, error)

type Extractor struct {
	ocr OCRFunc
}

func NewExtractor(ocr OCRFunc) *Extractor {
	return &Extractor{ocr: ocr}
}

// Extract returns the non-empty pages of a PDF. A page without a usable text
// layer is returned as an error alongside the good pages so callers can log
// and skip it without losing the rest of the document.
func (e *Extractor) Extract(path string) ([]Page, []error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, []error{&ExtractionError{Path: path, Err: err}}
	}
	defer f.Close()

	var pages []Page
	var pageErrs []error

	total := reader.NumPage()
	for num := 1; num <= total; num++ {
		p := reader.Page(num)
		if p.V.IsNull() {
			pageErrs = append(pageErrs, &ExtractionError{Path: path, Page: num, Err: fmt.Errorf("page is null")})
			continue
		}

		text, err := p.GetPlainText(nil)
		if err != nil {
			pageErrs = append(pageErrs, &ExtractionError{Path: path, Page: num, Err: err})
			continue
		}

		text, err = e.recoverText(path, num, text)
		if err != nil {
			pageErrs = append(pageErrs, err)
			continue
		}

		if strings.TrimSpace(text) == "" {
			continue
		}

		pages = append(pages, Page{Number: num, Text: text})
	}

	logger.Debug("Document extracted",
		zap.String("path", path),
		zap.Int("pages", len(pages)),
		zap.Int("page_errors", len(pageErrs)),
	)

	return pages, pageErrs
}

// recoverText falls back to OCR when the extracted text is too short to be a
// real text layer.
func (e *Extractor) recoverText(path string, page int, text string) (string, error) {
	if len(strings.TrimSpace(text)) >= minTextLen {
		return text, nil
	}

	if e.ocr == nil {
		if strings.TrimSpace(text) == "" {
			return "", &ExtractionError{Path: path, Page: page, Err: fmt.Errorf("no embedded text layer")}
		}
		// Short but present text is kept as-is.
		return text, nil
	}

	ocrText, err := e.ocr(path, page)
	if err != nil {
		return "", &ExtractionError{Path: path, Page: page, Err: fmt.Errorf("ocr fallback: %w", err)}
	}
	return ocrText, nil
}
