package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"

	"screenplay-backend/internal/shared/storage/object"
)

const (
	mimePDF      = "application/pdf"
	mimeDOCX     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeText     = "text/plain"
	mimeFDX      = "application/vnd.finaldraft"
	mimeFountain = "text/x-fountain"
)

// minTextLen is the minimum number of characters a usable script must yield.
const minTextLen = 100

// Failure reasons carried on Error.
const (
	ReasonUnsupported = "unsupported_format"
	ReasonCorrupt     = "corrupt"
	ReasonTooShort    = "too_short"
)

// Error describes why extraction could not produce usable text.
type Error struct {
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extraction failed (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("extraction failed (%s)", e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

func failed(reason string, err error) *Error {
	return &Error{Reason: reason, Err: err}
}

// ExtractText pulls text from a stored object and persists a derived .extracted.txt copy.
// PDF parsing uses github.com/ledongthuc/pdf; FDX and DOCX are unpacked with the
// standard library XML and zip readers.
func ExtractText(ctx context.Context, store object.ObjectStore, fileKey string, mimeType string, fileName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	body, err := store.Open(ctx, fileKey)
	if err != nil {
		return "", fmt.Errorf("extract text key=%s mime=%s: %w", fileKey, mimeType, err)
	}
	defer body.Close()

	raw, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("extract text key=%s mime=%s: read: %w", fileKey, mimeType, err)
	}

	text, err := ExtractTextFromBytes(ctx, raw, mimeType, fileName)
	if err != nil {
		return "", fmt.Errorf("extract text key=%s mime=%s: %w", fileKey, mimeType, err)
	}

	extractedKey := fileKey + ".extracted.txt"
	if err := saveExtracted(ctx, store, extractedKey, text); err != nil {
		return "", fmt.Errorf("extract text key=%s mime=%s: %w", fileKey, mimeType, err)
	}

	return text, nil
}

// ExtractTextFromBytes extracts script text from an in-memory payload and
// validates that the result is usable for analysis.
func ExtractTextFromBytes(ctx context.Context, data []byte, mimeType string, fileName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	normalized := normalizeMimeType(mimeType, fileName, data)

	var (
		text string
		err  error
	)
	switch normalized {
	case mimePDF:
		text, err = extractPDF(data)
	case mimeDOCX:
		text, err = extractDOCX(data)
	case mimeFDX:
		text, err = extractFDX(data)
	case mimeText, mimeFountain:
		text, err = extractPlain(data)
	default:
		return "", failed(ReasonUnsupported, fmt.Errorf("unsupported mime type: %s", normalized))
	}
	if err != nil {
		var ee *Error
		if errors.As(err, &ee) {
			return "", err
		}
		return "", failed(ReasonCorrupt, err)
	}

	return validate(text)
}

// validate rejects text that is too short or mostly non-readable garbage
// (a symptom of scanned or image-only PDFs).
func validate(text string) (string, error) {
	text = strings.TrimSpace(text)
	if len([]rune(text)) < minTextLen {
		return "", failed(ReasonTooShort, fmt.Errorf("extracted %d characters, need at least %d", len([]rune(text)), minTextLen))
	}
	if readableRatio(text) < 0.5 {
		return "", failed(ReasonCorrupt, errors.New("extracted text is mostly unreadable"))
	}
	return text, nil
}

func readableRatio(text string) float64 {
	var readable, total int
	for _, r := range text {
		total++
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) || unicode.IsPunct(r) {
			readable++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(readable) / float64(total)
}

type keySaver interface {
	SaveWithKey(ctx context.Context, storageKey string, contentType string, r io.Reader) (int64, error)
}

func saveExtracted(ctx context.Context, store object.ObjectStore, key string, text string) error {
	saver, ok := store.(keySaver)
	if !ok {
		return errors.New("object store does not support SaveWithKey")
	}
	reader := strings.NewReader(text)
	_, err := saver.SaveWithKey(ctx, key, "text/plain; charset=utf-8", reader)
	return err
}

// extractPDF tries the whole-document reader first and falls back to
// page-by-page extraction, skipping pages that fail to parse.
func extractPDF(data []byte) (string, error) {
	reader := bytes.NewReader(data)
	pdfReader, err := pdf.NewReader(reader, int64(len(data)))
	if err != nil {
		return "", err
	}

	if text, err := pdfPlainText(pdfReader); err == nil && strings.TrimSpace(text) != "" {
		return text, nil
	}

	return pdfPageByPage(pdfReader)
}

func pdfPlainText(r *pdf.Reader) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("pdf reader panic: %v", rec)
		}
	}()
	plain, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func pdfPageByPage(r *pdf.Reader) (string, error) {
	var buf strings.Builder
	total := r.NumPage()
	var extracted int
	for i := 1; i <= total; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := pageText(page)
		if err != nil || strings.TrimSpace(text) == "" {
			continue
		}
		buf.WriteString(text)
		buf.WriteString("\n")
		extracted++
	}
	if extracted == 0 {
		return "", errors.New("no pages yielded text")
	}
	return buf.String(), nil
}

func pageText(page pdf.Page) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("pdf page panic: %v", rec)
		}
	}()
	return page.GetPlainText(nil)
}

func extractPlain(data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty file")
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	return text, nil
}

// extractFDX reads a Final Draft XML document, joining the Text runs of
// each Paragraph element with newlines.
func extractFDX(data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty fdx data")
	}
	decoder := xml.NewDecoder(bytes.NewReader(data))
	var buf strings.Builder
	var inText bool
	var sawParagraph bool
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "Text" {
				inText = true
			}
			if t.Name.Local == "Paragraph" {
				sawParagraph = true
			}
		case xml.EndElement:
			if t.Name.Local == "Text" {
				inText = false
			}
			if t.Name.Local == "Paragraph" && buf.Len() > 0 {
				buf.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				buf.Write(t)
			}
		}
	}
	if !sawParagraph {
		return "", errors.New("no Paragraph elements found")
	}
	return buf.String(), nil
}

func extractDOCX(data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty docx data")
	}
	readerAt := bytes.NewReader(data)
	zr, err := zip.NewReader(readerAt, int64(len(data)))
	if err != nil {
		return "", err
	}

	var docFile *zip.File
	for _, f := range zr.File {
		name := strings.ReplaceAll(f.Name, "\\", "/")
		if name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return "", errors.New("document.xml file not found")
	}

	rc, err := docFile.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return "", err
	}

	return stripDocxXML(string(raw)), nil
}

func stripDocxXML(raw string) string {
	decoder := xml.NewDecoder(strings.NewReader(raw))
	var buf strings.Builder
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return raw
		}
		switch t := tok.(type) {
		case xml.CharData:
			buf.WriteString(string(t))
		case xml.EndElement:
			if t.Name.Local == "p" || t.Name.Local == "br" {
				if last := buf.Len(); last > 0 {
					buf.WriteString("\n")
				}
			}
		}
	}
	return strings.TrimSpace(buf.String())
}

func normalizeMimeType(mimeType string, fileName string, data []byte) string {
	clean := strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0]))
	ext := strings.ToLower(filepath.Ext(fileName))

	// Final Draft and Fountain files usually arrive with generic mime types.
	switch ext {
	case ".fdx":
		return mimeFDX
	case ".fountain":
		return mimeFountain
	}

	switch clean {
	case "", "application/octet-stream":
		switch ext {
		case ".pdf":
			return mimePDF
		case ".txt":
			return mimeText
		case ".docx":
			return mimeDOCX
		}
		return clean
	case "text/xml", "application/xml":
		if bytes.Contains(data, []byte("<FinalDraft")) {
			return mimeFDX
		}
		return clean
	case "application/zip":
		if mapped := mapOOXMLFromZip(data); mapped != "" {
			return mapped
		}
		if ext == ".docx" {
			return mimeDOCX
		}
		return clean
	default:
		return clean
	}
}

func mapOOXMLFromZip(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	readerAt := bytes.NewReader(data)
	zr, err := zip.NewReader(readerAt, int64(len(data)))
	if err != nil {
		return ""
	}
	for _, f := range zr.File {
		name := strings.ReplaceAll(f.Name, "\\", "/")
		if name == "word/document.xml" {
			return mimeDOCX
		}
	}
	return ""
}
