package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func scriptText() string {
	var b strings.Builder
	b.WriteString("INT. DINER - NIGHT\n\n")
	for i := 0; i < 10; i++ {
		b.WriteString("MARGOT\nYou said you'd be here at eight. It's almost midnight.\n\n")
	}
	return b.String()
}

func TestExtractTextFromBytes_PlainText(t *testing.T) {
	text, err := ExtractTextFromBytes(context.Background(), []byte(scriptText()), "text/plain", "pilot.txt")
	if err != nil {
		t.Fatalf("extract plain text: %v", err)
	}
	if !strings.Contains(text, "INT. DINER - NIGHT") {
		t.Fatalf("scene heading missing from extracted text")
	}
}

func TestExtractTextFromBytes_FountainByExtension(t *testing.T) {
	text, err := ExtractTextFromBytes(context.Background(), []byte(scriptText()), "application/octet-stream", "pilot.fountain")
	if err != nil {
		t.Fatalf("extract fountain: %v", err)
	}
	if len(text) < minTextLen {
		t.Fatalf("extracted text shorter than minimum: %d", len(text))
	}
}

func TestExtractTextFromBytes_FDX(t *testing.T) {
	var b bytes.Buffer
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><FinalDraft DocumentType="Script"><Content>`)
	for i := 0; i < 8; i++ {
		b.WriteString(`<Paragraph Type="Scene Heading"><Text>INT. DINER - NIGHT</Text></Paragraph>`)
		b.WriteString(`<Paragraph Type="Dialogue"><Text>You said you'd be here at eight.</Text></Paragraph>`)
	}
	b.WriteString(`</Content></FinalDraft>`)

	text, err := ExtractTextFromBytes(context.Background(), b.Bytes(), "text/xml", "pilot.fdx")
	if err != nil {
		t.Fatalf("extract fdx: %v", err)
	}
	if !strings.Contains(text, "INT. DINER - NIGHT") {
		t.Fatalf("scene heading missing from fdx text")
	}
}

// pdfDoc assembles a single-font PDF with one content stream per page,
// tracking object offsets so the xref table is valid.
func pdfDoc(pageContents ...string) []byte {
	var buf bytes.Buffer
	var offsets []int
	writeObj := func(body string) {
		offsets = append(offsets, buf.Len())
		buf.WriteString(body)
	}

	buf.WriteString("%PDF-1.4\n")
	kids := make([]string, len(pageContents))
	for i := range kids {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	writeObj("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	writeObj(fmt.Sprintf("2 0 obj\n<< /Type /Pages /Kids [%s] /Count %d >>\nendobj\n",
		strings.Join(kids, " "), len(pageContents)))
	writeObj("3 0 obj\n<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>\nendobj\n")
	for i, content := range pageContents {
		pageObj := 4 + 2*i
		writeObj(fmt.Sprintf("%d 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>\nendobj\n",
			pageObj, pageObj+1))
		writeObj(fmt.Sprintf("%d 0 obj\n<< /Length %d >>\nstream\n%s\nendstream\nendobj\n",
			pageObj+1, len(content), content))
	}

	xrefOffset := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		len(offsets)+1, xrefOffset)
	return buf.Bytes()
}

func pdfTextPage(line string) string {
	return fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", line)
}

func TestExtractTextFromBytes_PDF(t *testing.T) {
	var pages []string
	for i := 0; i < 6; i++ {
		pages = append(pages, pdfTextPage("KEEPER: The storm is getting worse. Signal the mainland before dawn."))
	}

	text, err := ExtractTextFromBytes(context.Background(), pdfDoc(pages...), "application/pdf", "pilot.pdf")
	if err != nil {
		t.Fatalf("extract pdf: %v", err)
	}
	if !strings.Contains(text, "storm is getting worse") {
		t.Fatalf("dialogue missing from pdf text: %q", text)
	}
}

func TestExtractPDF_FallsBackToPageByPage(t *testing.T) {
	// Whole-document extraction yields nothing for empty content streams,
	// so the page-by-page reader runs and reports the same.
	_, err := extractPDF(pdfDoc("", ""))
	if err == nil {
		t.Fatal("expected error for pdf with no text on any page")
	}
	if !strings.Contains(err.Error(), "no pages yielded text") {
		t.Fatalf("expected page-by-page failure, got %v", err)
	}
}

func TestExtractTextFromBytes_TextlessPDFIsCorrupt(t *testing.T) {
	_, err := ExtractTextFromBytes(context.Background(), pdfDoc(""), "application/pdf", "scan.pdf")
	var ee *Error
	if !errors.As(err, &ee) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if ee.Reason != ReasonCorrupt {
		t.Fatalf("expected reason %q, got %q", ReasonCorrupt, ee.Reason)
	}
}

func TestExtractTextFromBytes_TruncatedPDFIsCorrupt(t *testing.T) {
	data := pdfDoc(pdfTextPage("INT. DINER - NIGHT"))
	_, err := ExtractTextFromBytes(context.Background(), data[:len(data)/2], "application/pdf", "broken.pdf")
	var ee *Error
	if !errors.As(err, &ee) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if ee.Reason != ReasonCorrupt {
		t.Fatalf("expected reason %q, got %q", ReasonCorrupt, ee.Reason)
	}
}

func TestExtractTextFromBytes_UnsupportedFormat(t *testing.T) {
	_, err := ExtractTextFromBytes(context.Background(), []byte("binary"), "image/png", "poster.png")
	var ee *Error
	if !errors.As(err, &ee) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if ee.Reason != ReasonUnsupported {
		t.Fatalf("expected reason %q, got %q", ReasonUnsupported, ee.Reason)
	}
}

func TestExtractTextFromBytes_TooShort(t *testing.T) {
	_, err := ExtractTextFromBytes(context.Background(), []byte("FADE IN."), "text/plain", "stub.txt")
	var ee *Error
	if !errors.As(err, &ee) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if ee.Reason != ReasonTooShort {
		t.Fatalf("expected reason %q, got %q", ReasonTooShort, ee.Reason)
	}
}

func TestExtractTextFromBytes_CorruptFDX(t *testing.T) {
	_, err := ExtractTextFromBytes(context.Background(), []byte("<FinalDraft><Content>"), "text/xml", "broken.fdx")
	var ee *Error
	if !errors.As(err, &ee) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if ee.Reason != ReasonCorrupt {
		t.Fatalf("expected reason %q, got %q", ReasonCorrupt, ee.Reason)
	}
}

func TestReadableRatio(t *testing.T) {
	if r := readableRatio(scriptText()); r < 0.9 {
		t.Fatalf("script text should read as mostly printable, got %f", r)
	}
	garbage := strings.Repeat("\x00\x01\x02", 100)
	if r := readableRatio(garbage); r > 0.1 {
		t.Fatalf("binary garbage should score low, got %f", r)
	}
}
