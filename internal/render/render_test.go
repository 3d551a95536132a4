package render

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestHTML(t *testing.T) {
	doc, err := HTML("## Introduzione\n\nBuongiorno a **tutti**.\n\n| a | b |\n|---|---|\n| 1 | 2 |\n", "Lezione <1>")
	if err != nil {
		t.Fatalf("HTML() error = %v", err)
	}
	s := string(doc)

	for _, want := range []string{
		"<!DOCTYPE html>",
		`<meta charset="utf-8">`,
		"<title>Lezione &lt;1&gt;</title>",
		`<h2 id="introduzione">Introduzione</h2>`,
		"<strong>tutti</strong>",
		"<table>",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("HTML() missing %q in:\n%s", want, s)
		}
	}
}

func TestHTMLEscapesRawMarkup(t *testing.T) {
	doc, err := HTML("<script>alert(1)</script>\n\nciao", "t")
	if err != nil {
		t.Fatalf("HTML() error = %v", err)
	}
	if strings.Contains(string(doc), "<script>") {
		t.Errorf("raw HTML should not pass through:\n%s", doc)
	}
}

func TestWriteHTMLCreatesDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "out", "transcript.html")
	if err := WriteHTML("# Titolo", path, "transcript"); err != nil {
		t.Fatalf("WriteHTML() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if !strings.Contains(string(data), "<h1") {
		t.Errorf("output missing heading:\n%s", data)
	}
}

// fakeConverter writes a shell script standing in for wkhtmltopdf.
func fakeConverter(t *testing.T, body string) Wkhtmltopdf {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script converter requires a unix shell")
	}
	bin := filepath.Join(t.TempDir(), "fake-wkhtmltopdf")
	if err := os.WriteFile(bin, []byte("#!/bin/sh\n"+body+"\n"), 0755); err != nil {
		t.Fatal(err)
	}
	return Wkhtmltopdf{Binary: bin}
}

func TestWkhtmltopdfConvert(t *testing.T) {
	// args: --quiet --encoding utf-8 <html> <pdf>
	conv := fakeConverter(t, `printf '%%PDF-' > "$5"; cat "$4" >> "$5"`)

	dir := t.TempDir()
	htmlPath := filepath.Join(dir, "transcript.html")
	if err := os.WriteFile(htmlPath, []byte("<p>ciao</p>"), 0644); err != nil {
		t.Fatal(err)
	}
	pdfPath := filepath.Join(dir, "out", "transcript.pdf")

	if err := conv.Convert(context.Background(), htmlPath, pdfPath); err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	data, err := os.ReadFile(pdfPath)
	if err != nil {
		t.Fatalf("reading pdf: %v", err)
	}
	if string(data) != "%PDF-<p>ciao</p>" {
		t.Errorf("pdf content = %q", data)
	}

	entries, _ := os.ReadDir(filepath.Dir(pdfPath))
	if len(entries) != 1 {
		t.Errorf("out dir has %d entries, want only the pdf", len(entries))
	}
}

func TestWkhtmltopdfFailureLeavesNoFile(t *testing.T) {
	conv := fakeConverter(t, `echo "cannot load page" >&2; exit 3`)

	dir := t.TempDir()
	htmlPath := filepath.Join(dir, "transcript.html")
	if err := os.WriteFile(htmlPath, []byte("<p>ciao</p>"), 0644); err != nil {
		t.Fatal(err)
	}
	pdfPath := filepath.Join(dir, "transcript.pdf")

	err := conv.Convert(context.Background(), htmlPath, pdfPath)
	if err == nil {
		t.Fatal("Convert() should fail when the converter exits non-zero")
	}
	if !strings.Contains(err.Error(), "cannot load page") {
		t.Errorf("error %q should include converter output", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("dir has %d entries, want only the html", len(entries))
	}
}

func TestWkhtmltopdfMissingSource(t *testing.T) {
	conv := Wkhtmltopdf{Binary: "definitely-not-a-converter"}
	dir := t.TempDir()
	err := conv.Convert(context.Background(), filepath.Join(dir, "nope.html"), filepath.Join(dir, "x.pdf"))
	if err == nil {
		t.Error("Convert() should fail for a missing html file")
	}
}
