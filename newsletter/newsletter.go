// Package newsletter renders the day's digest as a standalone HTML page
// and optionally prints it to PDF.
package newsletter

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"os"
	"path/filepath"

	"github.com/playwright-community/playwright-go"
)

//go:embed templates/*.html
var templates embed.FS

// Issue is the data rendered into the newsletter template.
type Issue struct {
	Title       string
	Date        string
	SummaryHTML template.HTML
	EnglishURL  string
	PersianURL  string
	FooterText  string
	FooterLink  string
	FooterURL   string
}

// WriteHTML renders the issue into outPath.
func WriteHTML(outPath string, issue Issue) error {
	t, err := template.ParseFS(templates, "templates/*.html")
	if err != nil {
		return fmt.Errorf("failed to parse newsletter templates with %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("failed to create newsletter directory with %w", err)
	}

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create newsletter file with %w", err)
	}
	defer out.Close()

	if err := t.ExecuteTemplate(out, "newsletter.html", issue); err != nil {
		return fmt.Errorf("failed to render newsletter with %w", err)
	}
	return nil
}

// GeneratePDF prints an HTML file to PDF through headless Chromium.
func GeneratePDF(ctx context.Context, htmlPath, pdfPath string) error {
	// Install playwright if needed
	err := playwright.Install()
	if err != nil {
		return fmt.Errorf("could not install playwright: %w", err)
	}

	pw, err := playwright.Run()
	if err != nil {
		return fmt.Errorf("could not start playwright: %w", err)
	}
	defer pw.Stop()

	browser, err := pw.Chromium.Launch()
	if err != nil {
		return fmt.Errorf("could not launch browser: %w", err)
	}
	defer browser.Close()

	page, err := browser.NewPage()
	if err != nil {
		return fmt.Errorf("could not create page: %w", err)
	}
	defer page.Close()

	absPath, err := filepath.Abs(htmlPath)
	if err != nil {
		return fmt.Errorf("could not get absolute path: %w", err)
	}

	fileURL := fmt.Sprintf("file://%s", absPath)
	if _, err = page.Goto(fileURL); err != nil {
		return fmt.Errorf("could not navigate to HTML file: %w", err)
	}

	// B5 paper size: 176mm x 250mm
	_, err = page.PDF(playwright.PagePdfOptions{
		Path:            playwright.String(pdfPath),
		Width:           playwright.String("176mm"),
		Height:          playwright.String("250mm"),
		PrintBackground: playwright.Bool(true),
		Margin: &playwright.Margin{
			Top:    playwright.String("15mm"),
			Right:  playwright.String("15mm"),
			Bottom: playwright.String("15mm"),
			Left:   playwright.String("15mm"),
		},
	})
	if err != nil {
		return fmt.Errorf("could not generate PDF: %w", err)
	}

	return nil
}
