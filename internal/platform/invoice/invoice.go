// Package invoice renders bill invoices as HTML and, through headless
// Chrome, as A4 PDFs.
package invoice

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/shopspring/decimal"
)

const (
	ContentTypeHTML = "text/html"
	ContentTypePDF  = "application/pdf"
)

type Line struct {
	Code        string
	Description string
	Quantity    int
	UnitPrice   decimal.Decimal
	Amount      decimal.Decimal
}

// Document is everything printed on one invoice.
type Document struct {
	Hospital    string
	Number      string
	Date        time.Time
	PatientID   string
	PatientName string
	BillType    string
	Status      string
	Lines       []Line
	Total       decimal.Decimal
	Paid        decimal.Decimal
}

func (d Document) Balance() decimal.Decimal {
	b := d.Total.Sub(d.Paid)
	if b.IsNegative() {
		return decimal.Zero
	}
	return b
}

// Renderer turns a Document into bytes of the returned content type.
type Renderer interface {
	Render(ctx context.Context, doc Document) ([]byte, string, error)
}

var funcs = template.FuncMap{
	"money": func(d decimal.Decimal) string { return "₹" + d.StringFixed(2) },
	"date": func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.Format("02-Jan-2006")
	},
}

var tmpl = template.Must(template.New("invoice").Funcs(funcs).Parse(invoiceHTML))

// RenderHTML executes the invoice template.
func RenderHTML(doc Document) ([]byte, error) {
	if doc.Hospital == "" {
		doc.Hospital = "Hospital"
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, doc); err != nil {
		return nil, fmt.Errorf("render invoice %s: %w", doc.Number, err)
	}
	return buf.Bytes(), nil
}

// HTML serves invoices as HTML pages. It is used when PDF rendering is off.
type HTML struct{}

func (HTML) Render(_ context.Context, doc Document) ([]byte, string, error) {
	out, err := RenderHTML(doc)
	return out, ContentTypeHTML, err
}

// PDF prints the HTML invoice with headless Chrome.
type PDF struct {
	// Timeout bounds one render; zero means 30 seconds.
	Timeout time.Duration
	// AllocatorOptions are passed to chromedp.NewExecAllocator.
	AllocatorOptions []chromedp.ExecAllocatorOption
}

func (p PDF) Render(ctx context.Context, doc Document) ([]byte, string, error) {
	html, err := RenderHTML(doc)
	if err != nil {
		return nil, "", err
	}

	tmp, err := os.CreateTemp("", "invoice_*.html")
	if err != nil {
		return nil, "", fmt.Errorf("create temp invoice: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(html); err != nil {
		tmp.Close()
		return nil, "", fmt.Errorf("write temp invoice: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, "", err
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:], p.AllocatorOptions...)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	path, _ := filepath.Abs(tmp.Name())
	var pdf []byte
	err = chromedp.Run(browserCtx,
		chromedp.Navigate("file://"+path),
		chromedp.WaitReady("body"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdf, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(8.27).
				WithPaperHeight(11.7).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, "", fmt.Errorf("print invoice %s: %w", doc.Number, err)
	}
	return pdf, ContentTypePDF, nil
}

const invoiceHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<title>Invoice {{.Number}}</title>
<style>
@page { size: A4; margin: 20px; }
body { font-family: Arial, Helvetica, sans-serif; font-size: 12px; margin: 0; }
h1 { font-size: 18px; margin-bottom: 4px; }
table { width: 100%; border-collapse: collapse; margin-top: 12px; }
th, td { border: 1px solid #ccc; padding: 6px; text-align: left; }
td.num, th.num { text-align: right; }
.summary td { border: none; }
</style>
</head>
<body>
<h1>{{.Hospital}}</h1>
<div>Invoice <strong>{{.Number}}</strong> &middot; {{date .Date}}</div>
<div>Patient: {{.PatientName}}{{if .PatientID}} ({{.PatientID}}){{end}}</div>
<div>Type: {{.BillType}} &middot; Status: {{.Status}}</div>
<table>
<thead><tr><th>Code</th><th>Description</th><th class="num">Qty</th><th class="num">Rate</th><th class="num">Amount</th></tr></thead>
<tbody>
{{range .Lines}}<tr><td>{{.Code}}</td><td>{{.Description}}</td><td class="num">{{.Quantity}}</td><td class="num">{{money .UnitPrice}}</td><td class="num">{{money .Amount}}</td></tr>
{{end}}</tbody>
</table>
<table class="summary">
<tr><td class="num">Total</td><td class="num">{{money .Total}}</td></tr>
<tr><td class="num">Paid</td><td class="num">{{money .Paid}}</td></tr>
<tr><td class="num"><strong>Balance</strong></td><td class="num"><strong>{{money .Balance}}</strong></td></tr>
</table>
</body>
</html>
`
