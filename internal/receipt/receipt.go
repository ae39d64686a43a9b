// Package receipt renders a printable PDF receipt for a session.
package receipt

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/khata-app/khata/internal/khata"
	"github.com/khata-app/khata/internal/view"
	"github.com/khata-app/khata/report"
)

const templateName = "receipt.html"

// quantityDigits is the number of fraction digits printed for quantities.
const quantityDigits = 4

// Converter turns HTML into a PDF document.
type Converter interface {
	RenderHTML(ctx context.Context, html string, opts report.PageOptions) ([]byte, error)
}

// Line is one formatted item of the receipt.
type Line struct {
	Name     string
	Quantity string
	Price    string
	Total    string
}

// Document is the data handed to the receipt template.
type Document struct {
	StoreName     string
	CustomerName  string
	ContactNumber string
	CreatedAt     time.Time
	Lines         []Line
	GrandTotal    string
	Remaining     string
}

// Renderer builds receipts from session snapshots. It never writes to the ledger.
type Renderer struct {
	engine    *view.Engine
	converter Converter
	storeName string
	printer   *message.Printer
	page      report.PageOptions
	group     singleflight.Group
}

// NewRenderer constructs a Renderer.
func NewRenderer(engine *view.Engine, converter Converter, storeName string) *Renderer {
	return &Renderer{
		engine:    engine,
		converter: converter,
		storeName: storeName,
		printer:   message.NewPrinter(language.English),
		page: report.PageOptions{
			PaperWidth:   8.27,
			PaperHeight:  11.7,
			MarginTop:    0.5,
			MarginBottom: 0.5,
			MarginLeft:   0.5,
			MarginRight:  0.5,
		},
	}
}

// Document projects a session into printable values.
func (r *Renderer) Document(sess *khata.Session) Document {
	doc := Document{
		StoreName:     r.storeName,
		CustomerName:  sess.CustomerName,
		ContactNumber: sess.ContactNumber,
		CreatedAt:     sess.CreatedAt,
		Lines:         make([]Line, 0, len(sess.Items)),
		GrandTotal:    r.money(sess.GrandTotal),
		Remaining:     r.money(sess.Remaining),
	}
	for _, item := range sess.Items {
		doc.Lines = append(doc.Lines, Line{
			Name:     item.Name,
			Quantity: r.quantity(item.Quantity),
			Price:    r.money(item.UnitPrice),
			Total:    r.money(item.Total),
		})
	}
	return doc
}

// HTML renders the receipt markup.
func (r *Renderer) HTML(sess *khata.Session) (string, error) {
	html, err := r.engine.RenderString(templateName, r.Document(sess))
	if err != nil {
		return "", fmt.Errorf("receipt: render template: %w", err)
	}
	return html, nil
}

// Render produces the PDF. Concurrent requests for the same session version share one conversion.
func (r *Renderer) Render(ctx context.Context, sess *khata.Session) ([]byte, error) {
	key := sess.ID + "@" + strconv.FormatInt(sess.UpdatedAt.UnixNano(), 10)
	snapshot := sess.Clone()
	ch := r.group.DoChan(key, func() (interface{}, error) {
		html, err := r.HTML(snapshot)
		if err != nil {
			return nil, err
		}
		// The conversion outlives any single caller; waiters drop out on their own ctx.
		pdf, err := r.converter.RenderHTML(context.WithoutCancel(ctx), html, r.page)
		if err != nil {
			return nil, fmt.Errorf("receipt: convert to pdf: %w", err)
		}
		return pdf, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

// money and quantity hand the exact decimal string to the formatter, which only
// adds grouping; rounding happens on the decimal itself.
func (r *Renderer) money(d decimal.Decimal) string {
	return r.printer.Sprint(number.Decimal(d.StringFixed(2), number.Scale(2)))
}

func (r *Renderer) quantity(d decimal.Decimal) string {
	return r.printer.Sprint(number.Decimal(d.Round(quantityDigits).String(), number.MaxFractionDigits(quantityDigits)))
}

var _ khata.ReceiptRenderer = (*Renderer)(nil)
