package receipt_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khata-app/khata/internal/khata"
	"github.com/khata-app/khata/internal/receipt"
	"github.com/khata-app/khata/internal/view"
	"github.com/khata-app/khata/report"
)

type fakeConverter struct {
	calls   atomic.Int32
	release chan struct{}
	err     error

	mu   sync.Mutex
	html string
}

func (f *fakeConverter) RenderHTML(_ context.Context, html string, opts report.PageOptions) ([]byte, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.html = html
	f.mu.Unlock()
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return nil, f.err
	}
	if opts.PaperWidth <= 0 {
		return nil, errors.New("page size missing")
	}
	return []byte("%PDF-1.7"), nil
}

func (f *fakeConverter) lastHTML() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.html
}

func newRenderer(t *testing.T, conv receipt.Converter) *receipt.Renderer {
	t.Helper()
	engine, err := view.NewEngine()
	require.NoError(t, err)
	return receipt.NewRenderer(engine, conv, "Taimoor Akram & Brothers")
}

func sampleSession(t *testing.T) *khata.Session {
	t.Helper()
	sess, err := khata.NewSession("owner", khata.CreateInput{
		CustomerName:  "Ali Raza",
		ContactNumber: "0300-1234567",
		Items: []khata.ItemInput{
			{Name: "Rice", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.RequireFromString("50.25")},
			{Name: "Ghee", Quantity: decimal.RequireFromString("1.5"), UnitPrice: decimal.NewFromInt(1000)},
		},
	}, time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NoError(t, sess.Pay(decimal.NewFromInt(100)))
	return sess
}

func TestDocumentFormatsAmounts(t *testing.T) {
	r := newRenderer(t, &fakeConverter{})
	doc := r.Document(sampleSession(t))

	assert.Equal(t, "Taimoor Akram & Brothers", doc.StoreName)
	require.Len(t, doc.Lines, 2)
	assert.Equal(t, receipt.Line{Name: "Rice", Quantity: "2", Price: "50.25", Total: "100.50"}, doc.Lines[0])
	assert.Equal(t, receipt.Line{Name: "Ghee", Quantity: "1.5", Price: "1,000.00", Total: "1,500.00"}, doc.Lines[1])
	assert.Equal(t, "1,600.50", doc.GrandTotal)
	assert.Equal(t, "1,500.50", doc.Remaining)
}

func TestRenderIncludesEveryItemAndTotals(t *testing.T) {
	conv := &fakeConverter{}
	r := newRenderer(t, conv)
	sess := sampleSession(t)

	pdf, err := r.Render(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7", string(pdf))

	html := conv.lastHTML()
	assert.Contains(t, html, "Taimoor Akram &amp; Brothers")
	assert.Contains(t, html, "Customer Receipt")
	assert.Contains(t, html, "Ali Raza")
	assert.Contains(t, html, "0300-1234567")
	assert.Contains(t, html, "01 May 2024 10:30")
	assert.Contains(t, html, "Rice &mdash; 2 x 50.25 = 100.50")
	assert.Contains(t, html, "Ghee &mdash; 1.5 x 1,000.00 = 1,500.00")
	assert.Contains(t, html, "Grand Total: 1,600.50")
	assert.Contains(t, html, "Remaining: 1,500.50")
	assert.Equal(t, 2, strings.Count(html, `<li class="item">`))
}

func TestRenderDoesNotMutateSession(t *testing.T) {
	r := newRenderer(t, &fakeConverter{})
	sess := sampleSession(t)
	before := sess.Clone()

	_, err := r.Render(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, before, sess)
}

func TestRenderCollapsesConcurrentRequests(t *testing.T) {
	conv := &fakeConverter{release: make(chan struct{})}
	r := newRenderer(t, conv)
	sess := sampleSession(t)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pdf, err := r.Render(context.Background(), sess)
			assert.NoError(t, err)
			assert.Equal(t, "%PDF-1.7", string(pdf))
		}()
	}
	require.Eventually(t, func() bool { return conv.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(conv.release)
	wg.Wait()

	assert.Equal(t, int32(1), conv.calls.Load())
}

func TestRenderNewVersionIsNotShared(t *testing.T) {
	conv := &fakeConverter{}
	r := newRenderer(t, conv)
	sess := sampleSession(t)

	_, err := r.Render(context.Background(), sess)
	require.NoError(t, err)
	sess.UpdatedAt = sess.UpdatedAt.Add(time.Second)
	_, err = r.Render(context.Background(), sess)
	require.NoError(t, err)

	assert.Equal(t, int32(2), conv.calls.Load())
}

func TestRenderConverterFailure(t *testing.T) {
	r := newRenderer(t, &fakeConverter{err: errors.New("gotenberg down")})
	_, err := r.Render(context.Background(), sampleSession(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gotenberg down")
}

func TestRenderHonoursCallerContext(t *testing.T) {
	conv := &fakeConverter{release: make(chan struct{})}
	defer close(conv.release)
	r := newRenderer(t, conv)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := r.Render(ctx, sampleSession(t))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDocumentKeepsExactDecimals(t *testing.T) {
	max := decimal.RequireFromString("999999999.9999")
	sess, err := khata.NewSession("owner", khata.CreateInput{
		CustomerName:  "Ali Raza",
		ContactNumber: "0300-1234567",
		Items:         []khata.ItemInput{{Name: "Bulk", Quantity: max, UnitPrice: max}},
	}, time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC))
	require.NoError(t, err)

	doc := newRenderer(t, &fakeConverter{}).Document(sess)
	require.Len(t, doc.Lines, 1)
	assert.Equal(t, "999,999,999.9999", doc.Lines[0].Quantity)
	assert.Equal(t, "1,000,000,000.00", doc.Lines[0].Price)
	assert.Equal(t, "999,999,999,999,800,000.00", doc.Lines[0].Total)
	assert.Equal(t, "999,999,999,999,800,000.00", doc.GrandTotal)
}
