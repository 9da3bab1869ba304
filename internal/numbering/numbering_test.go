package numbering

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryCounters struct {
	values map[string]int64
}

func (m *memoryCounters) NextValue(_ context.Context, docType string, year int) (int64, error) {
	if m.values == nil {
		m.values = make(map[string]int64)
	}
	key := docType + "-" + time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC).Format("2006")
	m.values[key]++
	return m.values[key], nil
}

func TestNextFormatsSeries(t *testing.T) {
	svc := NewService(&memoryCounters{})
	svc.WithNow(func() time.Time { return time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC) })

	first, err := svc.Next(context.Background(), DocTypeInvoice)
	require.NoError(t, err)
	require.Equal(t, "INV-2026-000001", first)

	second, err := svc.Next(context.Background(), DocTypeInvoice)
	require.NoError(t, err)
	require.Equal(t, "INV-2026-000002", second)

	// Series are independent per document type.
	order, err := svc.Next(context.Background(), DocTypeSalesOrder)
	require.NoError(t, err)
	require.Equal(t, "SO-2026-000001", order)
}

func TestNextResetsPerYear(t *testing.T) {
	counters := &memoryCounters{}
	svc := NewService(counters)
	svc.WithNow(func() time.Time { return time.Date(2026, 12, 31, 23, 59, 0, 0, time.UTC) })

	_, err := svc.Next(context.Background(), DocTypeDelivery)
	require.NoError(t, err)

	svc.WithNow(func() time.Time { return time.Date(2027, 1, 1, 0, 1, 0, 0, time.UTC) })
	next, err := svc.Next(context.Background(), DocTypeDelivery)
	require.NoError(t, err)
	require.Equal(t, "DL-2027-000001", next)
}

// lockedCounters serializes increments the way the counter-row upsert
// does in postgres.
type lockedCounters struct {
	mu    sync.Mutex
	inner memoryCounters
}

func (l *lockedCounters) NextValue(ctx context.Context, docType string, year int) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inner.NextValue(ctx, docType, year)
}

func TestNextUniqueUnderConcurrentCallers(t *testing.T) {
	svc := NewService(&lockedCounters{})
	svc.WithNow(func() time.Time { return time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC) })

	const callers = 64
	numbers := make(chan string, callers)
	errs := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		docType := DocTypeInvoice
		if i%2 == 1 {
			docType = DocTypePurchaseOrder
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			number, err := svc.Next(context.Background(), docType)
			if err != nil {
				errs <- err
				return
			}
			numbers <- number
		}()
	}
	wg.Wait()
	close(numbers)
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	seen := make(map[string]bool, callers)
	for number := range numbers {
		require.False(t, seen[number], "duplicate number %s", number)
		seen[number] = true
	}
	require.Len(t, seen, callers)
}

func TestNextUnknownType(t *testing.T) {
	svc := NewService(&memoryCounters{})
	_, err := svc.Next(context.Background(), DocType("memo"))
	require.Error(t, err)
}
