package booking

import (
	"cmp"
	"context"
	"sort"
	"sync"

	"github.com/nekogravitycat/rental-booking-backend/internal/pkg/daterange"
	"github.com/nekogravitycat/rental-booking-backend/internal/pkg/money"
)

// MemoryRepository keeps bookings in memory. A single mutex is held for the
// whole of each transaction, so transactions are fully serialized. It mirrors
// the database constraints that matter to the engine: the overlap exclusion
// on pending and confirmed bookings and the total consistency check.
type MemoryRepository struct {
	mu       sync.RWMutex
	bookings map[string]*Booking
	refunds  map[string][]*RefundRecord
	history  map[string][]*PaymentHistoryEntry
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		bookings: make(map[string]*Booking),
		refunds:  make(map[string][]*RefundRecord),
		history:  make(map[string][]*PaymentHistoryEntry),
	}
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return b.Clone(), nil
}

func (r *MemoryRepository) FindOverlapping(ctx context.Context, propertyID string, rng daterange.Range, statuses []Status, excludeBookingID string) ([]*Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return findOverlapping(r.bookings, nil, propertyID, rng, statuses, excludeBookingID), nil
}

func (r *MemoryRepository) List(ctx context.Context, filter Filter) ([]*Booking, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*Booking
	for _, b := range r.bookings {
		if matchesFilter(b, filter) {
			matched = append(matched, b.Clone())
		}
	}
	sortBookings(matched, filter)

	total := len(matched)
	page, pageSize := pageBounds(filter)
	start := (page - 1) * pageSize
	if start >= total {
		return []*Booking{}, total, nil
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (r *MemoryRepository) ListRefunds(ctx context.Context, bookingID string) ([]*RefundRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*RefundRecord, 0, len(r.refunds[bookingID]))
	for _, rec := range r.refunds[bookingID] {
		c := *rec
		out = append(out, &c)
	}
	return out, nil
}

func (r *MemoryRepository) ListPaymentHistory(ctx context.Context, bookingID string) ([]*PaymentHistoryEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*PaymentHistoryEntry, 0, len(r.history[bookingID]))
	for _, e := range r.history[bookingID] {
		c := *e
		out = append(out, &c)
	}
	return out, nil
}

func (r *MemoryRepository) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx := &memoryTx{
		repo:    r,
		staged:  make(map[string]*Booking),
		refunds: make(map[string][]*RefundRecord),
		history: make(map[string][]*PaymentHistoryEntry),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for id, b := range tx.staged {
		r.bookings[id] = b
	}
	for id, recs := range tx.refunds {
		r.refunds[id] = append(r.refunds[id], recs...)
	}
	for id, entries := range tx.history {
		r.history[id] = append(r.history[id], entries...)
	}
	return nil
}

// memoryTx buffers writes until the transaction function returns. Reads see
// the buffered writes over the committed state.
type memoryTx struct {
	repo    *MemoryRepository
	staged  map[string]*Booking
	refunds map[string][]*RefundRecord
	history map[string][]*PaymentHistoryEntry
}

// LockProperty is a no-op: the repository mutex is already held.
func (t *memoryTx) LockProperty(ctx context.Context, propertyID string) error {
	return nil
}

func (t *memoryTx) FindOverlapping(ctx context.Context, propertyID string, rng daterange.Range, statuses []Status, excludeBookingID string) ([]*Booking, error) {
	return findOverlapping(t.repo.bookings, t.staged, propertyID, rng, statuses, excludeBookingID), nil
}

func (t *memoryTx) GetForUpdate(ctx context.Context, id string) (*Booking, error) {
	if b, ok := t.staged[id]; ok {
		return b.Clone(), nil
	}
	if b, ok := t.repo.bookings[id]; ok {
		return b.Clone(), nil
	}
	return nil, ErrNotFound
}

func (t *memoryTx) Create(ctx context.Context, b *Booking) error {
	if err := t.checkConstraints(b); err != nil {
		return err
	}
	t.staged[b.ID] = b.Clone()
	return nil
}

func (t *memoryTx) Update(ctx context.Context, b *Booking) error {
	if _, err := t.GetForUpdate(ctx, b.ID); err != nil {
		return err
	}
	if err := t.checkConstraints(b); err != nil {
		return err
	}
	t.staged[b.ID] = b.Clone()
	return nil
}

func (t *memoryTx) RefundedTotal(ctx context.Context, bookingID string) (money.Amount, error) {
	var sum money.Amount
	for _, rec := range t.repo.refunds[bookingID] {
		sum = sum.Add(rec.Amount)
	}
	for _, rec := range t.refunds[bookingID] {
		sum = sum.Add(rec.Amount)
	}
	return sum, nil
}

func (t *memoryTx) CreateRefund(ctx context.Context, rec *RefundRecord) error {
	c := *rec
	t.refunds[rec.BookingID] = append(t.refunds[rec.BookingID], &c)
	return nil
}

func (t *memoryTx) AppendPaymentHistory(ctx context.Context, e *PaymentHistoryEntry) error {
	c := *e
	t.history[e.BookingID] = append(t.history[e.BookingID], &c)
	return nil
}

func (t *memoryTx) checkConstraints(b *Booking) error {
	if b.TotalAmount != money.Sum(b.BasePrice, b.CleaningFee, b.ServiceFee) {
		return ErrTotalMismatch
	}
	if b.Status != StatusPending && b.Status != StatusConfirmed {
		return nil
	}
	clash := findOverlapping(t.repo.bookings, t.staged, b.PropertyID, b.Range(),
		[]Status{StatusPending, StatusConfirmed}, b.ID)
	if len(clash) > 0 {
		return ErrDateConflict
	}
	return nil
}

// findOverlapping scans committed bookings, with staged ones taking precedence.
func findOverlapping(committed, staged map[string]*Booking, propertyID string, rng daterange.Range, statuses []Status, excludeBookingID string) []*Booking {
	wanted := make(map[Status]bool, len(statuses))
	for _, s := range statuses {
		wanted[s] = true
	}

	var out []*Booking
	consider := func(b *Booking) {
		if b.PropertyID != propertyID || !wanted[b.Status] {
			return
		}
		if excludeBookingID != "" && b.ID == excludeBookingID {
			return
		}
		if b.Range().Overlaps(rng) {
			out = append(out, b.Clone())
		}
	}
	for id, b := range committed {
		if _, shadowed := staged[id]; shadowed {
			continue
		}
		consider(b)
	}
	for _, b := range staged {
		consider(b)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CheckIn.Equal(out[j].CheckIn) {
			return out[i].ID < out[j].ID
		}
		return out[i].CheckIn.Before(out[j].CheckIn)
	})
	return out
}

func matchesFilter(b *Booking, f Filter) bool {
	switch {
	case f.GuestID != "" && b.GuestID != f.GuestID:
		return false
	case f.HostID != "" && b.HostID != f.HostID:
		return false
	case f.PropertyID != "" && b.PropertyID != f.PropertyID:
		return false
	case f.Status != "" && b.Status != f.Status:
		return false
	case f.PaymentStatus != "" && b.PaymentStatus != f.PaymentStatus:
		return false
	case f.From != nil && !b.CheckOut.After(*f.From):
		return false
	case f.To != nil && !b.CheckIn.Before(*f.To):
		return false
	}
	return true
}

func sortBookings(bs []*Booking, f Filter) {
	asc := f.SortOrder == "asc" || f.SortOrder == "ASC"
	less := func(a, b *Booking) int {
		switch f.SortBy {
		case "created_at":
			return a.CreatedAt.Compare(b.CreatedAt)
		case "total_amount":
			return cmp.Compare(a.TotalAmount, b.TotalAmount)
		default:
			return a.CheckIn.Compare(b.CheckIn)
		}
	}
	sort.SliceStable(bs, func(i, j int) bool {
		c := less(bs[i], bs[j])
		if c == 0 {
			if asc {
				return bs[i].ID < bs[j].ID
			}
			return bs[i].ID > bs[j].ID
		}
		if asc {
			return c < 0
		}
		return c > 0
	})
}
