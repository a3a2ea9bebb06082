// Package shortcode derives the human-readable per-day order number shown
// to users ("7/3.2025-2").
//
// The sequence is the number of orders sharing the business date whose
// creation timestamp is not after the order's own. It is computed on demand
// and never stored, so two orders inserted at the same instant can render
// the same code, and a code can shift if rows are inserted between renders.
package shortcode

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// DateLayout is the business date format stored with orders.
const DateLayout = "2006-01-02"

// Counter counts orders of a business date created at or before a moment.
type Counter interface {
	CountOrdersUpTo(ctx context.Context, date string, createdAt time.Time) (int, error)
}

// OrderRef carries the fields needed to derive a code.
type OrderRef struct {
	ID        string
	Date      string
	CreatedAt time.Time
}

// Sequencer formats short codes. A nil logger disables failure logging.
type Sequencer struct {
	counter  Counter
	logger   *slog.Logger
	location *time.Location
}

// New creates a Sequencer. loc is used to derive the business date from the
// creation timestamp when an order has no explicit date.
func New(counter Counter, logger *slog.Logger, loc *time.Location) *Sequencer {
	if loc == nil {
		loc = time.UTC
	}
	if logger != nil {
		logger = logger.With("component", "shortcode")
	}
	return &Sequencer{counter: counter, logger: logger, location: loc}
}

// BusinessDate returns the order's date, falling back to its creation date.
func (s *Sequencer) BusinessDate(ref OrderRef) (time.Time, error) {
	if d := strings.TrimSpace(ref.Date); d != "" {
		// Some stores return full timestamps for date columns.
		if len(d) > len(DateLayout) {
			d = d[:len(DateLayout)]
		}
		return time.ParseInLocation(DateLayout, d, s.location)
	}
	if ref.CreatedAt.IsZero() {
		return time.Time{}, fmt.Errorf("order %s has no date", ref.ID)
	}
	return ref.CreatedAt.In(s.location), nil
}

// Code returns "{day}/{month}.{year}-{seq}" or, when the date cannot be
// resolved or the count fails, the raw order id. It never fails.
func (s *Sequencer) Code(ctx context.Context, ref OrderRef) string {
	date, err := s.BusinessDate(ref)
	if err != nil {
		s.warn("order date unusable", ref, err)
		return ref.ID
	}
	if s.counter == nil {
		return ref.ID
	}
	seq, err := s.counter.CountOrdersUpTo(ctx, date.Format(DateLayout), ref.CreatedAt)
	if err != nil {
		s.warn("count orders failed", ref, err)
		return ref.ID
	}
	return Format(date, seq)
}

// Format renders a code from a date and sequence number.
func Format(date time.Time, seq int) string {
	return fmt.Sprintf("%d/%d.%d-%d", date.Day(), int(date.Month()), date.Year(), seq)
}

func (s *Sequencer) warn(msg string, ref OrderRef, err error) {
	if s.logger == nil {
		return
	}
	s.logger.Warn(msg, "order_id", ref.ID, "error", err)
}
