package pager

// DefaultSize is the page size used when none is configured.
const DefaultSize = 8

// LastPage returns the zero-based index of the last page. An empty list has a
// single (empty) page 0.
func LastPage(total, size int) int {
	if size <= 0 {
		size = DefaultSize
	}
	if total <= 0 {
		return 0
	}
	return (total - 1) / size
}

// Clamp forces page into [0, LastPage(total, size)].
func Clamp(page, total, size int) int {
	if page < 0 {
		return 0
	}
	if last := LastPage(total, size); page > last {
		return last
	}
	return page
}

// Offset returns the row offset of page.
func Offset(page, size int) int {
	if size <= 0 {
		size = DefaultSize
	}
	if page < 0 {
		page = 0
	}
	return page * size
}

// Window describes a clamped page and which navigation affordances apply.
type Window struct {
	Page    int
	Last    int
	Size    int
	Total   int
	HasPrev bool
	HasNext bool
}

// NewWindow clamps page against total and size.
func NewWindow(page, total, size int) Window {
	if size <= 0 {
		size = DefaultSize
	}
	p := Clamp(page, total, size)
	last := LastPage(total, size)
	return Window{
		Page:    p,
		Last:    last,
		Size:    size,
		Total:   total,
		HasPrev: p > 0,
		HasNext: p < last,
	}
}

// Offset returns the row offset of the window's page.
func (w Window) Offset() int {
	return Offset(w.Page, w.Size)
}
