package app

import (
	"slices"

	"github.com/evanschultz/kanbo/internal/domain"
)

// DefaultPageSize is the number of cards per column page.
const DefaultPageSize = 5

// DefaultPageSizeOptions lists the selectable page sizes.
var DefaultPageSizeOptions = []int{5, 10, 20}

// ColumnPage is the visible window of one status column.
type ColumnPage struct {
	Status    domain.Status
	Tasks     []domain.Task
	Total     int
	Page      int
	PageCount int
	HasPrev   bool
	HasNext   bool
}

// Board is the projected view of every column.
type Board struct {
	PageSize int
	Columns  []ColumnPage
}

// Column returns the projected page for status.
func (b Board) Column(status domain.Status) ColumnPage {
	for _, col := range b.Columns {
		if col.Status == status {
			return col
		}
	}
	return ColumnPage{Status: status}
}

// Partition groups tasks by status, preserving insertion order within each.
func Partition(tasks []domain.Task) map[domain.Status][]domain.Task {
	out := make(map[domain.Status][]domain.Task, 3)
	for _, status := range domain.Statuses() {
		out[status] = []domain.Task{}
	}
	for _, t := range tasks {
		out[t.Status] = append(out[t.Status], t)
	}
	return out
}

// PageCount returns ceil(n/size), which is zero for an empty column.
func PageCount(n, size int) int {
	if n <= 0 || size <= 0 {
		return 0
	}
	return (n + size - 1) / size
}

// Paginate returns items [page*size, (page+1)*size) of tasks, clipped.
func Paginate(tasks []domain.Task, page, size int) []domain.Task {
	// Compare against the page count before multiplying so huge pages cannot overflow.
	if size <= 0 || page < 0 || page >= PageCount(len(tasks), size) {
		return []domain.Task{}
	}
	start := page * size
	end := min(start+size, len(tasks))
	return slices.Clone(tasks[start:end])
}

// Project partitions tasks and windows each column at its requested page.
func Project(tasks []domain.Task, size int, pages map[domain.Status]int) Board {
	parts := Partition(tasks)
	board := Board{PageSize: size, Columns: make([]ColumnPage, 0, len(parts))}
	for _, status := range domain.Statuses() {
		items := parts[status]
		page := pages[status]
		count := PageCount(len(items), size)
		board.Columns = append(board.Columns, ColumnPage{
			Status:    status,
			Tasks:     Paginate(items, page, size),
			Total:     len(items),
			Page:      page,
			PageCount: count,
			HasPrev:   page > 0,
			HasNext:   page < count-1,
		})
	}
	return board
}

// Pager tracks the page size and the current page of every column. The zero
// value is not usable; construct with NewPager.
type Pager struct {
	size    int
	options []int
	pages   [3]int
}

// NewPager returns a pager at page zero. An unsupported size falls back to
// the first option.
func NewPager(size int, options []int) Pager {
	if len(options) == 0 {
		options = DefaultPageSizeOptions
	}
	options = slices.Clone(options)
	if !slices.Contains(options, size) {
		size = options[0]
	}
	return Pager{size: size, options: options}
}

// Size returns the active page size.
func (p Pager) Size() int {
	return p.size
}

// Options returns the selectable page sizes.
func (p Pager) Options() []int {
	return slices.Clone(p.options)
}

// Page returns the current page of status.
func (p Pager) Page(status domain.Status) int {
	idx := status.Index()
	if idx < 0 {
		return 0
	}
	return p.pages[idx]
}

// Next advances status by one page, stopping at the last page.
func (p *Pager) Next(status domain.Status, pageCount int) {
	idx := status.Index()
	if idx < 0 {
		return
	}
	p.pages[idx] = max(min(p.pages[idx]+1, pageCount-1), 0)
}

// Prev moves status back one page, stopping at page zero.
func (p *Pager) Prev(status domain.Status) {
	idx := status.Index()
	if idx < 0 {
		return
	}
	p.pages[idx] = max(p.pages[idx]-1, 0)
}

// Reveal moves status to the page holding the task at position within that
// column.
func (p *Pager) Reveal(status domain.Status, position int) {
	idx := status.Index()
	if idx < 0 || position < 0 {
		return
	}
	p.pages[idx] = position / p.size
}

// SetPageSize switches to size and re-clamps every column against tasks.
func (p *Pager) SetPageSize(size int, tasks []domain.Task) error {
	if !slices.Contains(p.options, size) {
		return ErrInvalidPageSize
	}
	p.size = size
	p.Clamp(tasks)
	return nil
}

// CycleSize switches to the next page size option.
func (p *Pager) CycleSize(tasks []domain.Task) {
	idx := slices.Index(p.options, p.size)
	next := p.options[(idx+1)%len(p.options)]
	_ = p.SetPageSize(next, tasks)
}

// Clamp pulls every column page back into range after the collection changed.
func (p *Pager) Clamp(tasks []domain.Task) {
	parts := Partition(tasks)
	for i, status := range domain.Statuses() {
		count := PageCount(len(parts[status]), p.size)
		p.pages[i] = max(min(p.pages[i], count-1), 0)
	}
}

// Project windows tasks at the pager's current pages.
func (p Pager) Project(tasks []domain.Task) Board {
	pages := make(map[domain.Status]int, len(p.pages))
	for i, status := range domain.Statuses() {
		pages[status] = p.pages[i]
	}
	return Project(tasks, p.size, pages)
}
