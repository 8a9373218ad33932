package pagination

// Page is an offset window for the ledger statement, whose rows are
// addressed by page number rather than by cursor.
type Page struct {
	Page  int
	Limit int
}

// Normalize starts at page one and clamps the limit.
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	p.Limit = NormalizeLimit(p.Limit)
	return p
}

// Offset is the number of rows before the page.
func (p Page) Offset() int {
	p = p.Normalize()
	return (p.Page - 1) * p.Limit
}

// TotalPages is ceil(total / limit), zero when there are no rows.
func (p Page) TotalPages(total int64) int {
	if total <= 0 {
		return 0
	}
	size := int64(p.Normalize().Limit)
	return int((total + size - 1) / size)
}
