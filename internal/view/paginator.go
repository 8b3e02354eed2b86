package view

// DefaultMaxVisiblePages is the number of page buttons the review table shows
// before abbreviating with an ellipsis.
const DefaultMaxVisiblePages = 6

// PageLabels computes the abbreviated page-number buttons for a paginator:
// a starting run and an ending run of 1-based page numbers, with an implied
// ellipsis between them whenever they are not contiguous. currentPage is
// 0-based. A pure function of its three arguments.
func PageLabels(currentPage, totalPages, maxVisible int) (start, end []int) {
	if totalPages <= 0 || maxVisible < 3 {
		return nil, nil
	}
	if currentPage < 0 {
		currentPage = 0
	}
	if currentPage > totalPages-1 {
		currentPage = totalPages - 1
	}

	// Everything fits without abbreviation.
	if totalPages <= maxVisible {
		start = make([]int, totalPages)
		for i := range start {
			start[i] = i + 1
		}
		return start, nil
	}

	// Near the end the leading run collapses to the first page and the
	// trailing run carries the last maxVisible-1 pages.
	if (totalPages-1)-currentPage <= maxVisible-1 {
		start = []int{1}
		for page := totalPages - (maxVisible - 2); page <= totalPages; page++ {
			end = append(end, page)
		}
		return start, end
	}

	// Otherwise the leading run begins at the current page and stops short
	// of the final pages, which are represented by the last page alone.
	last := currentPage + maxVisible - 1
	if last > totalPages-2 {
		last = totalPages - 2
	}
	for page := currentPage + 1; page <= last; page++ {
		start = append(start, page)
	}
	return start, []int{totalPages}
}
