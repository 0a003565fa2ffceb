package platform

// DefaultPageSize is the page size used by every list endpoint.
const DefaultPageSize = 50

// PageResult is the outcome of fetching one page of a listing. Termination is
// explicit in the type rather than signalled through error control flow: End
// marks that the listing is exhausted (a not-found response on a page maps to
// End, empty on page one).
type PageResult[T any] struct {
	Items []T
	End   bool
	Err   error
}

// PageFunc fetches one page of a listing.
type PageFunc[T any] func(page, pageSize int) PageResult[T]

// Collect drains a paginated listing into a slice. Iteration stops when a page
// reports End, fails, or returns fewer items than pageSize. If the upstream's
// true final page is an exact multiple of pageSize, one extra (empty) page
// request occurs; that is deliberate, the API has no other last-page signal.
func Collect[T any](fn PageFunc[T], pageSize int) ([]T, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	var out []T
	for page := 1; ; page++ {
		res := fn(page, pageSize)
		if res.Err != nil {
			return out, res.Err
		}
		out = append(out, res.Items...)
		if res.End || len(res.Items) < pageSize {
			return out, nil
		}
	}
}
