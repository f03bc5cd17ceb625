// Package pagination slices ordered list results into numbered pages.
//
// PAGE-NUMBER PAGINATION:
// The client asks for ?page=N (1-based). The server answers with one page of
// results plus the total count and absolute links to the neighbouring pages:
//
//	{"count": 23, "next": "http://host/snippets?page=3",
//	 "previous": "http://host/snippets", "results": [...]}
//
// The link to page 1 carries no page parameter at all, so the first page has
// exactly one canonical URL. Any other query parameters (ordering, for
// example) are preserved in both links.
package pagination

import (
	"math"
	"net/http"
	"net/url"
	"strconv"

	"github.com/sakif/snippet-api/internal/apperror"
)

const (
	// PageParam is the query parameter holding the page number.
	PageParam = "page"

	DefaultPageSize = 10

	// MaxPageSize bounds both the configured page size and the LIMIT a
	// repository will accept.
	MaxPageSize = 100
)

// Page is the envelope returned by every list endpoint.
type Page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// Window is one page translated into repository terms.
type Window struct {
	Number int
	Limit  int
	Offset int
}

// Paginator holds the page size shared by all list endpoints.
type Paginator struct {
	PageSize int
}

// New returns a Paginator, falling back to DefaultPageSize for size <= 0
// and capping it at MaxPageSize.
func New(size int) Paginator {
	if size <= 0 {
		size = DefaultPageSize
	}
	return Paginator{PageSize: min(size, MaxPageSize)}
}

// Window reads the page number from r. A missing parameter means page 1.
// Anything that is not a positive integer is NotFound: there is no such page.
func (p Paginator) Window(r *http.Request) (Window, error) {
	number := 1
	if raw := r.URL.Query().Get(PageParam); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return Window{}, apperror.NotFound("page", raw)
		}
		number = n
	}

	size := p.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	// A page whose offset does not fit in an int is past any real data.
	// Pin it to math.MaxInt rather than let the product wrap around.
	offset := math.MaxInt
	if number-1 <= math.MaxInt/size {
		offset = (number - 1) * size
	}

	return Window{
		Number: number,
		Limit:  size,
		Offset: offset,
	}, nil
}

// NewPage wraps results into the envelope for window w out of count records.
//
// A page past the end is not an error: it has no results and no next link,
// but still points back at the page before it.
func NewPage[T any](r *http.Request, w Window, count int, results []T) Page[T] {
	if results == nil {
		results = []T{}
	}

	page := Page[T]{
		Count:   count,
		Results: results,
	}
	// Written as a subtraction so a huge Offset cannot overflow.
	if w.Offset < count-w.Limit {
		page.Next = link(r, w.Number+1)
	}
	if w.Number > 1 {
		page.Previous = link(r, w.Number-1)
	}
	return page
}

// link rebuilds the request URL as an absolute URL pointing at page number.
func link(r *http.Request, number int) *string {
	u := url.URL{
		Scheme: scheme(r),
		Host:   r.Host,
		Path:   r.URL.Path,
	}

	q := r.URL.Query()
	if number == 1 {
		q.Del(PageParam)
	} else {
		q.Set(PageParam, strconv.Itoa(number))
	}
	u.RawQuery = q.Encode()

	s := u.String()
	return &s
}

// scheme honours X-Forwarded-Proto so links stay https behind a TLS proxy.
func scheme(r *http.Request) string {
	if proto := r.Header.Get("X-Forwarded-Proto"); proto == "http" || proto == "https" {
		return proto
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}
