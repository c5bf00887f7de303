package rest

import (
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
)

// DefaultNextLinkPath is where the API puts the URL of the next page.
const DefaultNextLinkPath = "links.next"

// ContinuationToken carries pagination state between two page fetches. It
// always holds the parsed query of the next-page link; the scheme, host and
// path of that link are discarded and the stream's own path is reused.
type ContinuationToken struct {
	Query url.Values
}

// NewContinuationToken parses a next-page link. Blank query values are
// dropped.
func NewContinuationToken(link string) (*ContinuationToken, error) {
	u, err := url.Parse(link)
	if err != nil {
		return nil, err
	}
	parsed, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return nil, err
	}
	query := make(url.Values, len(parsed))
	for key, values := range parsed {
		for _, v := range values {
			if v != "" {
				query.Add(key, v)
			}
		}
	}
	return &ContinuationToken{Query: query}, nil
}

// Paginator decides from one decoded page whether another page exists.
type Paginator interface {
	NextToken(body []byte) (*ContinuationToken, bool)
}

// LinkPaginator follows a next-page URL found at a nested JSON path.
// Missing structure at any level, non-string values, empty strings and
// unparseable URLs all mean there is no next page.
type LinkPaginator struct {
	Path string
}

// NewLinkPaginator returns a paginator reading links.next
func NewLinkPaginator() *LinkPaginator {
	return &LinkPaginator{Path: DefaultNextLinkPath}
}

// NextToken implements Paginator
func (p *LinkPaginator) NextToken(body []byte) (*ContinuationToken, bool) {
	path := p.Path
	if path == "" {
		path = DefaultNextLinkPath
	}

	next := gjson.GetBytes(body, path)
	if next.Type != gjson.String {
		return nil, false
	}
	link := strings.TrimSpace(next.Str)
	if link == "" {
		return nil, false
	}

	token, err := NewContinuationToken(link)
	if err != nil {
		return nil, false
	}
	return token, true
}
