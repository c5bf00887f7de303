package rest

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinkPaginatorNextToken(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		want   url.Values
		wantOK bool
	}{
		{
			name:   "absolute link",
			body:   `{"data":[],"links":{"next":"https://api-v2.returnless.com/2023-01/tags?page=2"}}`,
			want:   url.Values{"page": {"2"}},
			wantOK: true,
		},
		{
			name:   "cursor and include",
			body:   `{"links":{"next":"/2023-01/return-orders?cursor=abc&include=customer%2Cnotes"}}`,
			want:   url.Values{"cursor": {"abc"}, "include": {"customer,notes"}},
			wantOK: true,
		},
		{
			name:   "blank values dropped",
			body:   `{"links":{"next":"https://x/tags?page=3&filter="}}`,
			want:   url.Values{"page": {"3"}},
			wantOK: true,
		},
		{name: "null next", body: `{"links":{"next":null}}`},
		{name: "empty next", body: `{"links":{"next":""}}`},
		{name: "no links", body: `{"data":[]}`},
		{name: "links not an object", body: `{"links":"nope"}`},
		{name: "numeric next", body: `{"links":{"next":2}}`},
		{name: "unparseable link", body: `{"links":{"next":"http://[::1"}}`},
		{name: "bad query", body: `{"links":{"next":"https://x/tags?page=%zz"}}`},
	}

	p := NewLinkPaginator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, ok := p.NextToken([]byte(tt.body))
			assert.Equal(t, tt.wantOK, ok)
			if !tt.wantOK {
				assert.Nil(t, token)
				return
			}
			require.NotNil(t, token)
			assert.Equal(t, tt.want, token.Query)
		})
	}
}

func TestLinkPaginatorCustomPath(t *testing.T) {
	p := &LinkPaginator{Path: "meta.pagination.next"}
	token, ok := p.NextToken([]byte(`{"meta":{"pagination":{"next":"https://x/y?page=9"}}}`))
	require.True(t, ok)
	assert.Equal(t, "9", token.Query.Get("page"))
}
