package rest

import "net/url"

// BuildParams merges the query carried by token over the static
// parameters. Token values replace static values of the same key. Neither
// input is modified.
func BuildParams(static url.Values, token *ContinuationToken) url.Values {
	params := make(url.Values, len(static))
	for key, values := range static {
		params[key] = append([]string(nil), values...)
	}
	if token == nil {
		return params
	}
	for key, values := range token.Query {
		params[key] = append([]string(nil), values...)
	}
	return params
}
