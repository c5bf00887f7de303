package rest

import (
	"net/url"
	"regexp"

	"github.com/ajitpratap0/tap-returnless/pkg/errors"
	"github.com/ajitpratap0/tap-returnless/pkg/models"
)

// Context is handed from one parent record to one child sync. It supplies
// the values of the child's path placeholders.
type Context map[string]interface{}

// ChildContextFunc projects a parent record into the context of its
// children. A nil func means the stream drives no children.
type ChildContextFunc func(parent *models.Record, inherited Context) (Context, error)

// ProjectField returns a ChildContextFunc that copies field from the parent
// record into key, e.g. ProjectField("id", "form_id").
func ProjectField(field, key string) ChildContextFunc {
	return func(parent *models.Record, inherited Context) (Context, error) {
		value, ok := parent.Get(field)
		if !ok || value == nil {
			return nil, errors.Newf(errors.ErrorTypeData, "parent record has no %s", field)
		}
		child := make(Context, len(inherited)+1)
		for k, v := range inherited {
			child[k] = v
		}
		child[key] = value
		return child, nil
	}
}

var placeholderPattern = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Placeholders returns the placeholder names of a path template in order
func Placeholders(template string) []string {
	matches := placeholderPattern.FindAllStringSubmatch(template, -1)
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m[1])
	}
	return names
}

// ResolvePath fills the placeholders of template from sctx. Values are
// path-escaped; a missing or non-scalar value is an error.
func ResolvePath(template string, sctx Context) (string, error) {
	var resolveErr error
	path := placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		name := match[1 : len(match)-1]
		value, ok := sctx[name]
		if !ok || value == nil {
			if resolveErr == nil {
				resolveErr = errors.Newf(errors.ErrorTypeInternal, "no context value for {%s} in %s", name, template)
			}
			return match
		}
		text, ok := models.ScalarString(value)
		if !ok || text == "" {
			if resolveErr == nil {
				resolveErr = errors.Newf(errors.ErrorTypeData, "context value for {%s} is not a scalar", name)
			}
			return match
		}
		return url.PathEscape(text)
	})
	if resolveErr != nil {
		return "", resolveErr
	}
	return path, nil
}
