package htmlutil

import (
	"fmt"
	"net/url"
	"regexp"

	"github.com/PuerkitoBio/goquery"
)

var ErrFormNotFound = fmt.Errorf("no form matching the query was found")

// FormQuery locates a form by element id first, then by a pattern on its
// action attribute. At least one of the two must be set.
type FormQuery struct {
	Id            string
	ActionPattern *regexp.Regexp
}

// Form is the extracted state of an html form: the resolved absolute action
// url and the default value of every named input.
type Form struct {
	Action string
	Fields map[string]string
}

// FindForm extracts the first form in doc matching query. The action url is
// resolved against base; an empty action resolves to base itself. Returns
// ErrFormNotFound when neither the id nor the action pattern matches, which
// callers should treat as fatal for the session: the page is not the one we
// think it is.
func FindForm(doc *goquery.Document, base *url.URL, query FormQuery) (Form, error) {
	var sel *goquery.Selection
	if query.Id != "" {
		sel = doc.Find(fmt.Sprintf("form#%s", query.Id)).First()
	}
	if (sel == nil || sel.Length() == 0) && query.ActionPattern != nil {
		doc.Find("form").EachWithBreak(func(_ int, form *goquery.Selection) bool {
			if query.ActionPattern.MatchString(form.AttrOr("action", "")) {
				sel = form
				return false
			}
			return true
		})
	}
	if sel == nil || sel.Length() == 0 {
		return Form{}, ErrFormNotFound
	}

	action, err := url.Parse(sel.AttrOr("action", ""))
	if err != nil {
		return Form{}, fmt.Errorf("parse form action: %w", err)
	}

	fields := map[string]string{}
	sel.Find("input[name]").Each(func(_ int, input *goquery.Selection) {
		name := input.AttrOr("name", "")
		if name == "" {
			return
		}
		fields[name] = input.AttrOr("value", "")
	})

	return Form{
		Action: base.ResolveReference(action).String(),
		Fields: fields,
	}, nil
}
