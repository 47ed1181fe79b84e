package nlu

import (
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

const isoDate = "2006-01-02"

func newDateParser() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}

// parseDate resolves a date mentioned anywhere in the query to a YYYY-MM-DD
// string. The literal today/tomorrow fallback applies only when the
// natural-language parser found nothing.
func parseDate(w *when.Parser, query string, now time.Time) *string {
	if r, err := w.Parse(query, now); err == nil && r != nil {
		d := r.Time.UTC().Format(isoDate)
		return &d
	}

	ql := strings.ToLower(query)
	switch {
	case strings.Contains(ql, "today"):
		d := now.UTC().Format(isoDate)
		return &d
	case strings.Contains(ql, "tomorrow"):
		d := now.UTC().AddDate(0, 0, 1).Format(isoDate)
		return &d
	}
	return nil
}
