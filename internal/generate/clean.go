package generate

import "strings"

var labels = []string{"title:", "description:", "tweet:"}

var quotePairs = [][2]string{
	{`"`, `"`},
	{"'", "'"},
	{"“", "”"},
	{"‘", "’"},
}

// Clean strips surrounding quotes and a leading content label from a raw
// model answer.
func Clean(raw string) string {
	s := stripQuotes(strings.TrimSpace(raw))
	for _, l := range labels {
		if len(s) >= len(l) && strings.EqualFold(s[:len(l)], l) {
			s = strings.TrimSpace(s[len(l):])
			break
		}
	}
	return stripQuotes(s)
}

func stripQuotes(s string) string {
	for _, q := range quotePairs {
		if len(s) >= len(q[0])+len(q[1]) && strings.HasPrefix(s, q[0]) && strings.HasSuffix(s, q[1]) {
			return strings.TrimSpace(s[len(q[0]) : len(s)-len(q[1])])
		}
	}
	return s
}
