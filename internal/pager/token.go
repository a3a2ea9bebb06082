// Package pager encodes list-browsing state into compact action tokens and
// provides the page arithmetic shared by every paged view.
package pager

import (
	"net/url"
	"strconv"
	"strings"
)

const (
	// Prefix marks a pagination token.
	Prefix = "pg"
	// MaxTokenLen is the transport payload budget for a single action token.
	MaxTokenLen = 64
	// SessionRef replaces a filter value that did not fit in the token; the
	// value itself is then kept in the chat session.
	SessionRef = "@"

	sep = ":"
)

// Kind identifies which list a token pages through.
type Kind string

const (
	KindClientsView    Kind = "cv"
	KindClientsEdit    Kind = "ce"
	KindProducts       Kind = "pr"
	KindOrdersByDate   Kind = "od"
	KindOrdersByClient Kind = "oc"
	KindSearchFilter   Kind = "sf"
	KindSearchText     Kind = "st"
	KindSearchOptions  Kind = "so"
	KindOrderClients   Kind = "nc"
	KindOrderProducts  Kind = "np"
	KindInventory      Kind = "iv"
)

// Token is the decoded form of a pagination action token.
type Token struct {
	Kind        Kind
	FilterKey   string
	FilterValue string
	// FromSession is set when the filter value lives in the session instead
	// of the token.
	FromSession bool
	Page        int
}

// Encode renders t as "pg:<kind>:<key>:<value>:<page>". Key and value are
// query-escaped so they never contain the delimiter.
func Encode(t Token) string {
	value := url.QueryEscape(t.FilterValue)
	if t.FromSession {
		value = SessionRef
	}
	var b strings.Builder
	b.Grow(len(Prefix) + len(t.Kind) + len(t.FilterKey) + len(value) + 8)
	b.WriteString(Prefix)
	b.WriteString(sep)
	b.WriteString(string(t.Kind))
	b.WriteString(sep)
	b.WriteString(url.QueryEscape(t.FilterKey))
	b.WriteString(sep)
	b.WriteString(value)
	b.WriteString(sep)
	b.WriteString(strconv.Itoa(t.Page))
	return b.String()
}

// Decode parses a pagination token. It reports false only when raw is not a
// pagination token at all; malformed segments degrade to zero values and a
// missing or non-numeric page decodes as 0.
func Decode(raw string) (Token, bool) {
	parts := strings.Split(raw, sep)
	if len(parts) == 0 || parts[0] != Prefix {
		return Token{}, false
	}
	seg := func(i int) string {
		if i < len(parts) {
			return parts[i]
		}
		return ""
	}

	t := Token{Kind: Kind(seg(1))}
	t.FilterKey = unescape(seg(2))
	if v := seg(3); v == SessionRef {
		t.FromSession = true
	} else {
		t.FilterValue = unescape(v)
	}
	if page, err := strconv.Atoi(strings.TrimSpace(seg(4))); err == nil {
		t.Page = page
	}
	return t, true
}

// Fits reports whether the encoded token is within the transport budget.
func Fits(token string) bool {
	return len(token) <= MaxTokenLen
}

// EncodeFit encodes t, switching to a session reference when the filter
// value would push the token over budget. The second return value is true
// when the caller must keep t.FilterValue in the session.
func EncodeFit(t Token) (string, bool) {
	token := Encode(t)
	if Fits(token) || t.FilterValue == "" {
		return token, false
	}
	t.FromSession = true
	return Encode(t), true
}

func unescape(s string) string {
	v, err := url.QueryUnescape(s)
	if err != nil {
		return s
	}
	return v
}
