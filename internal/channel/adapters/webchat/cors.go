package webchat

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
)

// regexPrefix marks an allowed origin as a regular expression. Patterns must match the whole
// origin.
const regexPrefix = "re:"

const (
	allowMethods = "POST, GET, OPTIONS"
	allowHeaders = "Content-Type, Authorization"
)

type originMatcher struct {
	exact    map[string]struct{}
	patterns []*regexp.Regexp
	// configured is false when no allow-list was given; every origin gets the wildcard.
	configured bool
}

func newOriginMatcher(allowed []string) (*originMatcher, error) {
	m := &originMatcher{exact: map[string]struct{}{}}
	for _, raw := range allowed {
		value := strings.TrimSpace(raw)
		if value == "" {
			continue
		}
		m.configured = true
		if pattern, ok := strings.CutPrefix(value, regexPrefix); ok {
			re, err := regexp.Compile("^(?:" + pattern + ")$")
			if err != nil {
				return nil, fmt.Errorf("webchat: invalid origin pattern %q: %w", pattern, err)
			}
			m.patterns = append(m.patterns, re)
			continue
		}
		m.exact[value] = struct{}{}
	}
	return m, nil
}

func (m *originMatcher) match(origin string) bool {
	if _, ok := m.exact[origin]; ok {
		return true
	}
	for _, re := range m.patterns {
		if re.MatchString(origin) {
			return true
		}
	}
	return false
}

// headers computes the access-control headers for r. Requests without an Origin get none
// unless they are preflights.
func (m *originMatcher) headers(r *http.Request, preflight bool) http.Header {
	h := http.Header{}
	origin := r.Header.Get("Origin")
	if origin == "" && !preflight {
		return h
	}
	switch {
	case origin != "" && m.configured:
		if m.match(origin) {
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
		}
	default:
		h.Set("Access-Control-Allow-Origin", "*")
	}
	if preflight {
		h.Set("Access-Control-Allow-Methods", allowMethods)
		h.Set("Access-Control-Allow-Headers", allowHeaders)
	}
	return h
}
