// Package featureflags gates optional ArtVault behavior from the FEATURE_FLAGS setting.
//
// The setting is a comma list of name=value pairs such as
// "webp_variants=25%,exhibition_geo=on". A value is either a switch
// (on/off, true/false, 1/0) or a percentage rollout keyed by user ID.
package featureflags

import (
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
)

type rule struct {
	raw     string
	on      bool
	percent int // -1 when the rule is a plain switch
}

func (r rule) allows(name string, userID uint) bool {
	if r.percent < 0 {
		return r.on
	}
	switch {
	case r.percent == 0:
		return false
	case r.percent >= 100:
		return true
	case userID == 0:
		return false
	}
	return bucket(name, userID) < r.percent
}

// Manager holds the parsed flag rules. A nil Manager reports every flag off.
type Manager struct {
	rules    map[string]rule
	rejected []string
}

// NewManager parses raw. Entries that cannot be understood are kept aside
// and reported by Rejected instead of failing startup.
func NewManager(raw string) *Manager {
	m := &Manager{rules: make(map[string]rule)}
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, value, ok := strings.Cut(entry, "=")
		name, value = clean(name), clean(value)
		if !ok || name == "" {
			m.rejected = append(m.rejected, entry)
			continue
		}
		r, ok := parseRule(value)
		if !ok {
			m.rejected = append(m.rejected, entry)
			continue
		}
		m.rules[name] = r
	}
	return m
}

func parseRule(value string) (rule, bool) {
	switch value {
	case "on", "true", "1":
		return rule{raw: value, on: true, percent: -1}, true
	case "off", "false", "0":
		return rule{raw: value, percent: -1}, true
	}
	digits, isPct := strings.CutSuffix(value, "%")
	if !isPct {
		return rule{}, false
	}
	pct, err := strconv.Atoi(digits)
	if err != nil || pct < 0 {
		return rule{}, false
	}
	return rule{raw: value, percent: pct}, true
}

// Enabled evaluates name for userID. Unknown flags are off. A partial
// rollout never includes anonymous callers (userID 0).
func (m *Manager) Enabled(name string, userID uint) bool {
	if m == nil {
		return false
	}
	key := clean(name)
	r, ok := m.rules[key]
	if !ok {
		return false
	}
	return r.allows(key, userID)
}

// Raw returns the configured value of every accepted flag.
func (m *Manager) Raw() map[string]string {
	out := make(map[string]string)
	if m == nil {
		return out
	}
	for name, r := range m.rules {
		out[name] = r.raw
	}
	return out
}

// Snapshot evaluates every accepted flag for one user.
func (m *Manager) Snapshot(userID uint) map[string]bool {
	out := make(map[string]bool)
	if m == nil {
		return out
	}
	for name, r := range m.rules {
		out[name] = r.allows(name, userID)
	}
	return out
}

// Rejected lists the entries NewManager could not parse, sorted.
func (m *Manager) Rejected() []string {
	if m == nil {
		return nil
	}
	out := append([]string(nil), m.rejected...)
	sort.Strings(out)
	return out
}

func clean(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// bucket places a user in [0,100) for a flag; stable across restarts.
func bucket(name string, userID uint) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	_, _ = h.Write([]byte{':'})
	_, _ = h.Write([]byte(strconv.FormatUint(uint64(userID), 10)))
	return int(h.Sum32() % 100)
}
