package crawler

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RobotsEnforcer checks robots.txt directives per host with a small cache.
// Rule evaluation is prefix-based with allow-overrides-deny semantics: any
// matching Allow rule overrides any matching Disallow rule, with no
// specificity ranking between them.
type RobotsEnforcer struct {
	client    *http.Client
	cache     sync.Map
	userAgent string
	logger    *zap.Logger
}

// NewRobotsEnforcer builds a RobotsPolicy respecting the config toggle.
func NewRobotsEnforcer(respect bool, userAgent string, logger *zap.Logger) RobotsPolicy {
	if !respect {
		return &allowAllPolicy{}
	}
	return &RobotsEnforcer{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		userAgent: userAgent,
		logger:    logger,
	}
}

// Allowed implements RobotsPolicy. Fetch or parse trouble defaults to allow.
func (r *RobotsEnforcer) Allowed(ctx context.Context, rawURL string) bool {
	if r == nil {
		return true
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	rules, err := r.load(ctx, parsed)
	if err != nil {
		r.logger.Warn("robots fetch failed; allowing access",
			zap.String("host", parsed.Host), zap.Error(err))
		return true
	}
	if rules == nil {
		return true
	}
	return rules.allows(parsed.Path)
}

func (r *RobotsEnforcer) load(ctx context.Context, parsed *url.URL) (*robotsRules, error) {
	hostKey := strings.ToLower(parsed.Host)
	if cached, ok := r.cache.Load(hostKey); ok {
		rules, assertOK := cached.(*robotsRules)
		if !assertOK {
			return nil, fmt.Errorf("robots cache type mismatch: %T", cached)
		}
		return rules, nil
	}

	robotsURL := url.URL{Scheme: parsed.Scheme, Host: parsed.Host, Path: "/robots.txt"}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("new robots request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			r.logger.Debug("close robots response body", zap.Error(cerr))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		// Missing or errored robots.txt permits everything. Cache the
		// nil ruleset so the host is not re-probed per URL.
		r.cache.Store(hostKey, (*robotsRules)(nil))
		return nil, nil
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read robots body: %w", err)
	}
	rules := parseRobots(string(body), r.userAgent)
	r.cache.Store(hostKey, rules)
	return rules, nil
}

// robotsRules is the accumulated rule table for the matching agent groups.
type robotsRules struct {
	disallow []string
	allow    []string
}

// parseRobots walks the file line by line. A User-agent line opens a fresh
// group, resetting both accumulators; the group matches when its value is "*"
// or a case-insensitive substring of the active user agent. Rules inside a
// non-matching group are discarded until the next User-agent line.
func parseRobots(content, userAgent string) *robotsRules {
	rules := &robotsRules{}
	agentLower := strings.ToLower(userAgent)
	matching := false

	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "user-agent":
			matching = value == "*" || strings.Contains(agentLower, strings.ToLower(value))
			rules.disallow = nil
			rules.allow = nil
		case "disallow":
			if matching {
				rules.disallow = append(rules.disallow, value)
			}
		case "allow":
			if matching {
				rules.allow = append(rules.allow, value)
			}
		}
	}
	return rules
}

// allows evaluates a path against the rule table. Absence of a matching
// disallow rule means allowed.
func (r *robotsRules) allows(path string) bool {
	for _, rule := range r.disallow {
		if !pathMatchesRule(path, rule) {
			continue
		}
		for _, allowRule := range r.allow {
			if pathMatchesRule(path, allowRule) {
				return true
			}
		}
		return false
	}
	return true
}

// pathMatchesRule does prefix matching, treating "*" in the rule as a
// wildcard.
func pathMatchesRule(path, rule string) bool {
	if rule == "" {
		return false
	}
	if strings.Contains(rule, "*") {
		pattern := strings.ReplaceAll(regexp.QuoteMeta(rule), `\*`, ".*")
		re, err := regexp.Compile("^" + pattern)
		if err != nil {
			return false
		}
		return re.MatchString(path)
	}
	return strings.HasPrefix(path, rule)
}

type allowAllPolicy struct{}

func (a *allowAllPolicy) Allowed(context.Context, string) bool { return true }
