package content

import (
	"net/url"
	"strings"
)

const (
	urlNotHTTPS          = 0.3
	urlSuspiciousTLD     = 0.3
	urlSuspiciousPattern = 0.2
	urlSuspiciousKeyword = 0.1
	urlLookalike         = 0.4
	urlPerExtraLevel     = 0.1
	urlUnparsable        = 0.5
)

func (a *Analyzer) analyzeURL(raw string) *URLFinding {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return &URLFinding{Score: urlUnparsable, Error: err.Error()}
	}
	if u.Host == "" {
		return &URLFinding{Score: urlUnparsable, Error: "url has no host"}
	}

	host := normalizeHost(u.Hostname())
	f := &URLFinding{
		Host:  host,
		HTTPS: strings.EqualFold(u.Scheme, "https"),
	}

	score := 0.0
	if !f.HTTPS {
		score += urlNotHTTPS
	}

	for _, tld := range suspiciousTLDs {
		if strings.HasSuffix(host, tld) {
			f.SuspiciousTLD = true
			score += urlSuspiciousTLD
			break
		}
	}

	if suspiciousHostPattern.MatchString(host) {
		f.SuspiciousPattern = true
		score += urlSuspiciousPattern
	}

	for _, kw := range suspiciousKeywords {
		if strings.Contains(host, kw) {
			f.SuspiciousKeyword = true
			score += urlSuspiciousKeyword
			break
		}
	}

	if !a.isLegitimate(host) {
		for _, legit := range a.legitimate {
			if jaroWinkler(host, legit) > a.threshold {
				f.SimilarTo = legit
				score += urlLookalike
				break
			}
		}
	}

	if levels := strings.Count(host, "."); levels > 2 {
		score += urlPerExtraLevel * float64(levels-2)
	}

	f.Score = clamp01(score)
	return f
}

// isLegitimate reports whether host is a legitimate domain or one of its subdomains
func (a *Analyzer) isLegitimate(host string) bool {
	for _, legit := range a.legitimate {
		if host == legit || strings.HasSuffix(host, "."+legit) {
			return true
		}
	}
	return false
}

// jaroWinkler calculates Jaro-Winkler similarity between two strings
// Returns value between 0 (no match) and 1 (exact match)
func jaroWinkler(s1, s2 string) float64 {
	if s1 == s2 {
		return 1.0
	}
	if len(s1) == 0 || len(s2) == 0 {
		return 0.0
	}

	matchDistance := max(len(s1), len(s2))/2 - 1
	if matchDistance < 0 {
		matchDistance = 0
	}

	s1Matches := make([]bool, len(s1))
	s2Matches := make([]bool, len(s2))

	matches := 0
	for i := 0; i < len(s1); i++ {
		start := max(0, i-matchDistance)
		end := min(i+matchDistance+1, len(s2))

		for j := start; j < end; j++ {
			if s2Matches[j] || s1[i] != s2[j] {
				continue
			}
			s1Matches[i] = true
			s2Matches[j] = true
			matches++
			break
		}
	}

	if matches == 0 {
		return 0.0
	}

	transpositions := 0
	k := 0
	for i := 0; i < len(s1); i++ {
		if !s1Matches[i] {
			continue
		}
		for !s2Matches[k] {
			k++
		}
		if s1[i] != s2[k] {
			transpositions++
		}
		k++
	}

	m := float64(matches)
	jaro := (m/float64(len(s1)) + m/float64(len(s2)) + (m-float64(transpositions)/2)/m) / 3.0

	// Winkler prefix bonus, up to 4 characters
	prefix := 0
	for i := 0; i < min(4, len(s1), len(s2)); i++ {
		if s1[i] != s2[i] {
			break
		}
		prefix++
	}

	return jaro + float64(prefix)*0.1*(1.0-jaro)
}
