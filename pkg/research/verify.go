package research

import (
	"net/url"
	"sort"
	"strings"
)

// verificationCutoff drops sources whose combined credibility is too weak to
// contribute claims.
const verificationCutoff = 0.3

// Factor weights for overall credibility.
const (
	weightDomainAuthority     = 0.3
	weightContentQuality      = 0.25
	weightSourceType          = 0.2
	weightRecency             = 0.1
	weightAuthorityIndicators = 0.1
	weightCitationPotential   = 0.05
)

// verifySources is stage 4: score six credibility factors per source, drop
// everything below the cutoff, and return the survivors sorted most credible
// first.
func (e *Engine) verifySources(s *session, sources []SourceRecord) []SourceRecord {
	verified := make([]SourceRecord, 0, len(sources))
	for _, src := range sources {
		factors := scoreCredibility(src)
		overall := clamp01(factors.DomainAuthority*weightDomainAuthority +
			factors.ContentQuality*weightContentQuality +
			factors.SourceType*weightSourceType +
			factors.Recency*weightRecency +
			factors.AuthorityIndicators*weightAuthorityIndicators +
			factors.CitationPotential*weightCitationPotential)

		if overall < verificationCutoff {
			e.Logger.Debug("dropping low-credibility source",
				"session", s.id, "url", src.URL, "credibility", overall)
			s.mu.Lock()
			s.metrics.SourcesDropped++
			s.mu.Unlock()
			continue
		}

		src.Credibility = factors
		src.OverallCredibility = overall
		verified = append(verified, src)
	}

	sort.SliceStable(verified, func(a, b int) bool {
		return verified[a].OverallCredibility > verified[b].OverallCredibility
	})

	s.mu.Lock()
	s.metrics.SourcesVerified = len(verified)
	for _, src := range verified {
		s.credibilityByURL[src.URL] = src.OverallCredibility
	}
	s.mu.Unlock()
	return verified
}

func scoreCredibility(src SourceRecord) CredibilityFactors {
	return CredibilityFactors{
		DomainAuthority:     authorityScore(src.URL),
		ContentQuality:      contentQualityScore(src),
		SourceType:          sourceTypeScore(src.URL),
		Recency:             0.6, // publication dates are unreliable across extractors
		AuthorityIndicators: authorityIndicatorScore(src.Content),
		CitationPotential:   citationPotentialScore(src.Content),
	}
}

// contentQualityScore rewards substantial, readable content.
func contentQualityScore(src SourceRecord) float64 {
	score := 0.3
	switch {
	case src.WordCount >= 800:
		score += 0.3
	case src.WordCount >= 300:
		score += 0.15
	}
	score += 0.3 * src.Readability
	if strings.Contains(src.Content, "\n\n") {
		score += 0.1
	}
	return clamp01(score)
}

// sourceTypeScore classifies the publisher from its URL.
func sourceTypeScore(rawURL string) float64 {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return 0.3
	}
	host := strings.ToLower(u.Host)
	lower := strings.ToLower(rawURL)

	switch {
	case strings.HasSuffix(host, ".edu") || strings.Contains(host, "arxiv.org") ||
		strings.Contains(lower, "journal"):
		return 0.9
	case strings.HasSuffix(host, ".gov"):
		return 0.85
	case strings.HasSuffix(host, ".org"):
		return 0.7
	case strings.Contains(host, "medium.com") || strings.Contains(lower, "blog"):
		return 0.4
	case strings.Contains(host, "reddit.com") || strings.Contains(lower, "forum"):
		return 0.3
	default:
		return 0.5
	}
}

var authorityMarkers = []string{
	"et al", "doi:", "references", "bibliography",
	"university", "professor", "phd", "peer review",
}

func authorityIndicatorScore(content string) float64 {
	lower := strings.ToLower(content)
	score := 0.2
	for _, marker := range authorityMarkers {
		if strings.Contains(lower, marker) {
			score += 0.2
		}
	}
	return clamp01(score)
}

// citationPotentialScore rewards quotable content: statistics, percentages
// and quoted passages.
func citationPotentialScore(content string) float64 {
	if content == "" {
		return 0
	}
	score := 0.2
	digits := 0
	for _, r := range content {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	if float64(digits)/float64(len(content)) > 0.01 {
		score += 0.3
	}
	if strings.Contains(content, "%") {
		score += 0.2
	}
	if strings.Contains(content, `"`) {
		score += 0.2
	}
	return clamp01(score)
}
