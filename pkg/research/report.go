package research

import (
	"fmt"
	"strings"
	"time"
)

// compileReport is stage 6: assemble the final report from the session state
// and the synthesis. It always succeeds.
func (e *Engine) compileReport(s *session, verified []SourceRecord, syn Synthesis) *Report {
	s.mu.Lock()
	activity := make([]Activity, len(s.activity))
	copy(activity, s.activity)
	metrics := s.metrics
	gathered := len(s.gathered)
	s.mu.Unlock()

	var dist CredibilityDistribution
	for _, src := range verified {
		switch {
		case src.OverallCredibility >= 0.7:
			dist.High++
		case src.OverallCredibility >= 0.4:
			dist.Medium++
		default:
			dist.Low++
		}
	}

	duration := time.Since(s.startedAt)
	report := &Report{
		SessionID: s.id,
		Topic:     s.topic,
		Success:   true,
		Error:     syn.Error,
		StartedAt: s.startedAt,
		ResearchSummary: ResearchSummary{
			TotalQueries:    metrics.QueriesExpanded,
			TotalSources:    gathered,
			VerifiedSources: len(verified),
			TotalFindings:   len(syn.KeyFindings),
			TotalConflicts:  len(syn.Conflicts),
		},
		Findings:           syn.KeyFindings,
		SupportingEvidence: syn.SupportingEvidence,
		Consensus:          syn.Consensus,
		Conflicts:          syn.Conflicts,
		ResearchGaps:       syn.ResearchGaps,
		Recommendations:    syn.Recommendations,
		Credibility:        dist,
		Activity:           activity,
		Performance: Performance{
			Duration:     duration,
			TimeLimit:    s.opts.TimeLimit,
			WithinBudget: duration <= s.opts.TimeLimit,
			Metrics:      metrics,
		},
		Config:      s.opts,
		VisitedURLs: s.visitedURLs(),
	}

	e.Logger.Info("research report compiled",
		"session", s.id,
		"sources", report.ResearchSummary.TotalSources,
		"verified", report.ResearchSummary.VerifiedSources,
		"findings", report.ResearchSummary.TotalFindings,
		"conflicts", report.ResearchSummary.TotalConflicts,
		"duration", duration)
	return report
}

// Markdown renders the report for terminal output or archival.
func (r *Report) Markdown() string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Research Report: %s\n\n", r.Topic)
	if !r.Success {
		fmt.Fprintf(&b, "**Status:** failed (%s)\n\n", r.Error)
	}
	fmt.Fprintf(&b, "- Session: %s\n", r.SessionID)
	fmt.Fprintf(&b, "- Queries: %d | Sources: %d gathered, %d verified\n",
		r.ResearchSummary.TotalQueries, r.ResearchSummary.TotalSources, r.ResearchSummary.VerifiedSources)
	fmt.Fprintf(&b, "- Duration: %s (budget %s)\n\n",
		r.Performance.Duration.Round(time.Millisecond), r.Performance.TimeLimit)

	if len(r.Findings) > 0 {
		b.WriteString("## Key Findings\n\n")
		for i, f := range r.Findings {
			fmt.Fprintf(&b, "%d. %s *(confidence %.2f, %d source(s))*\n", i+1, f.Text, f.Confidence, f.SourceCount)
		}
		b.WriteString("\n")
	}

	if len(r.Consensus) > 0 {
		b.WriteString("## Consensus\n\n")
		for _, c := range r.Consensus {
			fmt.Fprintf(&b, "- %s *(%d sources, strength %.2f)*\n", c.Statement, c.SourceCount, c.Strength)
		}
		b.WriteString("\n")
	}

	if len(r.Conflicts) > 0 {
		b.WriteString("## Conflicts\n\n")
		for _, c := range r.Conflicts {
			fmt.Fprintf(&b, "- **%s** (severity %.2f)\n  - %q — %s\n  - %q — %s\n",
				c.Terms, c.Severity, c.First.Text, c.First.SourceURL, c.Second.Text, c.Second.SourceURL)
		}
		b.WriteString("\n")
	}

	if len(r.SupportingEvidence) > 0 {
		b.WriteString("## Supporting Evidence\n\n")
		for _, ev := range r.SupportingEvidence {
			fmt.Fprintf(&b, "- [%s](%s) *(credibility %.2f)*\n  > %s\n", ev.Title, ev.URL, ev.Credibility, ev.Excerpt)
		}
		b.WriteString("\n")
	}

	if len(r.ResearchGaps) > 0 {
		b.WriteString("## Research Gaps\n\n")
		for _, gap := range r.ResearchGaps {
			fmt.Fprintf(&b, "- %s\n", gap)
		}
		b.WriteString("\n")
	}

	if len(r.Recommendations) > 0 {
		b.WriteString("## Recommendations\n\n")
		for _, rec := range r.Recommendations {
			fmt.Fprintf(&b, "- **%s**: %s\n", rec.Type, rec.Detail)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "## Source Credibility\n\n- High (>= 0.7): %d\n- Medium (0.4 - 0.7): %d\n- Low (< 0.4): %d\n",
		r.Credibility.High, r.Credibility.Medium, r.Credibility.Low)
	return b.String()
}
