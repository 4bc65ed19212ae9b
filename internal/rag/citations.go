package rag

import (
	"fmt"
	"strings"
)

// ValidateCitations returns a cleaned copy of the payload in which
// every citation lies in [1, maxCid].
//
// Per citation list, out-of-range integers are dropped and duplicates
// collapsed preserving first-seen order. An item or rejected entry
// left with zero citations is discarded — an ungrounded claim is never
// kept unsupported. Sections left with zero items are discarded too.
func ValidateCitations(p *AnswerPayload, maxCid int) *AnswerPayload {
	cleaned := &AnswerPayload{
		Summary:  p.Summary,
		Sections: make([]Section, 0, len(p.Sections)),
		Rejected: make([]Rejected, 0, len(p.Rejected)),
	}

	for _, sec := range p.Sections {
		items := make([]Item, 0, len(sec.Items))
		for _, item := range sec.Items {
			cits := cleanCitations(item.Citations, maxCid)
			if len(cits) == 0 {
				continue
			}
			item.Citations = cits
			items = append(items, item)
		}
		if len(items) == 0 {
			continue
		}
		sec.Items = items
		cleaned.Sections = append(cleaned.Sections, sec)
	}

	for _, rej := range p.Rejected {
		cits := cleanCitations(rej.Citations, maxCid)
		if len(cits) == 0 {
			continue
		}
		rej.Citations = cits
		cleaned.Rejected = append(cleaned.Rejected, rej)
	}

	return cleaned
}

func cleanCitations(cits []int, maxCid int) []int {
	seen := make(map[int]struct{}, len(cits))
	out := make([]int, 0, len(cits))
	for _, c := range cits {
		if c < 1 || c > maxCid {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// Render turns a validated payload into display text. Pure and
// deterministic: the same payload always renders identical text.
func Render(p *AnswerPayload) string {
	var b strings.Builder
	b.WriteString(p.Summary)

	for _, sec := range p.Sections {
		b.WriteString("\n\n## ")
		b.WriteString(sec.Title)
		for _, item := range sec.Items {
			b.WriteString("\n- ")
			b.WriteString(item.Lead)
			if item.WhyFit != "" {
				b.WriteString(" — ")
				b.WriteString(item.WhyFit)
			}
			if item.NextStep != "" {
				b.WriteString(" Next: ")
				b.WriteString(item.NextStep)
			}
			b.WriteString(" ")
			b.WriteString(citationMarkers(item.Citations))
		}
	}

	if len(p.Rejected) > 0 {
		b.WriteString("\n\n## Not a fit")
		for _, rej := range p.Rejected {
			b.WriteString("\n- ")
			b.WriteString(rej.Reason)
			b.WriteString(" ")
			b.WriteString(citationMarkers(rej.Citations))
		}
	}

	return b.String()
}

func citationMarkers(cits []int) string {
	var b strings.Builder
	for _, c := range cits {
		fmt.Fprintf(&b, "[%d]", c)
	}
	return b.String()
}
