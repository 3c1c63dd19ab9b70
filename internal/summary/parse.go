package summary

import (
	"encoding/json"
	"errors"
	"strings"
)

// markers separate the celebration, focus and insight sections of a weekly reply.
var markers = []string{"🎉", "⚠", "📊"}

// parseWeekly splits raw on the section markers. Text before the first marker
// is discarded and raw is always kept as FullText.
func parseWeekly(raw string) WeeklyReport {
	text := strings.ReplaceAll(raw, "\ufe0f", "")
	segments := []string{text}
	for _, m := range markers {
		var next []string
		for _, s := range segments {
			next = append(next, strings.Split(s, m)...)
		}
		segments = next
	}
	section := func(i int) []string {
		if i < len(segments) {
			return bullets(segments[i])
		}
		return []string{}
	}
	return WeeklyReport{
		Celebrations: section(1),
		FocusAreas:   section(2),
		Insights:     section(3),
		FullText:     raw,
	}
}

// bullets returns the lines starting with "-" or "•", marker removed.
func bullets(text string) []string {
	out := []string{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		var rest string
		switch {
		case strings.HasPrefix(line, "-"):
			rest = strings.TrimPrefix(line, "-")
		case strings.HasPrefix(line, "•"):
			rest = strings.TrimPrefix(line, "•")
		default:
			continue
		}
		if rest = strings.TrimSpace(rest); rest != "" {
			out = append(out, rest)
		}
	}
	return out
}

// parseCelebrations decodes the JSON object in raw, tolerating prose around it.
func parseCelebrations(raw string) (CelebrationReport, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return CelebrationReport{}, errors.New("no JSON object in reply")
	}
	var r CelebrationReport
	if err := json.Unmarshal([]byte(raw[start:end+1]), &r); err != nil {
		return CelebrationReport{}, err
	}
	switch r.Mood {
	case MoodPositive, MoodNeutral, MoodConcerned:
	default:
		r.Mood = MoodNeutral
	}
	if r.Celebrations == nil {
		r.Celebrations = []Celebration{}
	}
	if r.Highlights == nil {
		r.Highlights = []string{}
	}
	return r, nil
}
