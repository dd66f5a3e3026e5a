package assistant

import "strings"

// Calendar keywords cover both French and English phrasing.
var calendarKeywords = []string{
	"calendrier", "événement", "rendez-vous", "rdv", "agenda",
	"aujourd", "demain",
	"calendar", "event", "appointment", "meeting", "schedule", "plans", "today", "tomorrow",
}

var courseKeywords = []string{
	"course", "chapter", "lesson", "pdf", "page", "summarize", "summary",
	"explain", "machine learning", "ml", "computer vision", "cv", "data science",
}

// Classification marks which handlers a question may belong to.
// Both flags can be set; the pipeline resolves the conflict by running the
// calendar stage first.
type Classification struct {
	Calendar bool
	Course   bool
}

// Classify inspects a question with case-insensitive substring matching
// against fixed keyword lists. No stemming, no language detection.
func Classify(question string) Classification {
	q := strings.ToLower(question)
	return Classification{
		Calendar: containsAny(q, calendarKeywords),
		Course:   containsAny(q, courseKeywords),
	}
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
