package assistant

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name         string
		question     string
		wantCalendar bool
		wantCourse   bool
	}{
		{
			name:         "calendar english",
			question:     "What's on my calendar today?",
			wantCalendar: true,
		},
		{
			name:         "calendar french",
			question:     "Quels sont mes rendez-vous demain ?",
			wantCalendar: true,
		},
		{
			name:       "course question",
			question:   "Summarize chapter 3 of the machine learning course",
			wantCourse: true,
		},
		{
			name:         "both flags",
			question:     "Do I have a meeting about the computer vision course?",
			wantCalendar: true,
			wantCourse:   true,
		},
		{
			name:     "neither",
			question: "Why is the sky blue?",
		},
		{
			name:         "case insensitive",
			question:     "MY AGENDA FOR TOMORROW",
			wantCalendar: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.question)
			if got.Calendar != tt.wantCalendar {
				t.Errorf("Calendar = %v, want %v", got.Calendar, tt.wantCalendar)
			}
			if got.Course != tt.wantCourse {
				t.Errorf("Course = %v, want %v", got.Course, tt.wantCourse)
			}
		})
	}
}
