package runtime

import (
	"testing"
	"time"
)

func TestParseSchedule(t *testing.T) {
	tests := []struct {
		name     string
		schedule string
		base     time.Time
		want     time.Time
	}{
		{
			name:     "every descriptor",
			schedule: "@every 5m",
			base:     time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
			want:     time.Date(2025, 6, 1, 12, 5, 0, 0, time.UTC),
		},
		{
			name:     "five field cron",
			schedule: "*/15 * * * *",
			base:     time.Date(2025, 6, 1, 12, 1, 0, 0, time.UTC),
			want:     time.Date(2025, 6, 1, 12, 15, 0, 0, time.UTC),
		},
		{
			name:     "six field cron",
			schedule: "30 0 * * * *",
			base:     time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
			want:     time.Date(2025, 6, 1, 12, 0, 30, 0, time.UTC),
		},
		{
			name:     "plain duration",
			schedule: "2h",
			base:     time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
			want:     time.Date(2025, 6, 1, 14, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			schedule, err := ParseSchedule(tt.schedule)
			if err != nil {
				t.Fatalf("ParseSchedule(%q) failed: %v", tt.schedule, err)
			}
			if got := schedule.Next(tt.base); !got.Equal(tt.want) {
				t.Errorf("Next(%s) = %s, want %s", tt.base, got, tt.want)
			}
		})
	}
}

func TestParseScheduleRejectsGarbage(t *testing.T) {
	for _, schedule := range []string{"", "soon", "* * *"} {
		if _, err := ParseSchedule(schedule); err == nil {
			t.Errorf("Expected an error for %q", schedule)
		}
	}
}
