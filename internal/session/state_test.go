package session

import (
	"errors"
	"testing"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from Status
		to   Status
		want bool
	}{
		{"pending to in_progress", StatusPending, StatusInProgress, true},
		{"pending to failed", StatusPending, StatusFailed, true},
		{"in_progress to completed", StatusInProgress, StatusCompleted, true},
		{"in_progress to failed", StatusInProgress, StatusFailed, true},
		{"pending to completed skips in_progress", StatusPending, StatusCompleted, false},
		{"in_progress back to pending", StatusInProgress, StatusPending, false},
		{"completed to failed", StatusCompleted, StatusFailed, false},
		{"completed to in_progress", StatusCompleted, StatusInProgress, false},
		{"failed to completed", StatusFailed, StatusCompleted, false},
		{"failed to in_progress", StatusFailed, StatusInProgress, false},
		{"completed is terminal", StatusCompleted, StatusCompleted, false},
		{"failed is terminal", StatusFailed, StatusFailed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestCheckTransitionError(t *testing.T) {
	if err := checkTransition(StatusPending, StatusInProgress); err != nil {
		t.Errorf("legal transition returned error: %v", err)
	}

	err := checkTransition(StatusCompleted, StatusInProgress)
	if err == nil {
		t.Fatal("illegal transition returned nil error")
	}
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("error %v does not wrap ErrInvalidTransition", err)
	}
}

func TestStatusTerminal(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusPending, false},
		{StatusInProgress, false},
		{StatusCompleted, true},
		{StatusFailed, true},
	}

	for _, tt := range tests {
		if got := tt.status.Terminal(); got != tt.want {
			t.Errorf("%s.Terminal() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestSummaryValidate(t *testing.T) {
	valid := Summary{
		Overview:        "Guest enjoyed the stay overall.",
		Painpoints:      []string{"Slow wifi in the dorm"},
		Highlights:      []string{"Friendly staff"},
		Recommendations: []string{"Upgrade the router"},
		Sentiment:       SentimentPositive,
	}

	tests := []struct {
		name    string
		mutate  func(*Summary)
		wantErr bool
	}{
		{"fully populated", func(s *Summary) {}, false},
		{"empty lists are still present", func(s *Summary) {
			s.Painpoints = []string{}
			s.Highlights = []string{}
			s.Recommendations = []string{}
		}, false},
		{"missing overview", func(s *Summary) { s.Overview = "" }, true},
		{"missing painpoints", func(s *Summary) { s.Painpoints = nil }, true},
		{"missing highlights", func(s *Summary) { s.Highlights = nil }, true},
		{"missing recommendations", func(s *Summary) { s.Recommendations = nil }, true},
		{"unknown sentiment", func(s *Summary) { s.Sentiment = "ecstatic" }, true},
		{"empty sentiment", func(s *Summary) { s.Sentiment = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			summary := valid.Clone()
			tt.mutate(&summary)
			err := summary.Validate()
			if tt.wantErr && !errors.Is(err, ErrInvalidSummary) {
				t.Errorf("Validate() = %v, want ErrInvalidSummary", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
		})
	}
}
