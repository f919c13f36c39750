package translate

import "testing"

func TestCustomID(t *testing.T) {
	if got := CustomID(0); got != "trans_0" {
		t.Errorf("Expected trans_0, got %s", got)
	}
	if got := CustomID(42); got != "trans_42" {
		t.Errorf("Expected trans_42, got %s", got)
	}
}

func TestParseCustomID(t *testing.T) {
	tests := []struct {
		name   string
		id     string
		want   int
		wantOK bool
	}{
		{"first", "trans_0", 0, true},
		{"large", "trans_137", 137, true},
		{"wrong prefix", "batch_3", 0, false},
		{"no index", "trans_", 0, false},
		{"not a number", "trans_abc", 0, false},
		{"negative", "trans_-1", 0, false},
		{"empty", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseCustomID(tt.id)
			if ok != tt.wantOK {
				t.Fatalf("Expected ok=%v, got %v", tt.wantOK, ok)
			}
			if ok && got != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestResultIsError(t *testing.T) {
	res := TranslationResult{Confidence: ConfidenceHigh}
	if res.IsError() {
		t.Error("Expected high-confidence result to not be an error")
	}

	res.Confidence = ConfidenceError
	if !res.IsError() {
		t.Error("Expected error-confidence result to be an error")
	}
}

func TestFromToolInput(t *testing.T) {
	res, err := FromToolInput(map[string]interface{}{
		"translation": "king of all lands",
		"confidence":  "high",
		"notes":       "royal epithet",
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if res.Translation != "king of all lands" {
		t.Errorf("Expected translation, got %q", res.Translation)
	}
	if res.Confidence != ConfidenceHigh {
		t.Errorf("Expected high confidence, got %s", res.Confidence)
	}
	if res.Notes != "royal epithet" {
		t.Errorf("Expected notes, got %q", res.Notes)
	}
}

func TestFromToolInputDefaults(t *testing.T) {
	res, err := FromToolInput(map[string]interface{}{
		"translation": "10 sheep",
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if res.Confidence != ConfidenceMedium {
		t.Errorf("Expected medium confidence default, got %s", res.Confidence)
	}
	if res.Notes != "" {
		t.Errorf("Expected empty notes, got %q", res.Notes)
	}
}

func TestFromToolInputMissingTranslation(t *testing.T) {
	_, err := FromToolInput(map[string]interface{}{
		"confidence": "high",
	})
	if err == nil {
		t.Fatal("Expected error for missing translation")
	}
}
