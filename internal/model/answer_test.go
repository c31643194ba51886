package model

import (
	"testing"
)

func TestIsAnswered(t *testing.T) {
	tests := []struct {
		name  string
		value AnswerValue
		want  bool
	}{
		{"plain text", TextAnswer("hello"), true},
		{"empty text", TextAnswer(""), false},
		{"whitespace only", TextAnswer("  \t "), false},
		{"artifact url", TextAnswer("/uploads/a.webm"), true},
		{"all parts empty", PartsAnswer(map[string]string{"1": "", "2": " "}), false},
		{"one part filled", PartsAnswer(map[string]string{"1": "", "2": "x"}), true},
		{"no parts", PartsAnswer(map[string]string{}), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.value.IsAnswered(); got != tt.want {
				t.Errorf("IsAnswered() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	text := TextAnswer("plain value")
	if got := DecodeAnswerValue(text.Encode()); got.Text != "plain value" || got.Parts != nil {
		t.Errorf("decoded text = %+v", got)
	}

	parts := PartsAnswer(map[string]string{"blank_1": "cat", "blank_2": "dog"})
	got := DecodeAnswerValue(parts.Encode())
	if got.Parts == nil || got.Parts["blank_1"] != "cat" || got.Parts["blank_2"] != "dog" {
		t.Errorf("decoded parts = %+v", got)
	}
}

func TestDecodeMalformedObjectFallsBackToText(t *testing.T) {
	raw := `{"unterminated": `
	got := DecodeAnswerValue(raw)
	if got.Parts != nil || got.Text != raw {
		t.Errorf("DecodeAnswerValue(%q) = %+v, want raw text", raw, got)
	}
}
