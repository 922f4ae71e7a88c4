package core

import (
	"strings"
	"testing"
)

func TestTruncateMessage(t *testing.T) {
	long := strings.Repeat("a", 200)

	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "empty", body: "", want: ""},
		{name: "short body untouched", body: "School closes early today.", want: "School closes early today."},
		{name: "exactly max untouched", body: strings.Repeat("b", MaxMessageLen), want: strings.Repeat("b", MaxMessageLen)},
		{name: "long body truncated", body: long, want: strings.Repeat("a", 157) + "..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateMessage(tt.body)
			if got != tt.want {
				t.Errorf("TruncateMessage() = %q, want %q", got, tt.want)
			}
			if n := len([]rune(got)); n > MaxMessageLen {
				t.Errorf("TruncateMessage() length = %d, want <= %d", n, MaxMessageLen)
			}
		})
	}

	t.Run("truncated length is exactly max", func(t *testing.T) {
		got := TruncateMessage(long)
		if n := len([]rune(got)); n != MaxMessageLen {
			t.Errorf("TruncateMessage() length = %d, want %d", n, MaxMessageLen)
		}
		if !strings.HasSuffix(got, "...") {
			t.Errorf("TruncateMessage() = %q, want %q suffix", got, "...")
		}
	})
}

func TestSMSMessageRender(t *testing.T) {
	t.Run("plain body", func(t *testing.T) {
		msg := SMSMessage{BodyStr: "PTA meeting moved to Friday."}
		if err := msg.Render(); err != nil {
			t.Fatalf("Render() failed: %v", err)
		}
		if msg.Content != "PTA meeting moved to Friday." {
			t.Errorf("Render() content = %q", msg.Content)
		}
	})

	t.Run("fee reminder template", func(t *testing.T) {
		msg := SMSMessage{
			TemplateName: "fee_reminder",
			TemplateData: map[string]interface{}{
				"GuardianName": "Mrs. Banda",
				"StudentName":  "Chanda",
				"Balance":      "600.00",
				"Term":         "Term 2",
				"Year":         "2024",
				"SchoolName":   "Karo",
			},
		}
		if err := msg.Render(); err != nil {
			t.Fatalf("Render() failed: %v", err)
		}
		if !strings.Contains(msg.Content, "Mrs. Banda") || !strings.Contains(msg.Content, "600.00") {
			t.Errorf("Render() content = %q", msg.Content)
		}
		if !msg.HasContent() {
			t.Error("HasContent() = false")
		}
	})

	t.Run("unknown template", func(t *testing.T) {
		msg := SMSMessage{TemplateName: "nope"}
		if err := msg.Render(); err == nil {
			t.Error("Render() expected error")
		}
	})

	t.Run("no content", func(t *testing.T) {
		msg := SMSMessage{}
		if err := msg.Render(); err != nil {
			t.Fatalf("Render() failed: %v", err)
		}
		if msg.HasContent() {
			t.Error("HasContent() = true")
		}
	})
}
