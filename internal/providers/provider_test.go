package providers

import "testing"

func TestParseChatCompletion(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{name: "string content", body: `{"choices":[{"message":{"content":"hi"}}]}`, want: "hi"},
		{name: "legacy text", body: `{"choices":[{"text":"legacy"}]}`, want: "legacy"},
		{name: "no choices", body: `{"choices":[]}`, wantErr: true},
		{name: "empty content", body: `{"choices":[{"message":{"role":"assistant","content":""}}]}`, want: ""},
		{name: "null content", body: `{"choices":[{"message":{"content":null}}]}`, want: ""},
		{name: "content parts", body: `{"choices":[{"message":{"content":[{"type":"text","text":"a"},{"type":"text","text":"b"}]}}]}`, want: "a\nb"},
		{name: "no message", body: `{"choices":[{"index":0}]}`, wantErr: true},
		{name: "not json", body: `<html>`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseChatCompletion([]byte(tt.body))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestNewChatCompletionRequestOmitsEmptySystemPrompt(t *testing.T) {
	p := DefaultParams()
	p.SystemPrompt = "  "
	req := NewChatCompletionRequest("", p, "q")
	if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
		t.Fatalf("expected only the user message, got %#v", req.Messages)
	}
}
