package embedder

import "testing"

func TestLooksLikeChatModel(t *testing.T) {
	t.Parallel()

	cases := []struct {
		model string
		want  bool
	}{
		{"nomic-embed-text", false},
		{"text-embedding-3-small", false},
		{"text-embedding-004", false},
		{"gpt-4o", true},
		{"deepseek-chat", true},
		{"gemini-1.5-flash", true},
		{"Llama3:8b", true},
	}

	for _, c := range cases {
		if got := looksLikeChatModel(c.model); got != c.want {
			t.Errorf("looksLikeChatModel(%q): want %v, got %v", c.model, c.want, got)
		}
	}
}
