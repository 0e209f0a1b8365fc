package prompt

import (
	"bytes"
	"strings"
	"testing"
)

func TestConfirm(t *testing.T) {
	tests := []struct {
		level, input string
		want         bool
	}{
		{Strict, "thesis\n", true},
		{Strict, "Thesis\n", true},
		{Strict, "  thesis  \n", true},
		{Strict, "y\n", false},
		{Strict, "\n", false},
		{Strict, "", false},
		{Light, "\n", true},
		{Light, "y\n", true},
		{Light, "YES\n", true},
		{Light, "n\n", false},
		{Light, "thesis\n", false},
		{Light, "", false},
		{"unknown", "y\n", false},
	}
	for _, tt := range tests {
		t.Run(tt.level+"/"+strings.TrimSpace(tt.input), func(t *testing.T) {
			var out bytes.Buffer
			p := New(tt.level, "thesis", strings.NewReader(tt.input), &out)
			got, err := p.Confirm("Publish version v2?")
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("Confirm(%q) = %v, want %v", tt.input, got, tt.want)
			}
			if !strings.HasPrefix(out.String(), "Publish version v2? [") {
				t.Errorf("prompt = %q", out.String())
			}
		})
	}
}

func TestConfirm_ReadsSuccessiveLines(t *testing.T) {
	p := New(Light, "thesis", strings.NewReader("y\nn\n"), &bytes.Buffer{})
	first, _ := p.Confirm("build?")
	second, _ := p.Confirm("publish?")
	if !first || second {
		t.Errorf("answers = %v, %v; want true, false", first, second)
	}
}

func TestYes(t *testing.T) {
	if ok, err := (Yes{}).Confirm("anything"); !ok || err != nil {
		t.Errorf("Yes.Confirm = %v, %v", ok, err)
	}
}
