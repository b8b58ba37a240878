package provider

import (
	"strings"
	"testing"

	"github.com/elariis/portal-chat/internal/store"
)

func TestFallbackCategoryPriority(t *testing.T) {
	p := NewFallbackProvider()

	cases := []struct {
		name      string
		utterance string
		want      Category
	}{
		{"brand wins over everything", "hello, what is elariis?", CategoryBrand},
		{"hr payroll", "I need help with my payroll leave request", CategoryHR},
		{"hr uppercase", "QUESTION ABOUT BENEFITS", CategoryHR},
		{"it password", "my password expired again", CategoryIT},
		{"portal profile", "how do I update my profile?", CategoryPortal},
		{"greeting", "good morning!", CategoryGreeting},
		{"plain hello", "hello", CategoryGreeting},
		{"generic help", "can you give me some assistance", CategoryHelp},
		{"default", "what's the weather like", CategoryDefault},
		{"empty", "", CategoryDefault},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := p.Classify(tc.utterance); got != tc.want {
				t.Fatalf("Classify(%q) = %q, want %q", tc.utterance, got, tc.want)
			}
		})
	}
}

func TestFallbackGreetingInterpolatesName(t *testing.T) {
	p := NewFallbackProvider()

	text, category := p.Generate("hello", store.User{ID: "u1", GivenName: "Dana"})
	if category != CategoryGreeting {
		t.Fatalf("category = %q, want %q", category, CategoryGreeting)
	}
	if !strings.Contains(text, "Hello Dana!") {
		t.Fatalf("greeting should contain the given name, got %q", text)
	}

	text, _ = p.Generate("hello", store.User{ID: "u1"})
	if !strings.Contains(text, "Hello there!") {
		t.Fatalf("greeting without a name should use the generic placeholder, got %q", text)
	}
}

func TestFallbackHRMentionsHRPortal(t *testing.T) {
	p := NewFallbackProvider()
	text, category := p.Generate("I need help with my payroll leave request", store.User{ID: "u1"})
	if category != CategoryHR {
		t.Fatalf("category = %q, want %q", category, CategoryHR)
	}
	if !strings.Contains(text, "HR") {
		t.Fatalf("HR reply should mention the HR portal or representative, got %q", text)
	}
}

func TestFallbackNeverEmptyNeverFails(t *testing.T) {
	p := NewFallbackProvider()

	inputs := []string{
		"",
		"   ",
		"héllo wörld 你好 🙋",
		strings.Repeat("lorem ipsum dolor ", 10000),
		"\x00\x01\x02",
	}
	for _, in := range inputs {
		text, _ := p.Generate(in, store.User{})
		if text == "" {
			t.Fatalf("Generate(%q) returned empty text", in)
		}
	}
}

func TestFallbackDeterministic(t *testing.T) {
	p := NewFallbackProvider()
	user := store.User{ID: "u1", GivenName: "Sam"}

	for _, in := range []string{"hello", "payroll question", "random words"} {
		first, firstCat := p.Generate(in, user)
		for i := 0; i < 5; i++ {
			text, category := p.Generate(in, user)
			if text != first || category != firstCat {
				t.Fatalf("Generate(%q) not deterministic: %q/%q vs %q/%q", in, text, category, first, firstCat)
			}
		}
	}
}
