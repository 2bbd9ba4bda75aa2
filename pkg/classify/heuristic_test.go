package classify

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/otherjamesbrown/granola-mcp/pkg/meeting"
)

func TestHeuristicBuiltinRules(t *testing.T) {
	h := NewHeuristic()

	tests := []struct {
		name     string
		meeting  meeting.Meeting
		wantTags []string
		wantHit  bool
	}{
		{
			name:     "one on one by title",
			meeting:  meeting.Meeting{Title: "1:1 James / Priya"},
			wantTags: []string{"one-on-one"},
			wantHit:  true,
		},
		{
			name: "two person sync",
			meeting: meeting.Meeting{
				Title:        "Weekly sync",
				Participants: []string{"a@example.com", "b@example.com"},
			},
			wantTags: []string{"one-on-one"},
			wantHit:  true,
		},
		{
			name:     "interview",
			meeting:  meeting.Meeting{Title: "Interview: Backend Engineer"},
			wantTags: []string{"hiring"},
			wantHit:  true,
		},
		{
			name:     "multiple categories",
			meeting:  meeting.Meeting{Title: "Sprint Planning"},
			wantTags: []string{"engineering", "planning"},
			wantHit:  true,
		},
		{
			name:     "sales demo",
			meeting:  meeting.Meeting{Title: "Acme product demo"},
			wantTags: []string{"sales"},
			wantHit:  true,
		},
		{
			name:     "all hands",
			meeting:  meeting.Meeting{Title: "October All Hands"},
			wantTags: []string{"company"},
			wantHit:  true,
		},
		{
			name:    "no match",
			meeting: meeting.Meeting{Title: "Q3 numbers walkthrough"},
			wantHit: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tags, hit := h.Classify(tt.meeting)
			if hit != tt.wantHit {
				t.Fatalf("Classify() hit = %v, want %v (tags %v)", hit, tt.wantHit, tags)
			}
			if len(tags) != len(tt.wantTags) {
				t.Fatalf("Classify() tags = %v, want %v", tags, tt.wantTags)
			}
			for i, tag := range tt.wantTags {
				if tags[i] != tag {
					t.Errorf("Classify() tags[%d] = %q, want %q", i, tags[i], tag)
				}
			}
		})
	}
}

func TestHeuristicExternalRuleNeedsInternalDomains(t *testing.T) {
	m := meeting.Meeting{
		Title:        "Monthly check-in",
		Participants: []string{"us@penf.io", "them@acme.com"},
	}

	// With no internal domain list every participant is internal, so
	// the customer rule stays quiet.
	if tags, _ := NewHeuristic().Classify(m); len(tags) != 0 {
		t.Fatalf("Classify() without internal domains = %v, want none", tags)
	}

	h := NewHeuristic(WithInternalDomains([]string{"penf.io"}))
	tags, hit := h.Classify(m)
	if !hit || len(tags) != 1 || tags[0] != "customer" {
		t.Fatalf("Classify() = %v (hit %v), want [customer]", tags, hit)
	}
}

func TestHeuristicExtraRules(t *testing.T) {
	h := NewHeuristic(WithExtraRules([]Rule{
		{
			Category:      "vendor",
			TitleKeywords: []string{"procurement"},
			Domains:       []string{"supplier.example"},
		},
	}))

	tags, hit := h.Classify(meeting.Meeting{Title: "Procurement review"})
	if !hit || len(tags) != 1 || tags[0] != "vendor" {
		t.Fatalf("Classify() by keyword = %v (hit %v), want [vendor]", tags, hit)
	}

	tags, hit = h.Classify(meeting.Meeting{
		Title:        "Catch up",
		Participants: []string{"alice@supplier.example"},
	})
	if !hit || len(tags) != 1 || tags[0] != "vendor" {
		t.Fatalf("Classify() by domain = %v (hit %v), want [vendor]", tags, hit)
	}
}

func TestLoadRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := `rules:
  - name: vendor_meetings
    category: vendor
    title_keywords: ["procurement", "rfp"]
    domains: ["supplier.example"]
  - category: legal
    title_keywords: ["contract review"]
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	rules, err := LoadRules(path)
	if err != nil {
		t.Fatalf("LoadRules() error = %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("LoadRules() returned %d rules, want 2", len(rules))
	}
	if rules[0].Name != "vendor_meetings" || rules[0].Category != "vendor" {
		t.Errorf("rules[0] = %+v", rules[0])
	}
	if len(rules[0].TitleKeywords) != 2 {
		t.Errorf("rules[0].TitleKeywords = %v", rules[0].TitleKeywords)
	}
}

func TestLoadRulesRejectsMissingCategory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte("rules:\n  - title_keywords: [\"x\"]\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadRules(path); err == nil {
		t.Fatal("LoadRules() accepted a rule with no category")
	}
}
