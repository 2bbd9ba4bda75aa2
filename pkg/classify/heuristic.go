package classify

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/otherjamesbrown/granola-mcp/pkg/meeting"
)

// Heuristic is the local rule-matching classification tier. It tags
// meetings from title keywords and participant email domains without
// any network round trip.
type Heuristic struct {
	rules           []heuristicRule
	internalDomains []string
}

// HeuristicOption configures the heuristic classifier.
type HeuristicOption func(*Heuristic)

// WithInternalDomains sets email domains treated as internal. Meetings
// whose participants are all internal never match the external rule.
func WithInternalDomains(domains []string) HeuristicOption {
	return func(h *Heuristic) {
		h.internalDomains = domains
	}
}

// WithExtraRules appends user-configured rules after the built-in table.
func WithExtraRules(rules []Rule) HeuristicOption {
	return func(h *Heuristic) {
		for _, r := range rules {
			h.rules = append(h.rules, r.compile())
		}
	}
}

// NewHeuristic creates a heuristic classifier with the built-in rule table.
func NewHeuristic(opts ...HeuristicOption) *Heuristic {
	h := &Heuristic{
		rules: append([]heuristicRule(nil), builtinRules...),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Classify returns the categories the meeting matches. The second
// return is false when no rule matched, meaning the next tier should
// be consulted.
func (h *Heuristic) Classify(m meeting.Meeting) ([]string, bool) {
	meta := h.extractMetadata(m)

	var tags []string
	for _, rule := range h.rules {
		if rule.matches(meta) {
			tags = append(tags, rule.category)
		}
	}
	if len(tags) == 0 {
		return nil, false
	}
	return sortedTags(tags), true
}

// heuristicMetadata holds the normalized fields rules match against.
type heuristicMetadata struct {
	title           string // lowercased
	domains         []string // lowercased participant email domains
	hasExternal     bool
	participantHits int
}

func (h *Heuristic) extractMetadata(m meeting.Meeting) *heuristicMetadata {
	meta := &heuristicMetadata{
		title:           strings.ToLower(m.Title),
		participantHits: len(m.Participants),
	}
	for _, p := range m.Participants {
		at := strings.LastIndex(p, "@")
		if at < 0 || at == len(p)-1 {
			continue
		}
		domain := strings.ToLower(p[at+1:])
		meta.domains = append(meta.domains, domain)
		if !h.isInternal(domain) {
			meta.hasExternal = true
		}
	}
	return meta
}

func (h *Heuristic) isInternal(domain string) bool {
	for _, d := range h.internalDomains {
		if strings.EqualFold(d, domain) {
			return true
		}
	}
	// Without a configured domain list every participant counts as
	// internal, so the external rule stays quiet rather than tagging
	// everything.
	return len(h.internalDomains) == 0
}

type heuristicRule struct {
	name     string
	category string
	matches  func(m *heuristicMetadata) bool
}

// Rule is a user-configurable classification rule, loadable from YAML.
type Rule struct {
	Name          string   `yaml:"name"`
	Category      string   `yaml:"category"`
	TitleKeywords []string `yaml:"title_keywords"`
	Domains       []string `yaml:"domains"`
}

func (r Rule) compile() heuristicRule {
	keywords := make([]string, len(r.TitleKeywords))
	for i, kw := range r.TitleKeywords {
		keywords[i] = strings.ToLower(kw)
	}
	domains := make([]string, len(r.Domains))
	for i, d := range r.Domains {
		domains[i] = strings.ToLower(d)
	}
	name := r.Name
	if name == "" {
		name = "custom_" + r.Category
	}
	return heuristicRule{
		name:     name,
		category: r.Category,
		matches: func(m *heuristicMetadata) bool {
			if titleContainsAny(m.title, keywords...) {
				return true
			}
			for _, want := range domains {
				for _, have := range m.domains {
					if have == want {
						return true
					}
				}
			}
			return false
		},
	}
}

// LoadRules reads user-defined rules from a YAML file.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading classification rules: %w", err)
	}
	var doc struct {
		Rules []Rule `yaml:"rules"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing classification rules %s: %w", path, err)
	}
	for i, r := range doc.Rules {
		if r.Category == "" {
			return nil, fmt.Errorf("classification rule %d has no category", i)
		}
	}
	return doc.Rules, nil
}

// builtinRules tags the meeting shapes that show up in nearly every
// calendar. A meeting can match several rules.
var builtinRules = []heuristicRule{
	{
		name:     "one_on_one",
		category: "one-on-one",
		matches: func(m *heuristicMetadata) bool {
			return titleContainsAny(m.title, "1:1", "1-1", "one on one", "one-on-one") ||
				(m.participantHits == 2 && titleContainsAny(m.title, "catch up", "catchup", "sync"))
		},
	},
	{
		name:     "interview",
		category: "hiring",
		matches: func(m *heuristicMetadata) bool {
			return titleContainsAny(m.title, "interview", "phone screen", "debrief", "hiring committee")
		},
	},
	{
		name:     "engineering_ritual",
		category: "engineering",
		matches: func(m *heuristicMetadata) bool {
			return titleContainsAny(m.title, "standup", "stand-up", "sprint", "retro", "retrospective",
				"architecture", "design review", "incident", "postmortem", "on-call")
		},
	},
	{
		name:     "planning",
		category: "planning",
		matches: func(m *heuristicMetadata) bool {
			return titleContainsAny(m.title, "planning", "roadmap", "okr", "quarterly", "kickoff", "kick-off")
		},
	},
	{
		name:     "sales",
		category: "sales",
		matches: func(m *heuristicMetadata) bool {
			return titleContainsAny(m.title, "demo", "pricing", "proposal", "contract", "renewal",
				"discovery call", "pipeline")
		},
	},
	{
		name:     "customer_external",
		category: "customer",
		matches: func(m *heuristicMetadata) bool {
			if !m.hasExternal {
				return false
			}
			return titleContainsAny(m.title, "check-in", "check in", "onboarding", "support",
				"escalation", "qbr", "business review")
		},
	},
	{
		name:     "all_hands",
		category: "company",
		matches: func(m *heuristicMetadata) bool {
			return titleContainsAny(m.title, "all hands", "all-hands", "town hall", "offsite")
		},
	},
}

func titleContainsAny(title string, keywords ...string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(title, kw) {
			return true
		}
	}
	return false
}
