package semantic

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"github.com/otherjamesbrown/granola-mcp/pkg/logging"
	"github.com/otherjamesbrown/granola-mcp/pkg/meeting"
)

// minSimilarity drops matches with no meaningful relation to the query.
const minSimilarity = 0.3

var companyFold = cases.Fold()

// consumerProviders are email domains that identify a person, not a
// company, and never count as a company name.
var consumerProviders = map[string]struct{}{
	"gmail.com":      {},
	"googlemail.com": {},
	"outlook.com":    {},
	"hotmail.com":    {},
	"live.com":       {},
	"yahoo.com":      {},
	"icloud.com":     {},
	"me.com":         {},
	"proton.me":      {},
	"protonmail.com": {},
}

// CompanyMatch is one company related to the query, with the meetings
// it appeared in.
type CompanyMatch struct {
	Company  string            `json:"company"`
	Score    float64           `json:"score"`
	Meetings []meeting.Meeting `json:"-"`
}

// Finder ranks companies seen across meetings by similarity to a query
// company. With an embedder it ranks by embedding distance; without one
// it falls back to folded substring matching.
type Finder struct {
	embedder Embedder
	logger   logging.Logger
}

// FinderOption configures the finder.
type FinderOption func(*Finder)

// WithEmbedder enables embedding-based ranking.
func WithEmbedder(e Embedder) FinderOption {
	return func(f *Finder) { f.embedder = e }
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) FinderOption {
	return func(f *Finder) { f.logger = logger }
}

// NewFinder creates a company similarity finder.
func NewFinder(opts ...FinderOption) *Finder {
	f := &Finder{logger: logging.NewNopLogger()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// SimilarCompanies returns companies from the meeting history ranked by
// similarity to company, excluding the company itself. limit caps the
// result; zero or negative means no cap.
func (f *Finder) SimilarCompanies(ctx context.Context, company string, meetings []meeting.Meeting, limit int) ([]CompanyMatch, error) {
	byCompany := groupByCompany(meetings)
	queryKey := companyFold.String(strings.TrimSpace(company))

	names := make([]string, 0, len(byCompany))
	for name := range byCompany {
		if companyFold.String(name) == queryKey {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) == 0 {
		return nil, nil
	}

	var matches []CompanyMatch
	if f.embedder == nil {
		matches = f.matchByName(queryKey, names, byCompany)
	} else {
		var err error
		matches, err = f.matchByEmbedding(ctx, company, names, byCompany)
		if err != nil {
			// Degrade to name matching rather than failing the tool.
			f.logger.Warn("embedding similarity unavailable, falling back to name match", logging.Err(err))
			matches = f.matchByName(queryKey, names, byCompany)
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Company < matches[j].Company
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (f *Finder) matchByName(queryKey string, names []string, byCompany map[string][]meeting.Meeting) []CompanyMatch {
	var matches []CompanyMatch
	for _, name := range names {
		key := companyFold.String(name)
		if !strings.Contains(key, queryKey) && !strings.Contains(queryKey, key) {
			continue
		}
		matches = append(matches, CompanyMatch{Company: name, Score: 1, Meetings: byCompany[name]})
	}
	return matches
}

func (f *Finder) matchByEmbedding(ctx context.Context, company string, names []string, byCompany map[string][]meeting.Meeting) ([]CompanyMatch, error) {
	texts := append([]string{company}, names...)
	vectors, err := f.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}

	query := vectors[0]
	var matches []CompanyMatch
	for i, name := range names {
		score := cosineSimilarity(query, vectors[i+1])
		if score < minSimilarity {
			continue
		}
		matches = append(matches, CompanyMatch{Company: name, Score: score, Meetings: byCompany[name]})
	}
	return matches, nil
}

// groupByCompany buckets meetings by the companies inferred from
// participant email domains.
func groupByCompany(meetings []meeting.Meeting) map[string][]meeting.Meeting {
	byCompany := make(map[string][]meeting.Meeting)
	for _, m := range meetings {
		for _, company := range CompaniesOf(m) {
			byCompany[company] = append(byCompany[company], m)
		}
	}
	return byCompany
}

// CompaniesOf infers company names for a meeting from the domains of
// its participant email addresses. Consumer mail providers are skipped.
func CompaniesOf(m meeting.Meeting) []string {
	seen := make(map[string]struct{})
	var companies []string
	for _, p := range m.Participants {
		at := strings.LastIndex(p, "@")
		if at < 0 || at == len(p)-1 {
			continue
		}
		domain := strings.ToLower(p[at+1:])
		if _, consumer := consumerProviders[domain]; consumer {
			continue
		}
		name := domain
		if dot := strings.Index(domain, "."); dot > 0 {
			name = domain[:dot]
		}
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		companies = append(companies, name)
	}
	return companies
}
