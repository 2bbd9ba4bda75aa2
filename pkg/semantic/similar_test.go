package semantic

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/granola-mcp/pkg/meeting"
)

func TestCompaniesOf(t *testing.T) {
	m := meeting.Meeting{
		Participants: []string{
			"alice@acme.com",
			"bob@acme.com",        // duplicate company
			"carol@gmail.com",     // consumer provider
			"dave@globex.co.uk",
			"no-at-sign",
		},
	}

	got := CompaniesOf(m)
	assert.Equal(t, []string{"acme", "globex"}, got)
}

type stubEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (s *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = s.vectors[text]
	}
	return out, nil
}

func similarityFixture() []meeting.Meeting {
	return []meeting.Meeting{
		{ID: "m1", Title: "Acme sync", Participants: []string{"a@acme.com"}},
		{ID: "m2", Title: "Globex intro", Participants: []string{"b@globex.com"}},
		{ID: "m3", Title: "Initech review", Participants: []string{"c@initech.com"}},
	}
}

func TestSimilarCompaniesByEmbedding(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"acme":    {1, 0},
		"globex":  {0.9, 0.1},
		"initech": {0, 1},
	}}
	finder := NewFinder(WithEmbedder(embedder))

	got, err := finder.SimilarCompanies(context.Background(), "acme", similarityFixture(), 10)
	require.NoError(t, err)

	// initech is orthogonal to the query and drops below the floor.
	require.Len(t, got, 1)
	assert.Equal(t, "globex", got[0].Company)
	assert.Greater(t, got[0].Score, 0.9)
	require.Len(t, got[0].Meetings, 1)
	assert.Equal(t, "m2", got[0].Meetings[0].ID)
}

func TestSimilarCompaniesExcludesQuery(t *testing.T) {
	finder := NewFinder()

	got, err := finder.SimilarCompanies(context.Background(), "acme", []meeting.Meeting{
		{ID: "m1", Participants: []string{"a@acme.com"}},
	}, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSimilarCompaniesNameFallback(t *testing.T) {
	finder := NewFinder()

	meetings := append(similarityFixture(), meeting.Meeting{
		ID:           "m4",
		Participants: []string{"d@acmecloud.io"},
	})

	got, err := finder.SimilarCompanies(context.Background(), "Acme", meetings, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "acmecloud", got[0].Company)
}

func TestSimilarCompaniesEmbedderFailureFallsBack(t *testing.T) {
	finder := NewFinder(WithEmbedder(&stubEmbedder{err: errors.New("endpoint down")}))

	meetings := append(similarityFixture(), meeting.Meeting{
		ID:           "m4",
		Participants: []string{"d@acmecloud.io"},
	})

	got, err := finder.SimilarCompanies(context.Background(), "acme", meetings, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "acmecloud", got[0].Company)
}

func TestSimilarCompaniesLimit(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"acme":    {1, 0},
		"globex":  {0.9, 0.1},
		"initech": {0.8, 0.2},
	}}
	finder := NewFinder(WithEmbedder(embedder))

	got, err := finder.SimilarCompanies(context.Background(), "acme", similarityFixture(), 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "globex", got[0].Company)
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
		{"length mismatch", []float32{1}, []float32{1, 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, cosineSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}
