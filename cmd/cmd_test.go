package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/granola-mcp/config"
	"github.com/otherjamesbrown/granola-mcp/pkg/classify"
	"github.com/otherjamesbrown/granola-mcp/pkg/logging"
	"github.com/otherjamesbrown/granola-mcp/pkg/mcp"
	"github.com/otherjamesbrown/granola-mcp/pkg/meeting"
	"github.com/otherjamesbrown/granola-mcp/pkg/observability"
	"github.com/otherjamesbrown/granola-mcp/pkg/search"
)

type fixtureLoader struct{}

func (fixtureLoader) Load(context.Context) ([]meeting.Meeting, error) {
	return []meeting.Meeting{
		{
			ID:    "m1",
			Title: "Sprint Planning",
			Start: time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC),
		},
		{
			ID:           "m2",
			Title:        "Acme pricing call",
			Start:        time.Date(2025, 11, 4, 9, 0, 0, 0, time.UTC),
			Participants: []string{"buyer@acme.com"},
		},
	}, nil
}

// testDeps wires commands against an in-memory fixture instead of the
// real Granola cache.
func testDeps(t *testing.T) *Deps {
	t.Helper()

	return &Deps{
		LoadConfig: func() (*config.Config, error) {
			return config.DefaultConfig(), nil
		},
		BuildApp: func(ctx context.Context, cfg *config.Config, logger logging.Logger, _ *observability.Metrics) (*App, error) {
			index := meeting.NewIndex(fixtureLoader{})
			if err := index.Load(ctx); err != nil {
				return nil, err
			}
			engine := search.NewEngine(index, time.UTC, logger, search.WithClock(func() time.Time {
				return time.Date(2025, 11, 5, 12, 0, 0, 0, time.UTC)
			}))

			store := classify.NewFileStore(filepath.Join(t.TempDir(), "classifications.json"))
			classifier, err := classify.New(ctx, store, classify.NewHeuristic(), classify.WithLogger(logger))
			if err != nil {
				return nil, err
			}

			service := mcp.NewService(index, engine, nil, classifier, nil, logger)
			return &App{
				Config:     cfg,
				Logger:     logger,
				Index:      index,
				Engine:     engine,
				Service:    service,
				classifier: classifier,
			}, nil
		},
	}
}

func TestSearchCommand(t *testing.T) {
	cmd := NewSearchCommand(testDeps(t))
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"acme", "pricing"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "Acme pricing call")
	assert.Contains(t, out.String(), "1 meeting(s)")
}

func TestSearchCommandJSON(t *testing.T) {
	cmd := NewSearchCommand(testDeps(t))
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"sprint", "--json"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), `"id": "m1"`)
}

func TestSearchCommandRequiresQuery(t *testing.T) {
	cmd := NewSearchCommand(testDeps(t))
	cmd.SetArgs([]string{})
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	require.Error(t, cmd.Execute())
}

func TestPatternsCommand(t *testing.T) {
	cmd := NewPatternsCommand(testDeps(t))
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"frequency"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "2025-11")
}

func TestPatternsCommandRejectsUnknownType(t *testing.T) {
	cmd := NewPatternsCommand(testDeps(t))
	cmd.SetArgs([]string{"bogus"})
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pattern_type")
}

func TestClassifyCommandSingleMeeting(t *testing.T) {
	cmd := NewClassifyCommand(testDeps(t))
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"m1"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "engineering")
}

func TestClassifyCommandRequiresTarget(t *testing.T) {
	cmd := NewClassifyCommand(testDeps(t))
	cmd.SetArgs([]string{})
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--all")
}

func TestVersionCommand(t *testing.T) {
	cmd := NewVersionCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})

	require.NoError(t, cmd.Execute())
	assert.NotEmpty(t, out.String())
}
