package workflow

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bibnote/bibnote/internal/commands"
	"github.com/bibnote/bibnote/internal/prompt"
	"github.com/bibnote/bibnote/internal/prompt/prompttest"
	"github.com/bibnote/bibnote/internal/records"
	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

type result struct {
	path string
	err  error
}

type fixture struct {
	host   *prompttest.Host
	store  *records.Store
	flow   *Workflow
	logs   *bytes.Buffer
	result chan result
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	host := prompttest.NewHost()
	store := records.NewStore(filepath.Join(t.TempDir(), "Bibliographic"), records.WithClock(func() time.Time { return fixedNow }))
	logs := &bytes.Buffer{}
	logger := log.NewWithOptions(logs, log.Options{Level: log.DebugLevel})
	flow, err := New(host, store, logger, WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	return &fixture{host: host, store: store, flow: flow, logs: logs, result: make(chan result, 1)}
}

func (f *fixture) start(ctx context.Context) {
	go func() {
		path, err := f.flow.AddEntry(ctx)
		f.result <- result{path: path, err: err}
	}()
}

func (f *fixture) wait(t *testing.T) result {
	t.Helper()
	select {
	case res := <-f.result:
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("workflow did not finish")
		return result{}
	}
}

// waitFor blocks until the top visible dialog's title starts with prefix.
func waitFor(t *testing.T, host *prompttest.Host, prefix string) *prompttest.Surface {
	t.Helper()
	require.Eventually(t, func() bool {
		top := host.Top()
		return top != nil && strings.HasPrefix(top.Title(), prefix)
	}, 2*time.Second, 2*time.Millisecond, "waiting for dialog %q", prefix)
	return host.Top()
}

func answer(t *testing.T, host *prompttest.Host, title, value string) {
	t.Helper()
	surface := waitFor(t, host, title)
	require.NoError(t, surface.Type(value))
	require.NoError(t, surface.PressEnter())
}

func TestAddEntrySavesRecord(t *testing.T) {
	f := newFixture(t)
	f.start(context.Background())

	answer(t, f.host, "Title", "  Dune ")
	answer(t, f.host, "Authors", "Frank Herbert, , Frank Herbert")

	answer(t, f.host, "Year", "19655")
	notice := waitFor(t, f.host, yearRuleNotice)
	require.NoError(t, notice.Click("Ok"))
	answer(t, f.host, "Year", "1965")

	answer(t, f.host, "Publisher", "Chilton Books")
	answer(t, f.host, "ISBN", "978-0-441-01359-3")
	answer(t, f.host, "Tags", "#scifi, space opera, scifi")

	confirm := waitFor(t, f.host, "Save record?")
	assert.Equal(t, []string{"Dune by Frank Herbert (1965)"}, confirm.Messages())
	require.NoError(t, confirm.Click("Yes"))

	saved := waitFor(t, f.host, "Saved ")
	require.NoError(t, saved.Click("Ok"))

	res := f.wait(t)
	require.NoError(t, res.err)
	assert.Equal(t, filepath.Join(f.store.Dir(), "Dune.md"), res.path)
	assert.Equal(t, "Saved "+res.path, saved.Title())

	record, err := f.store.Load("Dune")
	require.NoError(t, err)
	assert.Equal(t, []string{"Frank Herbert"}, record.Authors)
	assert.Equal(t, 1965, record.Year)
	assert.Equal(t, "Chilton Books", record.Publisher)
	assert.Equal(t, "9780441013593", record.ISBN)
	assert.Equal(t, []string{"scifi", "space-opera"}, record.Tags)
	assert.Empty(t, f.host.Visible())
	assert.Contains(t, f.logs.String(), "bibliographic record saved")
}

func TestAddEntryInvalidTitleShowsRule(t *testing.T) {
	f := newFixture(t)
	f.start(context.Background())

	answer(t, f.host, "Title", "Moby/Dick")
	notice := waitFor(t, f.host, titleRuleNotice)
	require.NoError(t, notice.Click("Ok"))

	title := waitFor(t, f.host, "Title")
	assert.Equal(t, "Moby/Dick", title.Value())
	title.DismissByUser()

	res := f.wait(t)
	require.ErrorIs(t, res.err, prompt.ErrCancelled)
	assert.Contains(t, f.logs.String(), "bibliographic entry cancelled")
	assert.Contains(t, f.logs.String(), "step=title")
}

func TestAddEntryOverwritesExistingRecord(t *testing.T) {
	f := newFixture(t)
	_, err := f.store.Save(context.Background(), records.Record{Title: "Dune", Year: 1900}, false)
	require.NoError(t, err)
	f.start(context.Background())

	answer(t, f.host, "Title", "Dune")
	confirm := waitFor(t, f.host, "A record named")
	assert.Equal(t, `A record named "Dune" already exists. Overwrite it?`, confirm.Title())
	require.NoError(t, confirm.Click("Overwrite"))
	assert.True(t, f.host.Surfaces()[0].Dismissed(), "the title prompt closes before the click returns")

	answer(t, f.host, "Authors", "")
	answer(t, f.host, "Year", "1965")
	answer(t, f.host, "Publisher", "")
	answer(t, f.host, "ISBN", "")
	answer(t, f.host, "Tags", "")
	require.NoError(t, waitFor(t, f.host, "Save record?").Click("Yes"))
	require.NoError(t, waitFor(t, f.host, "Saved ").Click("Ok"))

	res := f.wait(t)
	require.NoError(t, res.err)
	record, err := f.store.Load("Dune")
	require.NoError(t, err)
	assert.Equal(t, 1965, record.Year)
}

func TestAddEntryKeepExistingCancels(t *testing.T) {
	f := newFixture(t)
	_, err := f.store.Save(context.Background(), records.Record{Title: "Dune", Year: 1900}, false)
	require.NoError(t, err)
	f.start(context.Background())

	answer(t, f.host, "Title", "Dune")
	waitFor(t, f.host, "A record named").DismissByUser()

	// Dismissing the confirmation returns to the title prompt.
	title := waitFor(t, f.host, "Title")
	require.NoError(t, title.PressEnter())
	require.NoError(t, waitFor(t, f.host, "A record named").Click("Keep existing"))
	assert.True(t, title.Dismissed(), "the title prompt closes before the click returns")

	res := f.wait(t)
	require.ErrorIs(t, res.err, prompt.ErrCancelled)

	record, err := f.store.Load("Dune")
	require.NoError(t, err)
	assert.Equal(t, 1900, record.Year)
}

func TestAddEntryDecliningSaveWritesNothing(t *testing.T) {
	f := newFixture(t)
	f.start(context.Background())

	answer(t, f.host, "Title", "Kindred")
	for _, step := range []string{"Authors", "Year", "Publisher", "ISBN", "Tags"} {
		answer(t, f.host, step, "")
	}
	require.NoError(t, waitFor(t, f.host, "Save record?").Click("No"))

	res := f.wait(t)
	require.ErrorIs(t, res.err, prompt.ErrCancelled)
	assert.False(t, f.store.Exists("Kindred"))
	assert.Contains(t, f.logs.String(), "step=confirm")
}

func TestAddEntryContextCancelClosesDialog(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	f.start(ctx)

	answer(t, f.host, "Title", "Ubik")
	authors := waitFor(t, f.host, "Authors")
	cancel()

	res := f.wait(t)
	require.ErrorIs(t, res.err, context.Canceled)
	assert.True(t, authors.Dismissed())
	assert.Empty(t, f.host.Visible())
}

func TestAddEntrySaveFailureShowsNotice(t *testing.T) {
	f := newFixture(t)
	// A file where the record folder should be makes MkdirAll fail.
	require.NoError(t, os.WriteFile(f.store.Dir(), []byte("in the way"), 0o600))
	f.start(context.Background())

	answer(t, f.host, "Title", "Solaris")
	for _, step := range []string{"Authors", "Year", "Publisher", "ISBN", "Tags"} {
		answer(t, f.host, step, "")
	}
	require.NoError(t, waitFor(t, f.host, "Save record?").Click("Yes"))

	res := f.wait(t)
	require.Error(t, res.err)
	assert.False(t, errors.Is(res.err, prompt.ErrCancelled))
	assert.True(t, strings.HasPrefix(waitFor(t, f.host, "Could not save").Title(), `Could not save "Solaris"`))
}

func TestNewRequiresDependencies(t *testing.T) {
	t.Parallel()

	_, err := New(nil, records.NewStore(t.TempDir()), nil)
	require.Error(t, err)
	_, err = New(prompttest.NewHost(), nil, nil)
	require.Error(t, err)
}

func TestRegisterAddsAddEntryCommand(t *testing.T) {
	t.Parallel()

	flow, err := New(prompttest.NewHost(), records.NewStore(t.TempDir()), nil)
	require.NoError(t, err)
	registry := commands.NewRegistry(nil)
	require.NoError(t, flow.Register(registry))

	command, ok := registry.Lookup(AddEntryID)
	require.True(t, ok)
	assert.Equal(t, AddEntryName, command.Name)
	require.Error(t, flow.Register(registry))
}

func TestValidYear(t *testing.T) {
	t.Parallel()

	flow := &Workflow{now: func() time.Time { return fixedNow }}
	tests := map[string]bool{
		"":      true,
		" ":     true,
		"0":     false,
		"0000":  false,
		"0042":  true,
		"1965":  true,
		"2027":  true,
		"2028":  false,
		"12345": false,
		"19a5":  false,
		"-12":   false,
	}
	for input, want := range tests {
		assert.Equal(t, want, flow.validYear(input), input)
	}
}

func TestSplitHelpers(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"Terry Pratchett", "Neil Gaiman"}, splitList(" Terry Pratchett ,Neil Gaiman,, Terry Pratchett"))
	assert.Empty(t, splitList(" , "))
	assert.Equal(t, []string{"scifi", "hard-sf", "to-read"}, splitTags("#scifi, hard sf, ##to read, #, scifi"))
	assert.True(t, validISBN(""))
	assert.False(t, validISBN("123"))
}
