// Package workflow holds the interactive bibliographic commands. Each workflow
// runs on its own goroutine and suspends on prompts while the host's event loop
// drives the dialogs.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bibnote/bibnote/internal/commands"
	"github.com/bibnote/bibnote/internal/prompt"
	"github.com/bibnote/bibnote/internal/records"
	"github.com/charmbracelet/log"
	"github.com/samber/lo"
)

const (
	// AddEntryID is the palette ID of the add-entry command.
	AddEntryID = "add-bibliographic-entry"
	// AddEntryName is the palette display name of the add-entry command.
	AddEntryName = "Add Bibliographic Entry"

	titleRuleNotice = `A title must not be empty or contain "/" or "\".`
	yearRuleNotice  = "Enter a year from 1 to four digits, or leave it empty."
	isbnRuleNotice  = "Enter a valid ISBN-10 or ISBN-13, or leave it empty."
)

// Store is the record persistence the workflow writes through.
type Store interface {
	Exists(title string) bool
	Save(ctx context.Context, record records.Record, overwrite bool) (string, error)
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithPromptOptions applies options to every prompt the workflow opens.
func WithPromptOptions(options ...prompt.Option) Option {
	return func(w *Workflow) {
		w.promptOptions = append(w.promptOptions, options...)
	}
}

// WithClock replaces the clock used for year validation.
func WithClock(now func() time.Time) Option {
	return func(w *Workflow) {
		if now != nil {
			w.now = now
		}
	}
}

// Workflow runs bibliographic commands against one host and store.
type Workflow struct {
	host          prompt.Host
	store         Store
	logger        *log.Logger
	promptOptions []prompt.Option
	now           func() time.Time
}

// New builds a workflow. A nil logger discards output.
func New(host prompt.Host, store Store, logger *log.Logger, options ...Option) (*Workflow, error) {
	if host == nil {
		return nil, errors.New("dialog host is required")
	}
	if store == nil {
		return nil, errors.New("record store is required")
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	w := &Workflow{
		host:   host,
		store:  store,
		logger: logger,
		now:    time.Now,
	}
	for _, option := range options {
		if option != nil {
			option(w)
		}
	}
	return w, nil
}

// Register adds the workflow's commands to registry.
func (w *Workflow) Register(registry *commands.Registry) error {
	return registry.Register(AddEntryID, AddEntryName, func(ctx context.Context) error {
		_, err := w.AddEntry(ctx)
		return err
	})
}

// AddEntry collects a record through a sequence of prompts, saves it and
// returns the note path. Cancelling any prompt aborts with prompt.ErrCancelled.
func (w *Workflow) AddEntry(ctx context.Context) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := w.logger.With("command", AddEntryID)

	title, overwrite, err := w.askTitle(ctx)
	if err != nil {
		return "", w.aborted(logger, "title", err)
	}

	record := records.Record{Title: title}
	authors, err := w.ask(ctx, "Authors", "Comma separated, optional", nil, "")
	if err != nil {
		return "", w.aborted(logger, "authors", err)
	}
	record.Authors = splitList(authors)

	year, err := w.ask(ctx, "Year", "e.g. 1965", w.validYear, yearRuleNotice)
	if err != nil {
		return "", w.aborted(logger, "year", err)
	}
	if year = strings.TrimSpace(year); year != "" {
		record.Year, _ = strconv.Atoi(year)
	}

	publisher, err := w.ask(ctx, "Publisher", "Optional", nil, "")
	if err != nil {
		return "", w.aborted(logger, "publisher", err)
	}
	record.Publisher = strings.TrimSpace(publisher)

	isbn, err := w.ask(ctx, "ISBN", "ISBN-10 or ISBN-13, optional", validISBN, isbnRuleNotice)
	if err != nil {
		return "", w.aborted(logger, "isbn", err)
	}
	if strings.TrimSpace(isbn) != "" {
		record.ISBN, _ = records.NormalizeISBN(isbn)
	}

	tags, err := w.ask(ctx, "Tags", "Comma separated, optional", nil, "")
	if err != nil {
		return "", w.aborted(logger, "tags", err)
	}
	record.Tags = splitTags(tags)

	confirm := prompt.Confirm(w.host, "Save record?", w.options(prompt.WithMessage(record.Summary()))...)
	save, err := confirm.Await(ctx)
	if err != nil {
		w.cancelOnContext(ctx, confirm.Cancel)
		return "", w.aborted(logger, "confirm", err)
	}
	if !save {
		return "", w.aborted(logger, "confirm", prompt.ErrCancelled)
	}

	path, err := w.store.Save(ctx, record, overwrite)
	if err != nil {
		logger.Error("save bibliographic record", "title", record.Title, "error", err)
		prompt.Notice(w.host, fmt.Sprintf("Could not save %q: %v", record.Title, err), w.options()...)
		return "", fmt.Errorf("save record %q: %w", record.Title, err)
	}
	logger.Info("bibliographic record saved", "title", record.Title, "path", path, "overwrite", overwrite)

	// A dismissed notice counts as acknowledged; a done context just stops waiting.
	_, _ = prompt.Notice(w.host, "Saved "+path, w.options()...).Await(ctx)
	return path, nil
}

// askTitle runs the title prompt. A title that names an existing record opens a
// nested overwrite confirmation from the feedback handler: Overwrite approves the
// title and resubmits, Keep existing cancels the title prompt.
func (w *Workflow) askTitle(ctx context.Context) (string, bool, error) {
	var (
		mu       sync.Mutex
		approved string
		pending  *prompt.ConfirmSession
	)
	isApproved := func(title string) bool {
		mu.Lock()
		defer mu.Unlock()
		return approved == title
	}

	validator := func(value string) bool {
		if records.ValidateTitle(value) != nil {
			return false
		}
		title := strings.TrimSpace(value)
		return !w.store.Exists(title) || isApproved(title)
	}

	feedback := func(session *prompt.TextSession, rejected string) {
		if records.ValidateTitle(rejected) != nil {
			prompt.Notice(w.host, titleRuleNotice, w.options()...)
			return
		}
		title := strings.TrimSpace(rejected)
		// The choice is applied while the host is still handling the click, so
		// input that follows it reaches the next prompt and not this one.
		confirm := prompt.Confirm(
			w.host,
			fmt.Sprintf("A record named %q already exists. Overwrite it?", title),
			w.options(
				prompt.WithLabels("Overwrite", "Keep existing"),
				prompt.WithOnResolve(func(overwrite bool, err error) {
					switch {
					case err != nil:
						// Dismissed: back to editing the title.
					case overwrite:
						mu.Lock()
						approved = title
						mu.Unlock()
						_ = session.Submit()
					default:
						_ = session.Cancel()
					}
				}),
			)...,
		)
		mu.Lock()
		pending = confirm
		mu.Unlock()
	}

	session := prompt.Text(w.host, "Title", w.options(
		prompt.WithPlaceholder("Title of the work"),
		prompt.WithValidator(validator),
		prompt.WithInvalidFeedback(feedback),
	)...)
	value, err := session.Await(ctx)
	if err != nil {
		mu.Lock()
		confirm := pending
		mu.Unlock()
		if confirm != nil {
			w.cancelOnContext(ctx, confirm.Cancel)
		}
		w.cancelOnContext(ctx, session.Cancel)
		return "", false, err
	}
	title := strings.TrimSpace(value)
	return title, isApproved(title), nil
}

// ask runs one optional text field. A nil validator accepts everything.
func (w *Workflow) ask(ctx context.Context, title, placeholder string, validator func(string) bool, notice string) (string, error) {
	options := []prompt.Option{prompt.WithPlaceholder(placeholder)}
	if validator != nil {
		options = append(options, prompt.WithValidator(validator), prompt.WithInvalidNotice(notice))
	}
	session := prompt.Text(w.host, title, w.options(options...)...)
	value, err := session.Await(ctx)
	if err != nil {
		w.cancelOnContext(ctx, session.Cancel)
		return "", err
	}
	return value, nil
}

func (w *Workflow) options(extra ...prompt.Option) []prompt.Option {
	out := make([]prompt.Option, 0, len(w.promptOptions)+len(extra))
	out = append(out, w.promptOptions...)
	return append(out, extra...)
}

// cancelOnContext closes a dialog left open by an abandoned Await.
func (w *Workflow) cancelOnContext(ctx context.Context, cancel func() error) {
	if ctx.Err() != nil {
		_ = cancel()
	}
}

func (w *Workflow) aborted(logger *log.Logger, step string, err error) error {
	if errors.Is(err, prompt.ErrCancelled) {
		logger.Info("bibliographic entry cancelled", "step", step)
		return err
	}
	logger.Warn("bibliographic entry aborted", "step", step, "error", err)
	return err
}

func (w *Workflow) validYear(value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return true
	}
	if len(value) > 4 || strings.Trim(value, "0123456789") != "" {
		return false
	}
	year, err := strconv.Atoi(value)
	// Year 0 is how a record stores "no year", so it cannot be entered.
	return err == nil && year > 0 && year <= w.now().Year()+1
}

func validISBN(value string) bool {
	if strings.TrimSpace(value) == "" {
		return true
	}
	_, ok := records.NormalizeISBN(value)
	return ok
}

func splitList(value string) []string {
	return lo.Uniq(lo.FilterMap(strings.Split(value, ","), func(item string, _ int) (string, bool) {
		item = strings.TrimSpace(item)
		return item, item != ""
	}))
}

func splitTags(value string) []string {
	return lo.Uniq(lo.FilterMap(splitList(value), func(tag string, _ int) (string, bool) {
		tag = strings.Join(strings.Fields(strings.TrimLeft(tag, "#")), "-")
		return tag, tag != ""
	}))
}
