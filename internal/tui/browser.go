package tui

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/bibnote/bibnote/internal/records"
	"github.com/bibnote/bibnote/internal/tui/theme"
	"github.com/bibnote/bibnote/internal/tui/views"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	// MaxNavigationDepth bounds the browser view stack.
	MaxNavigationDepth = 2
	// StandardLayoutMinWidth is the terminal width threshold for the side-by-side preview.
	StandardLayoutMinWidth = 120

	defaultBrowserWidth  = 80
	defaultBrowserHeight = 24
)

// ViewID identifies a browser screen.
type ViewID string

const (
	// ViewRecordList is the landing screen listing every record.
	ViewRecordList ViewID = "record_list"
	// ViewRecordNote shows one rendered note.
	ViewRecordNote ViewID = "record_note"
)

// LayoutMode identifies the responsive browser layout.
type LayoutMode string

const (
	// LayoutStandard renders the list beside a note preview.
	LayoutStandard LayoutMode = "standard"
	// LayoutCompact renders the list alone.
	LayoutCompact LayoutMode = "compact"
)

// OverlayKind identifies modal layers drawn above the current view.
type OverlayKind string

const (
	// OverlayHelp shows the key bindings.
	OverlayHelp OverlayKind = "help"
	// OverlayConfirmQuit asks before leaving the browser.
	OverlayConfirmQuit OverlayKind = "confirm_quit"
)

type recordItem struct {
	record records.Record
}

func (i recordItem) Title() string { return i.record.Title }

func (i recordItem) Description() string {
	parts := make([]string, 0, 3)
	if len(i.record.Authors) > 0 {
		parts = append(parts, strings.Join(i.record.Authors, ", "))
	}
	if i.record.Year != 0 {
		parts = append(parts, strconv.Itoa(i.record.Year))
	}
	if len(i.record.Tags) > 0 {
		parts = append(parts, "#"+strings.Join(i.record.Tags, " #"))
	}
	if len(parts) == 0 {
		return "no details"
	}
	return strings.Join(parts, " · ")
}

func (i recordItem) FilterValue() string {
	return i.record.Title + " " + strings.Join(i.record.Authors, " ")
}

type browserKeyMap struct {
	Open key.Binding
	Back key.Binding
	Help key.Binding
	Quit key.Binding
}

func defaultBrowserKeyMap() browserKeyMap {
	return browserKeyMap{
		Open: newBinding([]string{"enter"}, "enter", "open"),
		Back: newBinding([]string{"esc"}, "esc", "back"),
		Help: newBinding([]string{"?"}, "?", "help"),
		Quit: newBinding([]string{"q", "ctrl+c"}, "q", "quit"),
	}
}

// ShortHelp satisfies help.KeyMap.
func (k browserKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Open, k.Back, k.Help, k.Quit}
}

// FullHelp satisfies help.KeyMap.
func (k browserKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Open, k.Back}, {k.Help, k.Quit}}
}

// Browser is the Bubble Tea model behind `bibnote browse`.
type Browser struct {
	list     list.Model
	note     viewport.Model
	help     help.Model
	keys     browserKeyMap
	navStack []ViewID
	overlays []OverlayKind
	width    int
	height   int
	layout   LayoutMode
	quitting bool
	noteFor  string
}

// NewBrowser builds a browser over entries, which should already be sorted.
func NewBrowser(entries []records.Record) *Browser {
	items := make([]list.Item, 0, len(entries))
	for _, entry := range entries {
		items = append(items, recordItem{record: entry})
	}

	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.Foreground(theme.SaffronColor).BorderForeground(theme.SaffronColor)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.Foreground(theme.VellumColor).BorderForeground(theme.SaffronColor)

	recordList := list.New(items, delegate, defaultBrowserWidth, defaultBrowserHeight-2)
	recordList.Title = "Bibliographic records"
	recordList.Styles.Title = theme.TitleStyle
	recordList.SetShowHelp(false)
	recordList.DisableQuitKeybindings()
	recordList.SetStatusBarItemName("record", "records")

	return &Browser{
		list:     recordList,
		note:     viewport.New(defaultBrowserWidth, defaultBrowserHeight-2),
		help:     help.New(),
		keys:     defaultBrowserKeyMap(),
		navStack: []ViewID{ViewRecordList},
		overlays: make([]OverlayKind, 0, 2),
		width:    defaultBrowserWidth,
		height:   defaultBrowserHeight,
		layout:   LayoutCompact,
	}
}

// Init satisfies tea.Model.
func (b *Browser) Init() tea.Cmd {
	return nil
}

// Update satisfies tea.Model.
func (b *Browser) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		b.resize(typed.Width, typed.Height)
		return b, nil
	case tea.KeyMsg:
		return b.handleKey(typed)
	default:
		return b.delegate(msg)
	}
}

func (b *Browser) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if b.CurrentView() == ViewRecordList && b.list.FilterState() == list.Filtering && len(b.overlays) == 0 {
		return b.delegate(msg)
	}

	switch msg.String() {
	case "?":
		if overlay, ok := b.CurrentOverlay(); ok && overlay == OverlayHelp {
			b.PopOverlay()
			return b, nil
		}
		b.PushOverlay(OverlayHelp)
		return b, nil
	case "q", "ctrl+c":
		if overlay, ok := b.CurrentOverlay(); ok && overlay == OverlayConfirmQuit {
			b.quitting = true
			return b, tea.Quit
		}
		b.PushOverlay(OverlayConfirmQuit)
		return b, nil
	case "esc":
		if b.PopOverlay() {
			return b, nil
		}
		b.PopView()
		return b, nil
	case "enter":
		if overlay, ok := b.CurrentOverlay(); ok {
			if overlay == OverlayConfirmQuit {
				b.quitting = true
				return b, tea.Quit
			}
			b.PopOverlay()
			return b, nil
		}
		if b.CurrentView() == ViewRecordList {
			if _, ok := b.Selected(); ok {
				b.PushView(ViewRecordNote)
			}
			return b, nil
		}
		return b, nil
	}

	if len(b.overlays) > 0 {
		return b, nil
	}
	return b.delegate(msg)
}

func (b *Browser) delegate(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch b.CurrentView() {
	case ViewRecordNote:
		b.note, cmd = b.note.Update(msg)
	default:
		b.list, cmd = b.list.Update(msg)
	}
	return b, cmd
}

// View satisfies tea.Model.
func (b *Browser) View() string {
	if b.quitting {
		return ""
	}

	base := b.renderCurrentView()
	overlay, ok := b.CurrentOverlay()
	if !ok {
		return lipgloss.JoinVertical(lipgloss.Left, base, b.help.ShortHelpView(b.keys.ShortHelp()))
	}

	var body string
	switch overlay {
	case OverlayConfirmQuit:
		body = theme.TitleStyle.Render("Quit bibnote?") + "\n" +
			theme.HintStyle.Render("enter or q to quit · esc to stay")
	default:
		body = theme.TitleStyle.Render("Keys") + "\n" + b.help.FullHelpView(b.keys.FullHelp())
	}
	return lipgloss.JoinVertical(lipgloss.Left, base, theme.DialogBorder.Padding(0, 1).Render(body))
}

func (b *Browser) renderCurrentView() string {
	switch b.CurrentView() {
	case ViewRecordNote:
		b.syncNote(b.width)
		return b.note.View()
	default:
		if b.layout != LayoutStandard {
			return b.list.View()
		}
		listWidth := b.width * 2 / 5
		previewWidth := b.width - listWidth - 4
		preview := theme.HintStyle.Render("No record selected.")
		if record, ok := b.Selected(); ok {
			preview = views.RenderNote(views.RecordMarkdown(record), previewWidth)
		}
		framed := theme.InputBorder.Width(previewWidth).MaxHeight(b.height - 2).Render(strings.TrimSpace(preview))
		return lipgloss.JoinHorizontal(lipgloss.Top, b.list.View(), framed)
	}
}

// syncNote renders the selected record into the viewport once per selection.
func (b *Browser) syncNote(width int) {
	record, ok := b.Selected()
	if !ok {
		b.note.SetContent(theme.HintStyle.Render("No record selected."))
		b.noteFor = ""
		return
	}
	if b.noteFor == record.Title {
		return
	}
	b.note.SetContent(views.RenderNote(views.RecordMarkdown(record), width))
	b.note.GotoTop()
	b.noteFor = record.Title
}

func (b *Browser) resize(width, height int) {
	b.width = width
	b.height = height
	b.layout = resolveLayoutMode(width, StandardLayoutMinWidth)

	listWidth := width
	if b.layout == LayoutStandard {
		listWidth = width * 2 / 5
	}
	b.list.SetSize(listWidth, max(1, height-2))
	b.note.Width = width
	b.note.Height = max(1, height-2)
	b.noteFor = ""
}

// Selected returns the highlighted record.
func (b *Browser) Selected() (records.Record, bool) {
	item, ok := b.list.SelectedItem().(recordItem)
	if !ok {
		return records.Record{}, false
	}
	return item.record, true
}

// PushView appends a view, replacing the top once the stack is full.
func (b *Browser) PushView(view ViewID) {
	if view == "" {
		return
	}
	if len(b.navStack) >= MaxNavigationDepth {
		b.navStack[len(b.navStack)-1] = view
		return
	}
	b.navStack = append(b.navStack, view)
}

// PopView pops one view while keeping the record list as root.
func (b *Browser) PopView() bool {
	if len(b.navStack) <= 1 {
		return false
	}
	b.navStack = b.navStack[:len(b.navStack)-1]
	return true
}

// CurrentView returns the view on top of the navigation stack.
func (b *Browser) CurrentView() ViewID {
	if len(b.navStack) == 0 {
		return ViewRecordList
	}
	return b.navStack[len(b.navStack)-1]
}

// NavigationStack returns a copy of the navigation stack.
func (b *Browser) NavigationStack() []ViewID {
	out := make([]ViewID, len(b.navStack))
	copy(out, b.navStack)
	return out
}

// PushOverlay stacks a modal layer.
func (b *Browser) PushOverlay(overlay OverlayKind) {
	if overlay == "" {
		return
	}
	b.overlays = append(b.overlays, overlay)
}

// PopOverlay removes the top overlay and reports whether one existed.
func (b *Browser) PopOverlay() bool {
	if len(b.overlays) == 0 {
		return false
	}
	b.overlays = b.overlays[:len(b.overlays)-1]
	return true
}

// CurrentOverlay returns the top overlay, if any.
func (b *Browser) CurrentOverlay() (OverlayKind, bool) {
	if len(b.overlays) == 0 {
		return "", false
	}
	return b.overlays[len(b.overlays)-1], true
}

// LayoutMode reports the active layout.
func (b *Browser) LayoutMode() LayoutMode {
	return b.layout
}

// Quitting reports whether a quit was confirmed.
func (b *Browser) Quitting() bool {
	return b.quitting
}

// RunBrowser runs the browser full screen until the user quits or ctx ends.
func RunBrowser(ctx context.Context, entries []records.Record, input io.Reader, output io.Writer) error {
	options := []tea.ProgramOption{tea.WithContext(ctx), tea.WithAltScreen()}
	if input != nil {
		options = append(options, tea.WithInput(input))
	}
	if output != nil {
		options = append(options, tea.WithOutput(output))
	}
	if _, err := tea.NewProgram(NewBrowser(entries), options...).Run(); err != nil {
		return fmt.Errorf("run record browser: %w", err)
	}
	return nil
}

func resolveLayoutMode(width int, standardMinWidth int) LayoutMode {
	if width < standardMinWidth {
		return LayoutCompact
	}
	return LayoutStandard
}
