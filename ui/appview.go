package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"helpdesk/agent"
	appmodel "helpdesk/model"
	"helpdesk/storage"
)

// renderedMessage caches the markdown rendering of a message. source is the
// text it was rendered from, so a replaced conversation is re-rendered.
type renderedMessage struct {
	source string
	width  int
	out    string
}

type AppView struct {
	// Reference to core data model
	dataModel *appmodel.Model
	watcher   *appmodel.StoreWatcher

	// UI Components
	viewport viewport.Model
	textarea textarea.Model

	// Window state
	width  int
	height int
	ready  bool

	// Latest store state; everything in the conversation is drawn from it
	snapshot appmodel.Snapshot
	rendered map[int]renderedMessage

	// Loading spinner while the reply is pending
	loadingSpinner spinner.Model

	// Agent message that reactions and copy apply to, -1 for the latest
	selectedReply int

	showHelp bool

	showSearch        bool
	searchInput       textinput.Model
	searchResults     []storage.TranscriptMessageMatch
	selectedSearchIdx int
	searchScrollIdx   int

	// Transcript list modal
	showTranscripts       bool
	transcripts           []storage.TranscriptMetadata
	selectedTranscriptIdx int
	transcriptScrollIdx   int
	confirmDelete         *storage.TranscriptMetadata

	highlightedMessageIdx int
	highlightFlashCount   int

	// Status line
	serverInfo *agent.ServerInfo
	serverErr  error
	flash      string
	flashIsErr bool
}

func NewAppView(dataModel *appmodel.Model) AppView {
	ta := textarea.New()
	ta.Placeholder = "Опишите проблему..."
	ta.Focus()
	ta.CharLimit = 0
	ta.ShowLineNumbers = false
	ta.SetHeight(3)
	ta.SetWidth(80)

	// Alt+Enter for newline, Enter alone submits (handled separately)
	ta.KeyMap.InsertNewline = key.NewBinding(key.WithKeys("alt+enter"))

	ta.SetPromptFunc(2, func(lineIdx int) string {
		if lineIdx == 0 {
			return "> "
		}
		return "| "
	})

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = AgentStyle

	searchInput := textinput.New()
	searchInput.Prompt = "Поиск: "
	searchInput.CharLimit = 100

	return AppView{
		dataModel:             dataModel,
		watcher:               appmodel.WatchStore(dataModel.Store),
		textarea:              ta,
		viewport:              viewport.New(0, 0),
		snapshot:              dataModel.Store.Snapshot(),
		rendered:              make(map[int]renderedMessage),
		loadingSpinner:        sp,
		selectedReply:         -1,
		searchInput:           searchInput,
		highlightedMessageIdx: -1,
	}
}

func (a AppView) Init() tea.Cmd {
	// Markdown waits for WindowSizeMsg to know the width
	return tea.Batch(
		textarea.Blink,
		a.loadingSpinner.Tick,
		a.watcher.Wait(),
		a.dataModel.PingCmd(),
	)
}

// Close stops listening to the store.
func (a AppView) Close() {
	a.watcher.Stop()
}

func (a AppView) View() string {
	if !a.ready {
		return "Loading helpdesk..."
	}

	if a.showHelp {
		return a.renderHelpModal(a.width, a.height)
	}

	if a.showSearch {
		return renderTranscriptSearch(a, a.width, a.height)
	}

	if a.showTranscripts {
		return renderTranscriptList(a, a.width, a.height)
	}

	var b strings.Builder
	b.WriteString(a.renderHeader())
	b.WriteString("\n")
	b.WriteString(a.viewport.View())
	b.WriteString("\n")
	b.WriteString(a.textarea.View())
	b.WriteString("\n")
	b.WriteString(a.renderStatusBar())
	return b.String()
}

func (a AppView) renderHeader() string {
	title := TitleStyle.Render("Техподдержка")

	var server string
	switch {
	case a.serverErr != nil:
		server = ErrorStyle.Render("● offline")
	case a.serverInfo != nil:
		server = LikedStyle.Render("● online")
		if a.serverInfo.Version != "" {
			server += DimStyle.Render(" v" + a.serverInfo.Version)
		}
	default:
		server = DimStyle.Render("● ...")
	}

	gap := a.width - lipgloss.Width(title) - lipgloss.Width(server)
	if gap < 1 {
		gap = 1
	}
	return title + strings.Repeat(" ", gap) + server
}

func (a AppView) renderStatusBar() string {
	kb := a.dataModel.Config.Keys()

	if a.flash != "" {
		if a.flashIsErr {
			return ErrorStyle.Render(a.flash)
		}
		return StatusStyle.Render(a.flash)
	}

	switch a.snapshot.Status {
	case appmodel.StatusPending, appmodel.StatusStreaming:
		return FormatFooter(kb.DisplayActionKey("cancel"), "Cancel")
	}

	return FormatFooter(
		"Enter", "Send",
		kb.DisplayActionKey("like")+"/"+kb.DisplayActionKey("dislike"), "React",
		kb.DisplayActionKey("yank_last_response"), "Copy",
		kb.DisplayActionKey("new_session"), "New",
		kb.DisplayActionKey("help"), "Help",
		kb.DisplayActionKey("quit"), "Quit",
	)
}

// chromeHeight is the textarea plus the header and status lines.
func (a AppView) chromeHeight() int {
	return a.textarea.Height() + 3
}

func (a *AppView) resize(width, height int) {
	a.width = width
	a.height = height
	a.textarea.SetWidth(width)
	vpHeight := height - a.chromeHeight()
	if vpHeight < 1 {
		vpHeight = 1
	}
	if !a.ready {
		a.viewport = viewport.New(width, vpHeight)
		a.ready = true
		return
	}
	a.viewport.Width = width
	a.viewport.Height = vpHeight
}

func (a AppView) busy() bool {
	return a.snapshot.Status != appmodel.StatusIdle || a.dataModel.Controller.Busy()
}

func describeOutcome(res appmodel.Result) string {
	switch res.Outcome {
	case appmodel.OutcomeFailed:
		return "Сервер недоступен, ответ заменён сообщением об ошибке"
	case appmodel.OutcomeCancelled:
		if res.Index < 0 {
			return "Вопрос отменён"
		}
		return "Ответ прерван"
	}
	return ""
}

func describeError(err error) string {
	return fmt.Sprintf("Ошибка: %v", err)
}
