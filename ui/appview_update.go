package ui

import (
	"errors"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"

	"helpdesk/config"
	appmodel "helpdesk/model"
)

type statusClearMsg struct {
	text string
}

func (a AppView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.resize(msg.Width, msg.Height)
		cmds = append(cmds, a.renderPending(true)...)
		a.updateViewportContent(true)
		return a, tea.Batch(cmds...)

	case storeChangedMsg:
		a.snapshot = msg.Snapshot
		if a.selectedReply >= len(a.snapshot.Messages) {
			a.selectedReply = -1
		}
		cmds = append(cmds, a.renderPending(false)...)
		a.updateViewportContent(true)
		cmds = append(cmds, a.watcher.Wait())
		if a.showSpinner() {
			cmds = append(cmds, a.loadingSpinner.Tick)
		}
		return a, tea.Batch(cmds...)

	case cycleDoneMsg:
		if msg.Err != nil {
			if errors.Is(msg.Err, appmodel.ErrBusy) {
				return a, a.setStatus("Дождитесь ответа на предыдущий вопрос", true)
			}
			return a, a.setStatus(describeError(msg.Err), true)
		}
		if config.DebugLog != nil {
			config.DebugLog.Debug().Str("outcome", msg.Result.Outcome.String()).Err(msg.Result.Cause).Msg("cycle finished")
		}
		if text := describeOutcome(msg.Result); text != "" {
			return a, a.setStatus(text, msg.Result.Outcome == appmodel.OutcomeFailed)
		}
		return a, nil

	case markdownRenderedMsg:
		if msg.MessageIndex < len(a.snapshot.Messages) {
			entry := a.rendered[msg.MessageIndex]
			if entry.source == a.snapshot.Messages[msg.MessageIndex].Text {
				entry.out = msg.Rendered
				a.rendered[msg.MessageIndex] = entry
				a.updateViewportContent(false)
			}
		}
		return a, nil

	case serverInfoMsg:
		a.serverInfo = msg.Info
		a.serverErr = msg.Err
		return a, nil

	case reactionChangedMsg:
		if msg.Err != nil {
			return a, a.setStatus(describeError(msg.Err), true)
		}
		return a, nil

	case newSessionMsg:
		if msg.Err != nil {
			return a, a.setStatus(describeError(msg.Err), true)
		}
		a.selectedReply = -1
		return a, a.setStatus("Новое обращение", false)

	case transcriptLoadedMsg:
		if msg.Err != nil {
			return a, a.setStatus(describeError(msg.Err), true)
		}
		if err := a.dataModel.SwitchTranscript(msg.Transcript); err != nil {
			return a, a.setStatus(describeError(err), true)
		}
		a.showTranscripts = false
		a.selectedReply = -1
		return a, nil

	case transcriptsListMsg:
		if msg.Err != nil {
			return a, a.setStatus(describeError(msg.Err), true)
		}
		a.transcripts = msg.Transcripts
		if a.selectedTranscriptIdx >= len(a.transcripts) {
			a.selectedTranscriptIdx = max(len(a.transcripts)-1, 0)
		}
		a.transcriptScrollIdx = clampScroll(a.selectedTranscriptIdx, a.transcriptScrollIdx, a.visibleTranscripts())
		return a, nil

	case transcriptDeletedMsg:
		if msg.Err != nil {
			return a, a.setStatus(describeError(msg.Err), true)
		}
		return a, tea.Batch(a.setStatus("Обращение удалено", false), a.dataModel.FetchTranscriptList())

	case searchResultsMsg:
		if msg.Query != a.searchInput.Value() {
			return a, nil
		}
		if msg.Err != nil {
			return a, a.setStatus(describeError(msg.Err), true)
		}
		a.searchResults = msg.Matches
		a.selectedSearchIdx = 0
		a.searchScrollIdx = 0
		return a, nil

	case clipboardCopiedMsg:
		if msg.Err != nil {
			return a, a.setStatus("Не удалось скопировать: "+msg.Err.Error(), true)
		}
		return a, a.setStatus("Скопировано", false)

	case statusClearMsg:
		if a.flash == msg.text {
			a.flash = ""
			a.flashIsErr = false
		}
		return a, nil

	case flashTickMsg:
		if a.highlightFlashCount > 0 {
			a.highlightFlashCount--
			a.updateViewportContent(false)
			if a.highlightFlashCount > 0 {
				return a, flashTick()
			}
		}
		a.highlightedMessageIdx = -1
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)
	}

	// Spinner ticks and anything else
	if a.showSpinner() {
		a.loadingSpinner, cmd = a.loadingSpinner.Update(msg)
		cmds = append(cmds, cmd)
		a.updateViewportContent(true)
	}
	a.viewport, cmd = a.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return a, tea.Batch(cmds...)
}

func (a AppView) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	kb := a.dataModel.Config.Keys()
	keyStr := msg.String()

	if keyStr == "ctrl+c" || kb.Matches(keyStr, "quit") {
		a.dataModel.Controller.Cancel()
		a.Close()
		return a, tea.Quit
	}

	if a.showHelp {
		if keyStr == "esc" || kb.Matches(keyStr, "help") {
			a.showHelp = false
		}
		return a, nil
	}

	if a.showSearch {
		return a.handleSearchKey(msg)
	}

	if a.showTranscripts {
		return a.handleTranscriptKey(msg)
	}

	switch {
	case kb.Matches(keyStr, "help"):
		a.showHelp = true
		return a, nil

	case kb.Matches(keyStr, "cancel"):
		a.dataModel.Controller.Cancel()
		return a, nil

	case kb.Matches(keyStr, "submit"):
		return a.submit()

	case kb.Matches(keyStr, "like"):
		return a, a.react(appmodel.ReactionLiked)

	case kb.Matches(keyStr, "dislike"):
		return a, a.react(appmodel.ReactionDisliked)

	case kb.Matches(keyStr, "select_prev_reply"):
		a.moveSelection(-1)
		a.updateViewportContent(false)
		return a, nil

	case kb.Matches(keyStr, "select_next_reply"):
		a.moveSelection(1)
		a.updateViewportContent(false)
		return a, nil

	case kb.Matches(keyStr, "yank_last_response"):
		idx := a.targetReply()
		if idx < 0 {
			return a, nil
		}
		return a, copyToClipboard(appmodel.PlainText(a.snapshot.Messages[idx].Text))

	case kb.Matches(keyStr, "yank_conversation"):
		return a, copyToClipboard(conversationText(a.snapshot.Messages))

	case kb.Matches(keyStr, "new_session"):
		if a.busy() {
			return a, a.setStatus("Дождитесь ответа на предыдущий вопрос", true)
		}
		return a, a.dataModel.NewSessionCmd()

	case kb.Matches(keyStr, "search_transcripts"):
		if a.dataModel.SearchIndex == nil {
			return a, a.setStatus("История отключена", true)
		}
		a.showSearch = true
		a.searchInput.Reset()
		a.searchResults = nil
		a.searchInput.Focus()
		return a, nil

	case kb.Matches(keyStr, "open_transcripts"):
		if a.dataModel.Transcripts == nil {
			return a, a.setStatus("История отключена", true)
		}
		a.showTranscripts = true
		a.selectedTranscriptIdx = 0
		a.transcriptScrollIdx = 0
		a.confirmDelete = nil
		return a, a.dataModel.FetchTranscriptList()

	case kb.Matches(keyStr, "agent_status"):
		return a, a.dataModel.PingCmd()

	case kb.Matches(keyStr, "clear_input"):
		a.textarea.Reset()
		return a, nil

	case kb.Matches(keyStr, "scroll_down"):
		a.viewport.LineDown(1)
		return a, nil
	case kb.Matches(keyStr, "scroll_up"):
		a.viewport.LineUp(1)
		return a, nil
	case kb.Matches(keyStr, "half_page_down"):
		a.viewport.HalfViewDown()
		return a, nil
	case kb.Matches(keyStr, "half_page_up"):
		a.viewport.HalfViewUp()
		return a, nil
	case kb.Matches(keyStr, "page_down"):
		a.viewport.ViewDown()
		return a, nil
	case kb.Matches(keyStr, "page_up"):
		a.viewport.ViewUp()
		return a, nil
	case kb.Matches(keyStr, "scroll_to_top"):
		a.viewport.GotoTop()
		return a, nil
	case kb.Matches(keyStr, "scroll_to_bottom"):
		a.viewport.GotoBottom()
		return a, nil
	}

	var cmd tea.Cmd
	a.textarea, cmd = a.textarea.Update(msg)
	return a, cmd
}

// submit sends the input while idle. While a reply is in flight the input is
// kept and nothing is sent.
func (a AppView) submit() (tea.Model, tea.Cmd) {
	if a.busy() {
		return a, nil
	}
	question := a.textarea.Value()
	if strings.TrimSpace(question) == "" {
		return a, nil
	}
	a.textarea.Reset()
	a.selectedReply = -1
	return a, a.dataModel.SubmitQuestionCmd(question)
}

func (a AppView) react(r appmodel.Reaction) tea.Cmd {
	idx := a.targetReply()
	if idx < 0 {
		return nil
	}
	return a.dataModel.ToggleReactionCmd(idx, r)
}

// targetReply is the selected agent message, or the latest one.
func (a AppView) targetReply() int {
	if a.selectedReply >= 0 {
		return a.selectedReply
	}
	replies := agentIndices(a.snapshot.Messages)
	if len(replies) == 0 {
		return -1
	}
	return replies[len(replies)-1]
}

func (a *AppView) moveSelection(delta int) {
	replies := agentIndices(a.snapshot.Messages)
	if len(replies) == 0 {
		return
	}
	pos := len(replies) - 1
	current := a.targetReply()
	for i, idx := range replies {
		if idx == current {
			pos = i
			break
		}
	}
	pos += delta
	if pos < 0 {
		pos = 0
	}
	if pos >= len(replies)-1 {
		a.selectedReply = -1
		return
	}
	a.selectedReply = replies[pos]
}

func agentIndices(messages []appmodel.Message) []int {
	var out []int
	for i, msg := range messages {
		if msg.Author == appmodel.AuthorAgent {
			out = append(out, i)
		}
	}
	return out
}

func (a AppView) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	kb := a.dataModel.Config.Keys()
	keyStr := msg.String()

	switch {
	case keyStr == "esc":
		a.showSearch = false
		a.searchInput.Blur()
		return a, nil

	case keyStr == "enter":
		if len(a.searchResults) == 0 {
			return a, nil
		}
		match := a.searchResults[a.selectedSearchIdx]
		a.showSearch = false
		a.highlightedMessageIdx = match.MessageIndex
		a.highlightFlashCount = 6
		if match.TranscriptID == a.dataModel.CurrentTranscriptID() {
			a.updateViewportContent(false)
			return a, flashTick()
		}
		if a.busy() {
			return a, a.setStatus("Дождитесь ответа на предыдущий вопрос", true)
		}
		return a, tea.Batch(a.dataModel.LoadTranscript(match.TranscriptID), flashTick())

	case keyStr == "down" || kb.Matches(keyStr, "search_down"):
		if a.selectedSearchIdx < len(a.searchResults)-1 {
			a.selectedSearchIdx++
		}
		a.searchScrollIdx = clampScroll(a.selectedSearchIdx, a.searchScrollIdx, a.visibleSearchResults())
		return a, nil

	case keyStr == "up" || kb.Matches(keyStr, "search_up"):
		if a.selectedSearchIdx > 0 {
			a.selectedSearchIdx--
		}
		a.searchScrollIdx = clampScroll(a.selectedSearchIdx, a.searchScrollIdx, a.visibleSearchResults())
		return a, nil
	}

	var cmd tea.Cmd
	before := a.searchInput.Value()
	a.searchInput, cmd = a.searchInput.Update(msg)
	if a.searchInput.Value() != before {
		return a, tea.Batch(cmd, a.dataModel.SearchTranscriptsCmd(a.searchInput.Value()))
	}
	return a, cmd
}

func (a AppView) handleTranscriptKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	kb := a.dataModel.Config.Keys()
	keyStr := msg.String()

	if a.confirmDelete != nil {
		switch keyStr {
		case "y", "enter":
			id := a.confirmDelete.ID
			a.confirmDelete = nil
			return a, a.dataModel.DeleteTranscriptCmd(id)
		case "n", "esc":
			a.confirmDelete = nil
		}
		return a, nil
	}

	switch {
	case keyStr == "esc" || kb.Matches(keyStr, "open_transcripts"):
		a.showTranscripts = false
		return a, nil

	case keyStr == "down" || kb.Matches(keyStr, "search_down"):
		if a.selectedTranscriptIdx < len(a.transcripts)-1 {
			a.selectedTranscriptIdx++
		}
		a.transcriptScrollIdx = clampScroll(a.selectedTranscriptIdx, a.transcriptScrollIdx, a.visibleTranscripts())
		return a, nil

	case keyStr == "up" || kb.Matches(keyStr, "search_up"):
		if a.selectedTranscriptIdx > 0 {
			a.selectedTranscriptIdx--
		}
		a.transcriptScrollIdx = clampScroll(a.selectedTranscriptIdx, a.transcriptScrollIdx, a.visibleTranscripts())
		return a, nil

	case keyStr == "enter":
		if len(a.transcripts) == 0 {
			return a, nil
		}
		selected := a.transcripts[a.selectedTranscriptIdx]
		if selected.ID == a.dataModel.CurrentTranscriptID() {
			a.showTranscripts = false
			return a, nil
		}
		if a.busy() {
			return a, a.setStatus("Дождитесь ответа на предыдущий вопрос", true)
		}
		return a, a.dataModel.LoadTranscript(selected.ID)

	case keyStr == "d" || keyStr == "delete":
		if len(a.transcripts) == 0 {
			return a, nil
		}
		selected := a.transcripts[a.selectedTranscriptIdx]
		if selected.ID == a.dataModel.CurrentTranscriptID() {
			return a, a.setStatus("Нельзя удалить открытое обращение", true)
		}
		a.confirmDelete = &selected
		return a, nil
	}

	return a, nil
}

func clampScroll(selected, scroll, visible int) int {
	if selected < scroll {
		return selected
	}
	if selected >= scroll+visible {
		return selected - visible + 1
	}
	return scroll
}

func (a *AppView) setStatus(text string, isErr bool) tea.Cmd {
	a.flash = text
	a.flashIsErr = isErr
	return tea.Tick(4*time.Second, func(time.Time) tea.Msg {
		return statusClearMsg{text: text}
	})
}

func flashTick() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(time.Time) tea.Msg {
		return flashTickMsg{}
	})
}

func copyToClipboard(text string) tea.Cmd {
	return func() tea.Msg {
		return clipboardCopiedMsg{Err: clipboard.WriteAll(text)}
	}
}

// conversationText formats the conversation for the clipboard.
func conversationText(messages []appmodel.Message) string {
	var b strings.Builder
	for i, msg := range messages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		name := "Вы"
		if msg.Author == appmodel.AuthorAgent {
			name = "Агент"
		}
		b.WriteString(name + ": " + appmodel.PlainText(msg.Text))
	}
	return b.String()
}
