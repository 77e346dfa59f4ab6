package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"helpdesk/agent"
	"helpdesk/config"
	"helpdesk/model"
	"helpdesk/storage"
)

const sentinel = "<END_OF_REPLY>"

// isolate points HOME and the data directory at a temporary directory and
// restores the environment variables that flags write to.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	t.Setenv(config.EnvDataDir, "")
	t.Setenv(config.EnvAgentURL, "")
	t.Setenv(config.EnvDebug, "")
	return filepath.Join(home, "data")
}

func newAgentServer(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/question/stream", func(w http.ResponseWriter, r *http.Request) {
		var turns []agent.Turn
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&turns)) {
			http.Error(w, "bad body", http.StatusBadRequest)
			return
		}
		flusher := w.(http.Flusher)
		for _, chunk := range []string{reply[:len(reply)/2], reply[len(reply)/2:], sentinel} {
			io.WriteString(w, chunk)
			flusher.Flush()
		}
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(agent.ServerInfo{Message: "Tech support agent", Version: "1.2.0"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand("test")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestAskPrintsReplyWithoutMarker(t *testing.T) {
	dataDir := isolate(t)
	srv := newAgentServer(t, "Нужно обратиться к админу")

	out, err := run(t, "ask", "--agent-url", srv.URL, "--data-dir", dataDir, "Не", "работает", "VPN")
	require.NoError(t, err)
	assert.Equal(t, "Нужно обратиться к админу\n", out)
}

func TestAskServerErrorPrintsFallback(t *testing.T) {
	dataDir := isolate(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	out, err := run(t, "ask", "--agent-url", srv.URL, "--data-dir", dataDir, "Привет")
	require.Error(t, err)
	assert.Contains(t, out, model.FallbackReply)
	assert.NotContains(t, out, "boom")
}

func TestAskRequiresQuestion(t *testing.T) {
	isolate(t)
	_, err := run(t, "ask")
	assert.Error(t, err)
}

func TestStatusReportsServerInfo(t *testing.T) {
	dataDir := isolate(t)
	srv := newAgentServer(t, "unused")

	out, err := run(t, "status", "--agent-url", srv.URL, "--data-dir", dataDir)
	require.NoError(t, err)
	assert.Contains(t, out, "Status:  online")
	assert.Contains(t, out, "Tech support agent")
	assert.Contains(t, out, "1.2.0")
	assert.Contains(t, out, srv.URL+"/question/stream")
}

func TestStatusUnreachable(t *testing.T) {
	dataDir := isolate(t)
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	out, err := run(t, "status", "--agent-url", url, "--data-dir", dataDir)
	require.Error(t, err)
	assert.Contains(t, out, "unreachable")
}

func TestHistoryListsAndSearchesSavedQuestions(t *testing.T) {
	dataDir := isolate(t)
	srv := newAgentServer(t, "Нужно обратиться к админу")

	_, err := run(t, "ask", "--save", "--agent-url", srv.URL, "--data-dir", dataDir, "Принтер не печатает")
	require.NoError(t, err)

	out, err := run(t, "history", "--data-dir", dataDir)
	require.NoError(t, err)
	assert.Contains(t, out, "Обращение")
	assert.Contains(t, out, "4", "greeting pair plus one question and reply")

	out, err = run(t, "history", "--data-dir", dataDir, "админ")
	require.NoError(t, err)
	assert.Contains(t, out, "Нужно обратиться к админу")
	assert.NotContains(t, out, "Что ты умеешь", "greeting is not searched")

	out, err = run(t, "history", "--data-dir", dataDir, "zzzzqqq")
	require.NoError(t, err)
	assert.Contains(t, out, "No messages match")
}

func TestHistoryDelete(t *testing.T) {
	dataDir := isolate(t)
	srv := newAgentServer(t, "Готово")

	_, err := run(t, "ask", "--save", "--agent-url", srv.URL, "--data-dir", dataDir, "Сбросить пароль")
	require.NoError(t, err)

	transcripts, err := storage.NewTranscriptStore(dataDir)
	require.NoError(t, err)
	list, err := transcripts.List()
	require.NoError(t, err)
	require.NoError(t, transcripts.Close())
	require.Len(t, list, 1)

	_, err = run(t, "history", "delete", "--data-dir", dataDir, "no-such-id")
	assert.ErrorIs(t, err, storage.ErrTranscriptNotFound)

	out, err := run(t, "history", "delete", "--data-dir", dataDir, list[0].ID[:8])
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted")

	out, err = run(t, "history", "--data-dir", dataDir)
	require.NoError(t, err)
	assert.Contains(t, out, "No conversations yet.")
}

// holdLock makes the data directory look owned by a running helpdesk window.
func holdLock(t *testing.T, dataDir string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dataDir, 0700))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "helpdesk.lock"), []byte(strconv.Itoa(os.Getppid())), 0600))
}

func TestAskSaveRefusedWhileAnotherWindowIsOpen(t *testing.T) {
	dataDir := isolate(t)
	srv := newAgentServer(t, "Готово")

	_, err := run(t, "ask", "--save", "--agent-url", srv.URL, "--data-dir", dataDir, "Первый вопрос")
	require.NoError(t, err)

	holdLock(t, dataDir)
	_, err = run(t, "ask", "--save", "--agent-url", srv.URL, "--data-dir", dataDir, "Второй вопрос")
	assert.ErrorIs(t, err, storage.ErrInstanceLocked)

	// Unsaved questions do not touch the history
	out, err := run(t, "ask", "--agent-url", srv.URL, "--data-dir", dataDir, "Третий вопрос")
	require.NoError(t, err)
	assert.Equal(t, "Готово\n", out)

	transcripts, err := storage.NewTranscriptStore(dataDir)
	require.NoError(t, err)
	defer transcripts.Close()
	list, err := transcripts.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, model.SeedTurns+2, list[0].MessageCount)
}

func TestHistoryDeleteRefusedWhileAnotherWindowIsOpen(t *testing.T) {
	dataDir := isolate(t)
	srv := newAgentServer(t, "Готово")

	_, err := run(t, "ask", "--save", "--agent-url", srv.URL, "--data-dir", dataDir, "Сбросить пароль")
	require.NoError(t, err)

	transcripts, err := storage.NewTranscriptStore(dataDir)
	require.NoError(t, err)
	list, err := transcripts.List()
	require.NoError(t, err)
	require.NoError(t, transcripts.Close())
	require.Len(t, list, 1)

	holdLock(t, dataDir)
	_, err = run(t, "history", "delete", "--data-dir", dataDir, list[0].ID)
	assert.ErrorIs(t, err, storage.ErrInstanceLocked)

	// Listing only reads and stays available
	out, err := run(t, "history", "--data-dir", dataDir)
	require.NoError(t, err)
	assert.Contains(t, out, shortID(list[0].ID))
}

func TestHistoryEmpty(t *testing.T) {
	dataDir := isolate(t)

	out, err := run(t, "history", "--data-dir", dataDir)
	require.NoError(t, err)
	assert.Contains(t, out, "No conversations yet.")
}

func TestStreamPrinterHoldsBackMarker(t *testing.T) {
	var out strings.Builder
	p := newStreamPrinter(&out, len(sentinel))

	for _, buf := range []string{"", "Hel", "Hello", "Hello" + sentinel} {
		p.observe(model.Snapshot{Status: model.StatusStreaming, Buffer: buf})
		assert.NotContains(t, out.String(), "<", "marker must never be printed")
	}
	assert.Equal(t, "Hello", out.String())

	p.finish("Hello")
	assert.Equal(t, "Hello\n", out.String())
}

func TestStreamPrinterFallbackStartsNewLine(t *testing.T) {
	var out strings.Builder
	p := newStreamPrinter(&out, 2)

	p.observe(model.Snapshot{Status: model.StatusStreaming, Buffer: "Частичный ответ"})
	p.finish(model.FallbackReply)

	assert.Equal(t, "Частичный отв\n"+model.FallbackReply+"\n", out.String())
}

func TestStreamPrinterIgnoresIdleSnapshots(t *testing.T) {
	var out strings.Builder
	p := newStreamPrinter(&out, 0)

	p.observe(model.Snapshot{Status: model.StatusIdle, Buffer: "stale"})
	assert.Empty(t, out.String())
}
