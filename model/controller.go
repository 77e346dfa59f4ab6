package model

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"helpdesk/agent"
	"helpdesk/config"
)

var (
	// ErrBusy is returned when a question is submitted while another cycle runs.
	ErrBusy = errors.New("a question is already in progress")
	// ErrEmptyQuestion is returned for blank questions; nothing is sent.
	ErrEmptyQuestion = errors.New("question is empty")
	// ErrCancelled is the cause recorded when Cancel aborts a cycle.
	ErrCancelled = errors.New("question cancelled")
	// ErrRequestTimeout is the cause recorded when a cycle exceeds its timeout.
	ErrRequestTimeout = errors.New("question timed out")
)

// StreamOpener posts the conversation and returns the streamed reply body.
// *agent.Client implements it.
type StreamOpener interface {
	OpenStream(ctx context.Context, turns []agent.Turn) (io.ReadCloser, error)
}

// Outcome is how a cycle ended.
type Outcome int

const (
	OutcomeAnswered Outcome = iota
	OutcomeFailed
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFailed:
		return "failed"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "answered"
	}
}

// Result describes a finished cycle.
type Result struct {
	Outcome Outcome
	// Reply is the committed agent text (the fallback text on failure).
	Reply string
	// Index is the committed agent message, or -1 when nothing was committed.
	Index int
	// Cause is the underlying error for failed and cancelled cycles. It is for
	// logs only and is never shown in the conversation.
	Cause error
}

const defaultReadSize = 4096

// Controller runs one question/answer cycle at a time against a Store.
type Controller struct {
	store      *Store
	client     StreamOpener
	terminator agent.Terminator
	timeout    time.Duration
	readSize   int

	mu     sync.Mutex
	busy   bool
	cancel context.CancelCauseFunc
}

func NewController(store *Store, client StreamOpener, terminator agent.Terminator) *Controller {
	if terminator == nil {
		terminator = agent.FixedLength{N: config.DefaultSentinelLength}
	}
	return &Controller{
		store:      store,
		client:     client,
		terminator: terminator,
		readSize:   defaultReadSize,
	}
}

// SetRequestTimeout bounds a whole cycle. Zero means no limit.
func (c *Controller) SetRequestTimeout(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeout = d
}

func (c *Controller) Store() *Store {
	return c.store
}

// Busy reports whether a cycle is running.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// WhileIdle runs fn with new cycles held off. It fails with ErrBusy, without
// calling fn, when a cycle is running or the store is not idle.
func (c *Controller) WhileIdle(fn func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy || c.store.Status() != StatusIdle {
		return ErrBusy
	}
	return fn()
}

// Cancel aborts the running cycle. It reports whether there was one.
func (c *Controller) Cancel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel == nil {
		return false
	}
	c.cancel(ErrCancelled)
	return true
}

// BuildPayload converts the conversation to request turns, leaving out the
// seeded greeting.
func BuildPayload(messages []Message) []agent.Turn {
	if len(messages) <= SeedTurns {
		return []agent.Turn{}
	}
	turns := make([]agent.Turn, 0, len(messages)-SeedTurns)
	for _, msg := range messages[SeedTurns:] {
		by := agent.ByUser
		if msg.Author == AuthorAgent {
			by = agent.ByAgent
		}
		turns = append(turns, agent.Turn{By: by, Message: msg.Text})
	}
	return turns
}

// SubmitQuestion runs a full cycle for question and blocks until it is
// committed. The returned error is only ErrBusy or ErrEmptyQuestion, in which
// case the store is untouched; server and network failures are folded into
// the conversation and reported through Result.
func (c *Controller) SubmitQuestion(ctx context.Context, question string) (Result, error) {
	if strings.TrimSpace(question) == "" {
		return Result{Index: -1}, ErrEmptyQuestion
	}

	c.mu.Lock()
	if c.busy || c.store.Status() != StatusIdle {
		c.mu.Unlock()
		return Result{Index: -1}, ErrBusy
	}
	c.busy = true
	cycleCtx, cancel := context.WithCancelCause(ctx)
	c.cancel = cancel
	timeout := c.timeout
	c.mu.Unlock()

	defer func() {
		cancel(nil)
		c.mu.Lock()
		c.busy = false
		c.cancel = nil
		c.mu.Unlock()
	}()

	if timeout > 0 {
		var stop context.CancelFunc
		cycleCtx, stop = context.WithTimeoutCause(cycleCtx, timeout, ErrRequestTimeout)
		defer stop()
	}

	c.store.AppendUserMessage(question)
	if err := c.store.BeginAgentReply(); err != nil {
		// Only reachable if someone else drove the store out of idle
		return c.fail(question, fmt.Errorf("failed to begin reply: %w", err)), nil
	}

	turns := BuildPayload(c.store.Snapshot().Messages)
	if config.DebugLog != nil {
		config.DebugLog.Debug().Int("turns", len(turns)).Msg("submitting question")
	}

	started := time.Now()
	body, err := c.client.OpenStream(cycleCtx, turns)
	if err != nil {
		if cancelled(cycleCtx) {
			return c.abandon(context.Cause(cycleCtx)), nil
		}
		return c.fail(question, err), nil
	}
	defer body.Close()

	if err := c.store.StartStreaming(); err != nil {
		return c.fail(question, fmt.Errorf("failed to start streaming: %w", err)), nil
	}

	reply, err := c.readReply(body)
	if err != nil {
		if cancelled(cycleCtx) {
			return c.keepPartial(reply, context.Cause(cycleCtx)), nil
		}
		if cause := context.Cause(cycleCtx); cause != nil {
			err = cause
		}
		return c.fail(question, fmt.Errorf("failed to read reply: %w", err)), nil
	}

	final, found := c.terminator.Strip(reply)
	if !found && config.DebugLog != nil {
		config.DebugLog.Warn().Int("length", len(reply)).Msg("reply has no end-of-reply marker, committing it unchanged")
	}

	idx := c.store.CommitAgentMessage(final)
	if config.DebugLog != nil {
		config.DebugLog.Debug().Dur("elapsed", time.Since(started)).Int("chars", len(final)).Msg("reply committed")
	}
	return Result{Outcome: OutcomeAnswered, Reply: final, Index: idx}, nil
}

// readReply streams body into the store buffer and returns the decoded text.
// On error the text received so far is returned with it.
func (c *Controller) readReply(body io.Reader) (string, error) {
	dec := agent.NewDecoder()
	buf := make([]byte, c.readSize)
	var reply strings.Builder

	push := func(s string) error {
		if s == "" {
			return nil
		}
		reply.WriteString(s)
		return c.store.AppendToBuffer(s)
	}

	for {
		n, err := body.Read(buf)
		if n > 0 {
			if perr := push(dec.Decode(buf[:n])); perr != nil {
				return reply.String(), perr
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return reply.String(), err
		}
	}

	if err := push(dec.Flush()); err != nil {
		return reply.String(), err
	}
	return reply.String(), nil
}

// cancelled reports whether ctx was stopped by the caller rather than by the
// request timeout.
func cancelled(ctx context.Context) bool {
	if ctx.Err() == nil {
		return false
	}
	return !errors.Is(context.Cause(ctx), ErrRequestTimeout)
}

func (c *Controller) fail(question string, cause error) Result {
	if config.DebugLog != nil {
		config.DebugLog.Error().Err(cause).Msg("question failed, committing fallback reply")
	}
	c.store.CommitErrorMessage(question, FallbackReply)
	return Result{
		Outcome: OutcomeFailed,
		Reply:   FallbackReply,
		Index:   c.store.Len() - 1,
		Cause:   cause,
	}
}

func (c *Controller) abandon(cause error) Result {
	if config.DebugLog != nil {
		config.DebugLog.Info().Err(cause).Msg("question cancelled before the reply started")
	}
	c.store.Abandon()
	return Result{Outcome: OutcomeCancelled, Index: -1, Cause: cause}
}

// keepPartial commits whatever text arrived before cancellation, minus any
// recognizable piece of the end-of-reply marker.
func (c *Controller) keepPartial(partial string, cause error) Result {
	partial = c.terminator.TrimPartial(partial)
	if partial == "" {
		return c.abandon(cause)
	}
	if config.DebugLog != nil {
		config.DebugLog.Info().Err(cause).Int("chars", len(partial)).Msg("question cancelled, keeping partial reply")
	}
	idx := c.store.CommitAgentMessage(partial)
	return Result{Outcome: OutcomeCancelled, Reply: partial, Index: idx, Cause: cause}
}
