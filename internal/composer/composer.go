// Package composer implements the message input box: a text buffer with a
// caret, @-mention autocomplete, pending attachments, and submission through
// the read-model.
package composer

import (
	"context"
	"sync"
	"unicode"

	"github.com/google/uuid"
	"github.com/lalith-99/huddle/internal/mention"
	"github.com/lalith-99/huddle/internal/models"
	"go.uber.org/zap"
)

// MaxSuggestions caps the autocomplete list.
const MaxSuggestions = 5

// Target is the part of the read-model the composer drives. *store.Store
// satisfies it.
type Target interface {
	UserID() uuid.UUID
	ActiveSpace() *models.Space
	ActiveChannel() *models.Channel
	Members() []models.Member
	ReplyingTo() *models.Message
	ClearReplyingTo()
	ChatInput() string
	SetChatInput(text string)
	SendMessage(ctx context.Context, channelID uuid.UUID, req models.CreateMessageRequest) (*models.Message, error)
}

// Key is a non-printing key the composer reacts to.
type Key int

const (
	KeyEnter Key = iota + 1
	KeyTab
	KeyEscape
	KeyUp
	KeyDown
)

// KeyEvent is one key press. Composing is set while an input method editor
// has an uncommitted composition.
type KeyEvent struct {
	Key       Key
	Shift     bool
	Composing bool
}

// Outcome tells the caller what a key press did.
type Outcome int

const (
	// Ignored means the key was not consumed.
	Ignored Outcome = iota
	// Handled means the key changed composer state.
	Handled
	// SubmitRequested means the caller should call Submit.
	SubmitRequested
)

// Options tune a Composer.
type Options struct {
	// UploadConcurrency bounds parallel uploads. Defaults to 3.
	UploadConcurrency int
	Logger            *zap.Logger
}

// Composer is safe for concurrent use. Key handling and editing are cheap;
// Submit blocks on the network.
type Composer struct {
	target   Target
	uploader Uploader
	logger   *zap.Logger
	limit    int

	mu         sync.Mutex
	buf        []rune
	cursor     int
	selected   int
	lastQuery  string
	dismissed  int // start of the @token the user escaped from, or -1
	pending    []*pendingFile
	submitting bool
}

// New creates a composer over target. The initial buffer is the target's
// draft.
func New(target Target, uploader Uploader, opts Options) *Composer {
	if opts.UploadConcurrency <= 0 {
		opts.UploadConcurrency = 3
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Composer{
		target:    target,
		uploader:  uploader,
		logger:    logger,
		limit:     opts.UploadConcurrency,
		dismissed: -1,
	}
	c.buf = []rune(target.ChatInput())
	c.cursor = len(c.buf)
	return c
}

// Reload replaces the buffer with the target's draft and moves the caret to
// the end. Call it after the draft changed outside the composer.
func (c *Composer) Reload() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buf = []rune(c.target.ChatInput())
	c.cursor = len(c.buf)
	c.resetSuggestLocked()
}

// Text returns the buffer.
func (c *Composer) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return string(c.buf)
}

// Cursor returns the caret position in runes.
func (c *Composer) Cursor() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursor
}

// Submitting reports whether a submit is in flight.
func (c *Composer) Submitting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submitting
}

// SetText replaces the buffer and puts the caret at the end.
func (c *Composer) SetText(text string) {
	c.mu.Lock()
	c.buf = []rune(text)
	c.cursor = len(c.buf)
	c.refreshSuggestLocked()
	c.mu.Unlock()
	c.target.SetChatInput(text)
}

// Insert types s at the caret.
func (c *Composer) Insert(s string) {
	c.mu.Lock()
	c.insertLocked([]rune(s))
	text := string(c.buf)
	c.mu.Unlock()
	c.target.SetChatInput(text)
}

// Backspace deletes the rune before the caret.
func (c *Composer) Backspace() {
	c.mu.Lock()
	if c.cursor == 0 {
		c.mu.Unlock()
		return
	}
	c.buf = append(c.buf[:c.cursor-1], c.buf[c.cursor:]...)
	c.cursor--
	c.refreshSuggestLocked()
	text := string(c.buf)
	c.mu.Unlock()
	c.target.SetChatInput(text)
}

// MoveCursor places the caret at pos, clamped to the buffer.
func (c *Composer) MoveCursor(pos int) {
	c.mu.Lock()
	c.cursor = clamp(pos, 0, len(c.buf))
	c.refreshSuggestLocked()
	c.mu.Unlock()
}

// Suggesting reports whether the autocomplete list is showing.
func (c *Composer) Suggesting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.suggestionsLocked()) > 0
}

// Suggestions returns the members offered for the @token at the caret.
func (c *Composer) Suggestions() []models.Member {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.suggestionsLocked()
}

// Selected returns the highlighted suggestion index.
func (c *Composer) Selected() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

// HandleKey applies a key press. The draft and reply target are updated on
// the target after the composer's lock is released, so subscribers of the
// target may call back into the composer.
func (c *Composer) HandleKey(ev KeyEvent) Outcome {
	if ev.Composing {
		return Ignored
	}

	c.mu.Lock()
	outcome, edited := c.handleKeyLocked(ev)
	text := string(c.buf)
	c.mu.Unlock()

	if edited {
		c.target.SetChatInput(text)
	}
	if outcome == Ignored && ev.Key == KeyEscape && c.target.ReplyingTo() != nil {
		c.target.ClearReplyingTo()
		return Handled
	}
	return outcome
}

func (c *Composer) handleKeyLocked(ev KeyEvent) (Outcome, bool) {
	if matches := c.suggestionsLocked(); len(matches) > 0 {
		switch {
		case ev.Key == KeyUp:
			c.selected = clamp(c.selected-1, 0, len(matches)-1)
			return Handled, false
		case ev.Key == KeyDown:
			c.selected = clamp(c.selected+1, 0, len(matches)-1)
			return Handled, false
		case ev.Key == KeyTab, ev.Key == KeyEnter && !ev.Shift:
			c.acceptLocked(matches[clamp(c.selected, 0, len(matches)-1)])
			return Handled, true
		case ev.Key == KeyEscape:
			start, _, _ := c.tokenLocked()
			c.dismissed = start
			c.selected = 0
			return Handled, false
		}
	}

	if ev.Key != KeyEnter {
		return Ignored, false
	}
	if ev.Shift {
		c.insertLocked([]rune{'\n'})
		return Handled, true
	}
	if c.submitting || !c.hasContentLocked() {
		return Ignored, false
	}
	return SubmitRequested, false
}

// tokenLocked finds the @token the caret is in: the nearest '@' before the
// caret on the same line with no whitespace in between. It returns the
// index of the '@' and the query after it.
func (c *Composer) tokenLocked() (int, string, bool) {
	for i := c.cursor - 1; i >= 0; i-- {
		r := c.buf[i]
		if r == '@' {
			return i, string(c.buf[i+1 : c.cursor]), true
		}
		if unicode.IsSpace(r) {
			break
		}
	}
	return -1, "", false
}

func (c *Composer) suggestionsLocked() []models.Member {
	start, query, ok := c.tokenLocked()
	if !ok || start == c.dismissed {
		return nil
	}
	return mention.Filter(query, c.target.Members(), MaxSuggestions)
}

// acceptLocked replaces "@partial" with "@handle ".
func (c *Composer) acceptLocked(m models.Member) {
	start, _, ok := c.tokenLocked()
	if !ok {
		return
	}
	insert := []rune("@" + mention.Handle(m) + " ")
	rest := append([]rune(nil), c.buf[c.cursor:]...)
	c.buf = append(append(c.buf[:start], insert...), rest...)
	c.cursor = start + len(insert)
	c.refreshSuggestLocked()
}

func (c *Composer) insertLocked(rs []rune) {
	rest := append([]rune(nil), c.buf[c.cursor:]...)
	c.buf = append(append(c.buf[:c.cursor], rs...), rest...)
	c.cursor += len(rs)
	c.refreshSuggestLocked()
}

// refreshSuggestLocked resets the selection when the query changes and
// forgets a dismissal once the caret left that token.
func (c *Composer) refreshSuggestLocked() {
	start, query, ok := c.tokenLocked()
	if !ok || start != c.dismissed {
		c.dismissed = -1
	}
	if query != c.lastQuery || !ok {
		c.selected = 0
	}
	c.lastQuery = query
}

func (c *Composer) resetSuggestLocked() {
	c.selected = 0
	c.lastQuery = ""
	c.dismissed = -1
}

func (c *Composer) hasContentLocked() bool {
	for _, r := range c.buf {
		if !unicode.IsSpace(r) {
			return true
		}
	}
	return len(c.pending) > 0
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
