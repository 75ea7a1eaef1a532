// Package notice keeps the most recent user-visible failure messages.
package notice

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"visuallab/internal/infra"
)

// Level grades a notice.
type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Notice is one message shown to the user.
type Notice struct {
	ID        string    `json:"id"`
	Level     Level     `json:"level"`
	Source    string    `json:"source"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Reporter posts failures somewhere a user will see them.
type Reporter interface {
	Report(source string, err error)
}

// userMessager is implemented by errors carrying a message meant for users.
type userMessager interface {
	UserMessage() string
}

// Board is a bounded ring of notices. The zero value is not usable; call
// NewBoard.
type Board struct {
	mu       sync.Mutex
	capacity int
	items    []Notice
	logger   *infra.Logger
	now      func() time.Time
}

// NewBoard keeps at most capacity notices, 50 when capacity is not positive.
func NewBoard(capacity int, logger *infra.Logger) *Board {
	if capacity <= 0 {
		capacity = 50
	}
	if logger == nil {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Board{capacity: capacity, logger: logger, now: time.Now}
}

// Report records err as an error notice. Nil errors are ignored.
func (b *Board) Report(source string, err error) {
	if err == nil {
		return
	}
	message := err.Error()
	var um userMessager
	if errors.As(err, &um) && um.UserMessage() != "" {
		message = um.UserMessage()
	}
	b.logger.Warn().Err(err).Str("source", source).Msg("notice: reported failure")
	b.Post(LevelError, source, message)
}

// Post records a notice.
func (b *Board) Post(level Level, source, message string) Notice {
	n := Notice{
		ID:        uuid.NewString(),
		Level:     level,
		Source:    source,
		Message:   message,
		CreatedAt: b.now().UTC(),
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append(b.items, n)
	if over := len(b.items) - b.capacity; over > 0 {
		b.items = append([]Notice(nil), b.items[over:]...)
	}
	return n
}

// Recent returns up to limit notices, newest first. A non-positive limit
// returns everything kept.
func (b *Board) Recent(limit int) []Notice {
	b.mu.Lock()
	defer b.mu.Unlock()
	if limit <= 0 || limit > len(b.items) {
		limit = len(b.items)
	}
	out := make([]Notice, 0, limit)
	for i := len(b.items) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, b.items[i])
	}
	return out
}

// Discard is a Reporter that drops everything.
type Discard struct{}

func (Discard) Report(string, error) {}
