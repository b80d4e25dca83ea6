package llm

import (
	"context"

	loremgen "github.com/bozaro/golorem"
)

// LoremCompleter generates lorem ipsum text. Used for development and
// testing without requiring real API keys.
type LoremCompleter struct {
	generator *loremgen.Lorem
}

// NewLoremCompleter creates a new lorem ipsum completer.
func NewLoremCompleter() *LoremCompleter {
	return &LoremCompleter{generator: loremgen.New()}
}

// Complete returns a short lorem ipsum paragraph regardless of the prompt.
func (c *LoremCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return c.generator.Paragraph(1, 2), nil
}
