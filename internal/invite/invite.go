// Package invite generates the short codes rooms are addressed by.
package invite

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
)

const (
	alphabet   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	CodeLength = 12
	// MaxRetries bounds redraws after a collision. With a 36^12 code space
	// collisions are effectively impossible, so this is a safety net, not a
	// throughput path.
	MaxRetries = 5
)

// ErrCodeSpaceExhausted is returned when every drawn code collided with an
// existing room within the retry budget.
var ErrCodeSpaceExhausted = errors.New("invite: code generation retries exhausted")

// ExistsFunc reports whether a code is already taken.
type ExistsFunc func(ctx context.Context, code string) (bool, error)

// Generator draws random invite codes and checks them for uniqueness.
type Generator struct {
	exists ExistsFunc
}

func NewGenerator(exists ExistsFunc) *Generator {
	return &Generator{exists: exists}
}

// Generate returns a code not currently in use. It redraws on collision up
// to MaxRetries times before giving up with ErrCodeSpaceExhausted.
func (g *Generator) Generate(ctx context.Context) (string, error) {
	code, err := draw()
	if err != nil {
		return "", err
	}

	for retry := 0; ; retry++ {
		taken, err := g.exists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("invite: checking code: %w", err)
		}
		if !taken {
			return code, nil
		}
		if retry >= MaxRetries {
			return "", ErrCodeSpaceExhausted
		}
		if code, err = draw(); err != nil {
			return "", err
		}
	}
}

func draw() (string, error) {
	// Rejection sampling: 256 is not a multiple of the alphabet size, so a
	// plain modulo would over-represent the first few characters.
	const limit = 256 - 256%len(alphabet)

	code := make([]byte, 0, CodeLength)
	buf := make([]byte, CodeLength)
	for len(code) < CodeLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("invite: reading random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			code = append(code, alphabet[int(b)%len(alphabet)])
			if len(code) == CodeLength {
				break
			}
		}
	}
	return string(code), nil
}
