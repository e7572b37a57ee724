package access

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
)

// DefaultAlphabet is uppercase letters and digits with the visually
// ambiguous characters (0/O, 1/I/L) removed.
const DefaultAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// DefaultCodeLength gives ~5e11 combinations over DefaultAlphabet, which
// makes collisions negligible at the expected scale of low thousands.
const DefaultCodeLength = 8

const maxGenerateAttempts = 10

// Generator produces unique, unguessable code strings drawn from a
// restricted alphabet. Uniqueness is checked against the CodeStore; on
// collision the code is re-drawn, with a bounded number of attempts.
type Generator struct {
	Alphabet string
	Length   int
}

// NewGenerator returns a generator with defaults filled in.
func NewGenerator(alphabet string, length int) *Generator {
	if alphabet == "" {
		alphabet = DefaultAlphabet
	}
	if length <= 0 {
		length = DefaultCodeLength
	}
	return &Generator{Alphabet: alphabet, Length: length}
}

// draw produces one candidate code using crypto/rand.
func (g *Generator) draw() (string, error) {
	buf := make([]byte, g.Length)
	max := big.NewInt(int64(len(g.Alphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to draw random code: %w", err)
		}
		buf[i] = g.Alphabet[n.Int64()]
	}
	return string(buf), nil
}

// Generate returns a code not present in store, re-drawing on collision.
// Fails with ErrGenerationExhausted after a small cap of attempts, which
// signals the alphabet or length is too small for the population.
func (g *Generator) Generate(ctx context.Context, store CodeStore) (string, error) {
	for attempt := 0; attempt < maxGenerateAttempts; attempt++ {
		code, err := g.draw()
		if err != nil {
			return "", err
		}
		_, err = store.Get(ctx, code)
		if IsNotFound(err) {
			return code, nil
		}
		if err != nil {
			return "", err
		}
		// Collision: re-draw.
	}
	return "", ErrGenerationExhausted
}
