package shortener

import (
	"context"
	"crypto/sha256"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/jaevor/go-nanoid"
	"github.com/jxskiss/base62"
)

// Alphabet is the base62 alphabet every generator draws codes from.
const Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// encoding puts '0' at digit zero so that left padding with Alphabet[0] does
// not change the encoded value.
var encoding = base62.NewEncoding(Alphabet)

const (
	DefaultCodeLength = 8
	MinCodeLength     = 4
	MaxCodeLength     = 22
)

// Strategy names a code generation strategy.
type Strategy string

const (
	StrategyCounter Strategy = "counter"
	StrategyHash    Strategy = "hash"
	StrategyRandom  Strategy = "random"
)

// Seed is the input of a single generation attempt.
type Seed struct {
	URL     string // normalized long URL
	Hash    URLHash
	Attempt int
}

// Generator produces candidate codes. Collisions are detected by the registry.
type Generator interface {
	Generate(ctx context.Context, seed Seed) (Code, error)
}

// CodeGenerator generates unique short codes.
type CodeGenerator func() string

// CounterGenerator encodes the next value of a sequence in base62, left padded
// to a fixed length. Distinct IDs give distinct codes.
type CounterGenerator struct {
	seq      Sequence
	length   int
	capacity uint64 // 0 means the whole uint64 range fits
}

// NewCounterGenerator creates a counter-based generator.
func NewCounterGenerator(seq Sequence, length int) *CounterGenerator {
	return &CounterGenerator{
		seq:      seq,
		length:   length,
		capacity: codeSpace(length),
	}
}

func (g *CounterGenerator) Generate(ctx context.Context, _ Seed) (Code, error) {
	id, err := g.seq.NextID(ctx)
	if err != nil {
		return "", fmt.Errorf("next id: %w", err)
	}

	if g.capacity != 0 && id >= g.capacity {
		return "", &GenerationExhaustedError{
			Attempts: 1,
			Err:      fmt.Errorf("id %d exceeds the %d-character code space", id, g.length),
		}
	}

	return Code(EncodeID(id, g.length)), nil
}

// DecodeID recovers the sequence value from a code this generator produced.
func (g *CounterGenerator) DecodeID(code Code) (uint64, error) {
	return DecodeID(code)
}

// EncodeID renders id in base62, left padded with zeros to length.
func EncodeID(id uint64, length int) string {
	digits := string(encoding.FormatUint(id))
	if len(digits) >= length {
		return digits
	}

	return strings.Repeat(string(Alphabet[0]), length-len(digits)) + digits
}

// DecodeID is the inverse of EncodeID.
func DecodeID(code Code) (uint64, error) {
	trimmed := strings.TrimLeft(string(code), string(Alphabet[0]))
	if trimmed == "" {
		return 0, nil
	}

	return encoding.ParseUint([]byte(trimmed))
}

// codeSpace returns 62^length, or 0 when it does not fit in a uint64.
func codeSpace(length int) uint64 {
	space := uint64(1)

	for range length {
		if space > math.MaxUint64/uint64(len(Alphabet)) {
			return 0
		}

		space *= uint64(len(Alphabet))
	}

	return space
}

// HashGenerator derives the code from the URL itself. The attempt number salts
// the digest so a truncation collision yields a different candidate.
type HashGenerator struct {
	length int
}

// NewHashGenerator creates a hash-based generator.
func NewHashGenerator(length int) *HashGenerator {
	return &HashGenerator{length: length}
}

func (g *HashGenerator) Generate(_ context.Context, seed Seed) (Code, error) {
	input := seed.URL
	if seed.Attempt > 0 {
		input += "#" + strconv.Itoa(seed.Attempt)
	}

	sum := sha256.Sum256([]byte(input))
	encoded := encoding.EncodeToString(sum[:])

	return Code(encoded[:g.length]), nil
}

// RandomGenerator wraps a nanoid generator restricted to the base62 alphabet.
type RandomGenerator struct {
	generateCode CodeGenerator
}

// NewRandomGenerator creates a random generator producing codes of the given length.
func NewRandomGenerator(length int) (*RandomGenerator, error) {
	gen, err := nanoid.CustomASCII(Alphabet, length)
	if err != nil {
		return nil, fmt.Errorf("nanoid: %w", err)
	}

	return &RandomGenerator{generateCode: gen}, nil
}

func (g *RandomGenerator) Generate(_ context.Context, _ Seed) (Code, error) {
	return Code(g.generateCode()), nil
}

// NewGenerator builds the generator for a strategy. seq is only used by the
// counter strategy.
func NewGenerator(strategy Strategy, length int, seq Sequence) (Generator, error) {
	if length < MinCodeLength || length > MaxCodeLength {
		return nil, fmt.Errorf("code length must be between %d and %d, got %d", MinCodeLength, MaxCodeLength, length)
	}

	switch strategy {
	case StrategyCounter:
		if seq == nil {
			return nil, fmt.Errorf("counter strategy requires a sequence")
		}

		return NewCounterGenerator(seq, length), nil
	case StrategyHash:
		return NewHashGenerator(length), nil
	case StrategyRandom:
		return NewRandomGenerator(length)
	default:
		return nil, fmt.Errorf("unknown strategy %q: must be 'counter', 'hash' or 'random'", strategy)
	}
}
