package engine

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"math"
)

// Seeds identifies a reproducible random stream.
type Seeds struct {
	Server string `json:"server"`
	Client string `json:"client"`
	Nonce  uint64 `json:"nonce"`
}

// ByteGenerator produces bytes from successive HMAC-SHA256 rounds keyed by the
// server seed over "client:nonce:round".
type ByteGenerator struct {
	seeds        Seeds
	currentRound uint64
	currentPos   int
	buffer       [32]byte
}

// NewByteGenerator creates a generator positioned at the given byte cursor.
func NewByteGenerator(seeds Seeds, cursor uint64) *ByteGenerator {
	bg := &ByteGenerator{
		seeds:        seeds,
		currentRound: cursor / 32,
		currentPos:   int(cursor % 32),
	}
	bg.generateRound()
	return bg
}

// Next returns the next byte from the generator
func (bg *ByteGenerator) Next() byte {
	if bg.currentPos >= 32 {
		bg.currentRound++
		bg.currentPos = 0
		bg.generateRound()
	}

	b := bg.buffer[bg.currentPos]
	bg.currentPos++
	return b
}

// NextFloat consumes 4 bytes and returns a float in [0, 1).
func (bg *ByteGenerator) NextFloat() float64 {
	return bytesToFloat([4]byte{bg.Next(), bg.Next(), bg.Next(), bg.Next()})
}

func (bg *ByteGenerator) generateRound() {
	h := hmac.New(sha256.New, []byte(bg.seeds.Server))
	fmt.Fprintf(h, "%s:%d:%d", bg.seeds.Client, bg.seeds.Nonce, bg.currentRound)
	copy(bg.buffer[:], h.Sum(nil))
}

func bytesToFloat(bytes [4]byte) float64 {
	result := 0.0
	for i, b := range bytes {
		result += float64(b) / math.Pow(256, float64(i+1))
	}
	return result
}

// Stream is an unbounded float source over a ByteGenerator. It satisfies the
// Float64 source interface used by the simulators.
type Stream struct {
	bg *ByteGenerator
}

// NewStream starts a stream at cursor 0.
func NewStream(seeds Seeds) *Stream {
	return &Stream{bg: NewByteGenerator(seeds, 0)}
}

// Float64 returns the next uniform draw in [0, 1).
func (s *Stream) Float64() float64 {
	return s.bg.NextFloat()
}
