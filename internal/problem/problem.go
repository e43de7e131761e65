// Package problem generates the arithmetic problems answered in the game
// loop.
package problem

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/mathrealm/backend/internal/progression"
)

const (
	Addition       = "addition"
	Subtraction    = "subtraction"
	Multiplication = "multiplication"
	Division       = "division"
)

const (
	MinDifficulty = progression.MinDifficulty
	MaxDifficulty = progression.MaxDifficulty
)

// Concepts lists every concept the generator can produce.
var Concepts = []string{Addition, Subtraction, Multiplication, Division}

// ErrUnknownConcept is returned for concepts the generator has no rules for.
var ErrUnknownConcept = errors.New("no problems for concept")

// Problem is one question. Answer is always an integer.
type Problem struct {
	ConceptID  string `json:"conceptId"`
	Difficulty int    `json:"difficulty"`
	A          int    `json:"a"`
	B          int    `json:"b"`
	Op         string `json:"op"`
	Answer     int    `json:"answer"`
}

// Prompt renders the question, e.g. "12 + 7".
func (p Problem) Prompt() string {
	return fmt.Sprintf("%d %s %d", p.A, p.Op, p.B)
}

// Check parses input as an integer and compares it with the answer.
func (p Problem) Check(input string) (bool, error) {
	n, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil {
		return false, fmt.Errorf("not a whole number: %q", input)
	}
	return n == p.Answer, nil
}

// span is an inclusive operand range.
type span struct{ lo, hi int }

// Operand ranges per difficulty, index 0 is difficulty 1.
var (
	sumRanges = [MaxDifficulty]span{{1, 9}, {5, 30}, {10, 99}, {50, 499}, {100, 999}}
	// factorRanges bound both factors, and the divisor and quotient.
	factorRanges = [MaxDifficulty][2]span{
		{{1, 5}, {1, 5}},
		{{2, 9}, {2, 9}},
		{{2, 12}, {3, 15}},
		{{3, 15}, {11, 30}},
		{{6, 25}, {12, 60}},
	}
)

// Generator produces problems from an RNG.
type Generator struct {
	rng      progression.RNG
	concepts []string
}

type globalRNG struct{}

func (globalRNG) Float64() float64 { return rand.Float64() }
func (globalRNG) IntN(n int) int   { return rand.IntN(n) }

// NewGenerator creates a generator drawing from concepts, or from all of
// Concepts when none are given. A nil rng uses math/rand/v2.
func NewGenerator(rng progression.RNG, concepts ...string) (*Generator, error) {
	if rng == nil {
		rng = globalRNG{}
	}
	if len(concepts) == 0 {
		concepts = Concepts
	}
	for _, c := range concepts {
		if !supported(c) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownConcept, c)
		}
	}
	return &Generator{rng: rng, concepts: append([]string(nil), concepts...)}, nil
}

func supported(concept string) bool {
	for _, c := range Concepts {
		if c == concept {
			return true
		}
	}
	return false
}

// Next returns a problem for a randomly chosen concept.
func (g *Generator) Next(difficulty int) Problem {
	c := g.concepts[g.rng.IntN(len(g.concepts))]
	p, _ := g.For(c, difficulty)
	return p
}

// For returns a problem for concept. Difficulty is clamped to 1..5.
func (g *Generator) For(concept string, difficulty int) (Problem, error) {
	d := ClampDifficulty(difficulty)
	p := Problem{ConceptID: concept, Difficulty: d}
	switch concept {
	case Addition:
		r := sumRanges[d-1]
		p.A, p.B = g.between(r), g.between(r)
		p.Op, p.Answer = "+", p.A+p.B
	case Subtraction:
		r := sumRanges[d-1]
		a, b := g.between(r), g.between(r)
		p.A, p.B = max(a, b), min(a, b)
		p.Op, p.Answer = "-", p.A-p.B
	case Multiplication:
		r := factorRanges[d-1]
		p.A, p.B = g.between(r[0]), g.between(r[1])
		if g.rng.IntN(2) == 1 {
			p.A, p.B = p.B, p.A
		}
		p.Op, p.Answer = "×", p.A*p.B
	case Division:
		r := factorRanges[d-1]
		divisor, quotient := g.between(r[0]), g.between(r[1])
		p.A, p.B = divisor*quotient, divisor
		p.Op, p.Answer = "÷", quotient
	default:
		return Problem{}, fmt.Errorf("%w: %s", ErrUnknownConcept, concept)
	}
	return p, nil
}

func (g *Generator) between(r span) int {
	return r.lo + g.rng.IntN(r.hi-r.lo+1)
}

// ClampDifficulty limits d to 1..5.
func ClampDifficulty(d int) int {
	return progression.ClampDifficulty(d)
}

// DifficultyForRealm suggests a difficulty: one step per two realms.
func DifficultyForRealm(r progression.Realm) int {
	return ClampDifficulty(1 + r.Rank()/2)
}
