package refine

import (
	"strings"
	"unicode"
)

// Drift measures how far a refined fragment strayed from the raw transcript,
// as word-level edit operations. Case, punctuation and markdown markers are
// ignored, so fixing punctuation costs nothing while added headings,
// dropped sentences and reworded phrases do.
type Drift struct {
	Substitutions int
	Insertions    int // words only in the refined text, e.g. headings
	Deletions     int // raw words the refined text dropped
	RawWords      int
}

// Rate is the edit count relative to the raw word count.
func (d Drift) Rate() float64 {
	if d.RawWords == 0 {
		return 0
	}
	return float64(d.edits()) / float64(d.RawWords)
}

// MeasureDrift aligns the words of raw and refined with a minimum edit
// distance and counts each kind of edit. Only two rows of the distance
// table are kept, so memory grows with the refined word count alone.
func MeasureDrift(raw, refined string) Drift {
	a := words(raw)
	b := words(refined)
	if len(a) == 0 {
		return Drift{Insertions: len(b)}
	}

	// prev[j] and cur[j] hold the cheapest edits turning a[:i] into b[:j].
	prev := make([]Drift, len(b)+1)
	cur := make([]Drift, len(b)+1)
	for j := range prev {
		prev[j] = Drift{Insertions: j}
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = Drift{Deletions: i}
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1]
				continue
			}
			sub, del, ins := prev[j-1], prev[j], cur[j-1]
			sub.Substitutions++
			del.Deletions++
			ins.Insertions++
			best := sub
			if del.edits() < best.edits() {
				best = del
			}
			if ins.edits() < best.edits() {
				best = ins
			}
			cur[j] = best
		}
		prev, cur = cur, prev
	}

	d := prev[len(b)]
	d.RawWords = len(a)
	return d
}

func (d Drift) edits() int {
	return d.Substitutions + d.Insertions + d.Deletions
}

// words lowercases s and splits it on anything that is not a letter or digit.
func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
