package models

import (
	"fmt"
	"strconv"
	"strings"
)

type ScoreKind string

const (
	ScoreBestOfN ScoreKind = "best_of_n"
	ScoreTimes   ScoreKind = "times"
)

// Score is the tagged union of the two upstream score-string shapes: a
// best-of-N sub-round win count ("2-1") or a legacy raw time pair
// ("2.134-2.401"). The kind is fixed by the match format at assignment
// time, never re-sniffed per call.
type Score struct {
	Kind  ScoreKind
	WinsA int
	WinsB int
	TimeA float64
	TimeB float64
}

func BestOfNScore(winsA, winsB int) Score {
	return Score{Kind: ScoreBestOfN, WinsA: winsA, WinsB: winsB}
}

func TimesScore(timeA, timeB float64) Score {
	return Score{Kind: ScoreTimes, TimeA: timeA, TimeB: timeB}
}

// CSV renders the score in the authority's scores_csv wire format.
func (s Score) CSV() string {
	if s.Kind == ScoreTimes {
		return fmt.Sprintf("%.3f-%.3f", s.TimeA, s.TimeB)
	}
	return fmt.Sprintf("%d-%d", s.WinsA, s.WinsB)
}

// ParseTimesCSV parses a "timeA-timeB" score string as imported from the
// authority. Returns false when the string is not a parseable time pair
// (for example a best-of-N count, or a forfeit marker).
func ParseTimesCSV(csv string) (timeA, timeB float64, ok bool) {
	parts := strings.Split(csv, "-")
	if len(parts) != 2 {
		return 0, 0, false
	}
	timeA, errA := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	timeB, errB := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if errA != nil || errB != nil {
		return 0, 0, false
	}
	return timeA, timeB, true
}
