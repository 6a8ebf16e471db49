package app

import (
	"testing"

	"quiz-duel-service/internal/domain"
)

func TestResolveRound(t *testing.T) {
	cases := []struct {
		name      string
		first     domain.Answer
		second    domain.Answer
		points    [2]int
		winner    domain.Side
		hasWinner bool
		draw      bool
	}{
		{
			name:      "only first correct",
			first:     domain.Answer{Correct: true, ElapsedMs: 9000},
			second:    domain.Answer{Correct: false, ElapsedMs: 100},
			points:    [2]int{1, 0},
			winner:    domain.SideFirst,
			hasWinner: true,
		},
		{
			name:      "only second correct",
			first:     domain.Answer{Correct: false, ElapsedMs: 100},
			second:    domain.Answer{Correct: true, ElapsedMs: 9000},
			points:    [2]int{0, 1},
			winner:    domain.SideSecond,
			hasWinner: true,
		},
		{
			name:   "both incorrect scores nothing and is not a draw",
			first:  domain.Answer{Correct: false, ElapsedMs: 100},
			second: domain.Answer{Correct: false, ElapsedMs: 100},
		},
		{
			name:      "both correct faster first wins",
			first:     domain.Answer{Correct: true, ElapsedMs: 1200},
			second:    domain.Answer{Correct: true, ElapsedMs: 1201},
			points:    [2]int{1, 0},
			winner:    domain.SideFirst,
			hasWinner: true,
		},
		{
			name:      "both correct faster second wins",
			first:     domain.Answer{Correct: true, ElapsedMs: 5000},
			second:    domain.Answer{Correct: true, ElapsedMs: 800},
			points:    [2]int{0, 1},
			winner:    domain.SideSecond,
			hasWinner: true,
		},
		{
			name:   "both correct equal time draws",
			first:  domain.Answer{Correct: true, ElapsedMs: 1500},
			second: domain.Answer{Correct: true, ElapsedMs: 1500},
			draw:   true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			verdict := resolveRound(tc.first, tc.second)
			if verdict.points != tc.points {
				t.Fatalf("points = %v, want %v", verdict.points, tc.points)
			}
			if verdict.hasWinner != tc.hasWinner {
				t.Fatalf("hasWinner = %v, want %v", verdict.hasWinner, tc.hasWinner)
			}
			if tc.hasWinner && verdict.winner != tc.winner {
				t.Fatalf("winner = %v, want %v", verdict.winner, tc.winner)
			}
			if verdict.draw != tc.draw {
				t.Fatalf("draw = %v, want %v", verdict.draw, tc.draw)
			}
		})
	}
}

func TestResolveRoundIsSymmetric(t *testing.T) {
	answers := []domain.Answer{
		{Correct: true, ElapsedMs: 500},
		{Correct: true, ElapsedMs: 1500},
		{Correct: false, ElapsedMs: 500},
		{Correct: false, ElapsedMs: 1500},
		{Correct: true, ElapsedMs: 0},
	}

	for _, a := range answers {
		for _, b := range answers {
			straight := resolveRound(a, b)
			mirrored := resolveRound(b, a)

			if straight.points[0] != mirrored.points[1] || straight.points[1] != mirrored.points[0] {
				t.Fatalf("points not mirrored for %+v vs %+v: %v / %v", a, b, straight.points, mirrored.points)
			}
			if straight.draw != mirrored.draw || straight.hasWinner != mirrored.hasWinner {
				t.Fatalf("verdict flags not mirrored for %+v vs %+v", a, b)
			}
			if straight.hasWinner && straight.winner != mirrored.winner.Other() {
				t.Fatalf("winner not mirrored for %+v vs %+v", a, b)
			}
		}
	}
}
