package session

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

var adjectives = []string{
	"Swift", "Bright", "Calm", "Deft", "Eager", "Fair", "Gentle", "Happy",
	"Keen", "Lively", "Merry", "Noble", "Polite", "Quick", "Serene", "Tidy",
	"Vivid", "Warm", "Zesty", "Bold",
}

var animals = []string{
	"Falcon", "Otter", "Panda", "Robin", "Tiger", "Whale", "Zebra", "Koala",
	"Eagle", "Dolphin", "Fox", "Owl", "Wolf", "Bear", "Hawk", "Seal",
	"Crane", "Deer", "Lynx", "Swan",
}

// participantColors is the fixed 12-entry palette assigned to
// participants in join order.
var participantColors = []string{
	"#3B82F6", // Blue
	"#EF4444", // Red
	"#10B981", // Emerald
	"#F59E0B", // Amber
	"#8B5CF6", // Violet
	"#EC4899", // Pink
	"#06B6D4", // Cyan
	"#F97316", // Orange
	"#6366F1", // Indigo
	"#14B8A6", // Teal
	"#A855F7", // Purple
	"#84CC16", // Lime
}

// randomDisplayName returns an adjective-animal pair such as "SwiftFalcon".
func randomDisplayName() (string, error) {
	adj, err := randomIndex(len(adjectives))
	if err != nil {
		return "", err
	}
	ani, err := randomIndex(len(animals))
	if err != nil {
		return "", err
	}
	return adjectives[adj] + animals[ani], nil
}

func randomIndex(n int) (int, error) {
	max := big.NewInt(int64(n))
	v, err := rand.Int(rand.Reader, max)
	if err != nil {
		return 0, fmt.Errorf("session: generating random name: %w", err)
	}
	return int(v.Int64()), nil
}

// colorForIndex assigns a palette color by join order, cycling once the
// palette is exhausted.
func colorForIndex(i int) string {
	return participantColors[i%len(participantColors)]
}
