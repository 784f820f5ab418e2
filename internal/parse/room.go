package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	// "R101", "B-203", "West 3F-12", "Lab 4-07"
	numberRe = regexp.MustCompile(`(\d+)\s*$`)
	floorRe  = regexp.MustCompile(`(?i)(\d+)\s*F\s*-\s*\d+\s*$`)
)

// ParsedRoom holds the structured data parsed from a room label.
type ParsedRoom struct {
	Building string
	Floor    int
	Number   int
}

// ParseRoomLabel extracts building, floor and number from a room label.
// An explicit floor ("3F-12") wins; otherwise the floor is the leading digit
// group of a number with three or more digits (101 -> 1, 1204 -> 12), or the
// whole number when it is shorter.
func ParseRoomLabel(raw string) (ParsedRoom, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimSpace(regexp.MustCompile(`\s+`).ReplaceAllString(s, " "))
	if s == "" {
		return ParsedRoom{}, fmt.Errorf("empty room label")
	}

	if loc := floorRe.FindStringSubmatchIndex(s); loc != nil {
		floor, _ := strconv.Atoi(s[loc[2]:loc[3]])
		numLoc := numberRe.FindStringSubmatchIndex(s)
		number, _ := strconv.Atoi(s[numLoc[2]:numLoc[3]])
		return ParsedRoom{Building: building(s[:loc[0]]), Floor: floor, Number: number}, nil
	}

	loc := numberRe.FindStringSubmatchIndex(s)
	if loc == nil {
		return ParsedRoom{}, fmt.Errorf("unable to parse room number from label: %q", raw)
	}
	digits := s[loc[2]:loc[3]]
	number, err := strconv.Atoi(digits)
	if err != nil {
		return ParsedRoom{}, fmt.Errorf("unable to parse room number from label %q: %w", raw, err)
	}

	floor := number
	if len(digits) >= 3 {
		floor, _ = strconv.Atoi(digits[:len(digits)-2])
	}
	if floor == 0 {
		return ParsedRoom{}, fmt.Errorf("unable to parse floor from label: %q", raw)
	}

	return ParsedRoom{Building: building(s[:loc[0]]), Floor: floor, Number: number}, nil
}

func building(prefix string) string {
	return strings.TrimSpace(strings.TrimRight(strings.TrimSpace(prefix), "-#"))
}
