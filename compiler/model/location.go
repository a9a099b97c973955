package model

// Position is a 0-based line and character offset.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

type Location struct {
	URL   string `json:"url"`
	Range Range  `json:"range"`
}

// CompareLocations orders locations by start line then character.  A nil
// location sorts first.
func CompareLocations(a, b *Location) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if a.Range.Start.Line != b.Range.Start.Line {
		if a.Range.Start.Line < b.Range.Start.Line {
			return -1
		}
		return 1
	}
	if a.Range.Start.Character != b.Range.Start.Character {
		if a.Range.Start.Character < b.Range.Start.Character {
			return -1
		}
		return 1
	}
	return 0
}
