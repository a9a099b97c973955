package srcfiles

import (
	"sort"
)

// List holds the text of one document along with the diagnostics
// accumulated against it.  Positions are byte offsets into Text.
type List struct {
	URL    string
	Text   string
	Files  []File
	errors ErrorList
}

func NewList(url, text string) *List {
	return &List{
		URL:   url,
		Text:  text,
		Files: []File{newFile(url, 0, []byte(text))},
	}
}

func (l *List) AddError(msg string, pos, end int) {
	l.errors.Append(l, SeverityError, msg, pos, end)
}

func (l *List) AddWarning(msg string, pos, end int) {
	l.errors.Append(l, SeverityWarn, msg, pos, end)
}

// Error returns the errors (but not the warnings) in l or nil if there
// are none.
func (l *List) Error() error {
	if !l.HasErrors() {
		return nil
	}
	var errs ErrorList
	for _, e := range l.errors {
		if e.Severity == SeverityError {
			errs = append(errs, e)
		}
	}
	return errs
}

func (l *List) HasErrors() bool {
	for _, e := range l.errors {
		if e.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Diagnostics returns every error and warning in the order logged.
func (l *List) Diagnostics() ErrorList {
	return l.errors
}

func (l *List) FileOf(pos int) File {
	i := sort.Search(len(l.Files), func(i int) bool { return l.Files[i].start > pos }) - 1
	if i < 0 {
		i = 0
	}
	return l.Files[i]
}

// Span converts the byte range [pos, end) into 1-based line and column
// positions.
func (l *List) Span(pos, end int) (Position, Position) {
	if len(l.Files) == 0 {
		return Position{-1, -1, -1, -1}, Position{-1, -1, -1, -1}
	}
	file := l.FileOf(pos)
	if end < pos {
		end = pos
	}
	return file.Position(pos), file.Position(end)
}

// Offset converts a 0-based line and character back into a byte offset
// into Text.  It returns -1 if the line is out of range.
func (l *List) Offset(line, char int) int {
	if len(l.Files) == 0 {
		return -1
	}
	f := l.Files[0]
	if line < 0 || line >= len(f.lines) {
		return -1
	}
	return min(f.start+f.lines[line]+char, len(l.Text))
}
