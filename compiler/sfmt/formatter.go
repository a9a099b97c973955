package sfmt

import (
	"fmt"
	"strings"
)

type formatter struct {
	strings.Builder
	indent  int
	tab     int
	needRet bool
}

func (f *formatter) flush() {
	if f.needRet {
		f.ret()
	}
}

func (f *formatter) write(format string, args ...any) {
	if len(args) == 0 {
		f.WriteString(format)
		return
	}
	fmt.Fprintf(&f.Builder, format, args...)
}

func (f *formatter) writeTab() {
	for range f.indent {
		f.WriteByte(' ')
	}
}

func (f *formatter) open(args ...any) {
	if len(args) > 0 {
		f.write(args[0].(string), args[1:]...)
	}
	f.indent += f.tab
}

func (f *formatter) close() {
	f.indent -= f.tab
}

func (f *formatter) ret() {
	f.WriteByte('\n')
	f.needRet = false
}

// line starts a new line at the current indentation.
func (f *formatter) line(format string, args ...any) {
	f.writeTab()
	f.write(format, args...)
	f.ret()
}
