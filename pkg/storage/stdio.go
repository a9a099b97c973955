package storage

import (
	"context"
	"errors"
	"io"
	"os"
)

// StdioEngine serves stdio:stdin so a root document can be piped in.
type StdioEngine struct{}

var _ Engine = (*StdioEngine)(nil)

func NewStdioEngine() *StdioEngine {
	return &StdioEngine{}
}

func (*StdioEngine) Get(_ context.Context, u *URI) (Reader, error) {
	if u.String() != "stdio:stdin" {
		return nil, errors.New("cannot read from " + u.String())
	}
	// Closing stdin would break later reads.
	return io.NopCloser(os.Stdin), nil
}

func (*StdioEngine) Exists(_ context.Context, u *URI) (bool, error) {
	return u.String() == "stdio:stdin", nil
}
