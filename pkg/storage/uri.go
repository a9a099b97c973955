package storage

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

type Scheme string

const (
	FileScheme  Scheme = "file"
	HTTPScheme  Scheme = "http"
	HTTPSScheme Scheme = "https"
	S3Scheme    Scheme = "s3"
	StdioScheme Scheme = "stdio"
)

// URI is a parsed document location.  A path with no scheme is a file.
type URI url.URL

func ParseURI(path string) (*URI, error) {
	if path == "" {
		return nil, fmt.Errorf("empty path")
	}
	u, err := url.Parse(path)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// Either a relative path or a Windows drive letter.
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, err
		}
		u = &url.URL{Scheme: string(FileScheme), Path: filepath.ToSlash(abs)}
	}
	return (*URI)(u), nil
}

func MustParseURI(path string) *URI {
	u, err := ParseURI(path)
	if err != nil {
		panic(err)
	}
	return u
}

func (u *URI) SchemeOf() Scheme {
	return Scheme(u.URL().Scheme)
}

func (u *URI) URL() *url.URL {
	return (*url.URL)(u)
}

func (u *URI) String() string {
	return u.URL().String()
}

func (u *URI) Filepath() string {
	return filepath.FromSlash(u.Path)
}

// Bucket and Key split an s3 URI into its parts.
func (u *URI) Bucket() string {
	return u.Host
}

func (u *URI) Key() string {
	return strings.TrimPrefix(u.Path, "/")
}
