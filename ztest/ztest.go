// Package ztest runs formulaic tests ("ztests") that can be (1) run in-process
// with the compiled-in translator or (2) run as a bash script running a
// sequence of arbitrary shell commands invoking the semq executable.  Case
// (1) is easier to debug by simply running "go test".
//
// In the document style, ztest translates a document with the given
// imports and schemas supplied up front and checks the formatted model and
// the diagnostics.
//
//	document: |
//	  source: flights is duckdb.table('flights')
//	  run: flights -> { group_by: carrier }
//
//	tables:
//	  duckdb:flights:
//	    - {name: carrier, type: string}
//
//	output: |
//	  source: flights is duckdb.table('flights')
//	  ...
//
// Imported documents are given by URL under imports and SQL block schemas
// under sql.  A key listed under fail is supplied as an error with the
// given message.  errors holds the expected diagnostics, one per line, as
// formatted by compiler.FormatProblems.  When errors is non-empty and
// output is empty, only the diagnostics are compared.
//
// Alternatively, tests can be configured to run as shell scripts.  Scripts
// are executed by "bash -e -o pipefail", and a nonzero shell exit code
// causes a test failure.  Here, the yaml sets up a collection of input
// files and stdin, the script runs, and the test driver compares expected
// output files, stdout, and stderr with data in the yaml spec.
//
//	inputs:
//	  - name: model.malloy
//	    data: |
//	      source: s is duckdb.table('t')
//
//	script: |
//	  semq needs model.malloy
//
//	outputs:
//	  - name: stdout
//	    data: |
//	      tables: duckdb:t
//
// Ztest YAML files for a package should reside in a subdirectory named
// testdata/ztest, and the package should contain a Go test named TestZTest
// that calls Run.
//
//	func TestZTest(t *testing.T) { ztest.Run(t, "testdata/ztest") }
//
// If the ZTEST_PATH environment variable is unset or empty, Run runs
// document tests in the current process and skips the script tests.
// Otherwise, Run runs only the script tests, using the semq executable
// in the directories specified by ZTEST_PATH.
//
// Tests of either style can be skipped by setting the skip field to a non-empty
// string.  A message containing the string will be written to the test log.
package ztest

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/brimdata/semq/compiler"
	"github.com/brimdata/semq/compiler/model"
	"github.com/brimdata/semq/compiler/sfmt"
	"github.com/goccy/go-yaml"
	yamlparser "github.com/goccy/go-yaml/parser"
	"github.com/pmezard/go-difflib/difflib"
)

func ShellPath() string {
	return os.Getenv("ZTEST_PATH")
}

type Bundle struct {
	TestName string
	FileName string
	Test     *ZTest
	Error    error
}

func Load(dirname string) ([]Bundle, error) {
	var bundles []Bundle
	fileinfos, err := os.ReadDir(dirname)
	if err != nil {
		return nil, err
	}
	for _, fi := range fileinfos {
		filename := fi.Name()
		const dotyaml = ".yaml"
		if !strings.HasSuffix(filename, dotyaml) {
			continue
		}
		testname := strings.TrimSuffix(filename, dotyaml)
		filename = filepath.Join(dirname, filename)
		zt, err := FromYAMLFile(filename)
		bundles = append(bundles, Bundle{testname, filename, zt, err})
	}
	return bundles, nil
}

// Run runs the ztests in the directory named dirname.  For each file f.yaml in
// the directory, Run calls FromYAMLFile to load a ztest and then runs it in
// subtest named f.  path is a command search path like the
// PATH environment variable.
func Run(t *testing.T, dirname string) {
	shellPath := ShellPath()
	bundles, err := Load(dirname)
	if err != nil {
		t.Fatal(err)
	}
	for _, b := range bundles {
		t.Run(b.TestName, func(t *testing.T) {
			t.Parallel()
			if b.Error != nil {
				t.Fatalf("%s: %s", b.FileName, b.Error)
			}
			b.Test.Run(t, shellPath, b.FileName)
		})
	}
}

type File struct {
	// Name is the name of the file with respect to the directoy in which
	// the test script runs.  For inputs, if no data source is specified,
	// then name is also the name of a data file in the diectory containing
	// the yaml test file, which is copied to the test script directory.
	// Name can also be stdio (for inputs) or stdout or stderr (for outputs).
	Name string `yaml:"name"`
	// Data and Source represent the different ways file data can
	// be defined for this file.  Data is a string turned into the contents
	// of the file. Source is a string representing
	// the pathname of a file the repo that is read to comprise the data.
	Data   *string `yaml:"data,omitempty"`
	Source string  `yaml:"source,omitempty"`
	// Re is a regular expression describing the contents of the file,
	// which is only applicable to output files.
	Re string `yaml:"regexp,omitempty"`
}

func (f *File) check() error {
	cnt := 0
	if f.Data != nil {
		cnt++
	}
	if f.Source != "" {
		cnt++
	}
	if cnt > 1 {
		return fmt.Errorf("%s: must specify at most one of data or source", f.Name)
	}
	return nil
}

func (f *File) load(dir string) ([]byte, *regexp.Regexp, error) {
	if f.Data != nil {
		return []byte(*f.Data), nil, nil
	}
	if f.Source != "" {
		b, err := os.ReadFile(filepath.Join(dir, f.Source))
		return b, nil, err
	}
	if f.Re != "" {
		re, err := regexp.Compile(f.Re)
		return nil, re, err
	}
	b, err := os.ReadFile(filepath.Join(dir, f.Name))
	if err == nil {
		return b, nil, nil
	}
	if os.IsNotExist(err) {
		err = fmt.Errorf("%s: no data source", f.Name)
	}
	return nil, nil, err
}

// ZTest defines a ztest.
type ZTest struct {
	Skip string `yaml:"skip,omitempty"`
	Tag  string `yaml:"tag,omitempty"`

	// For document-style tests.
	URL      string                    `yaml:"url,omitempty"`
	Document string                    `yaml:"document,omitempty"`
	Imports  map[string]string         `yaml:"imports,omitempty"`
	Tables   map[string][]model.Column `yaml:"tables,omitempty"`
	SQL      map[string][]model.Column `yaml:"sql,omitempty"`
	Fail     *Fail                     `yaml:"fail,omitempty"`
	Output   string                    `yaml:"output,omitempty"`
	Errors   string                    `yaml:"errors,omitempty"`

	// For script-style tests.
	Script  string   `yaml:"script,omitempty"`
	Inputs  []File   `yaml:"inputs,omitempty"`
	Outputs []File   `yaml:"outputs,omitempty"`
	Env     []string `yaml:"env,omitempty"`
}

// Fail lists keys supplied as errors, with the message for each.
type Fail struct {
	Imports map[string]string `yaml:"imports,omitempty"`
	Tables  map[string]string `yaml:"tables,omitempty"`
	SQL     map[string]string `yaml:"sql,omitempty"`
}

const defaultURL = "test.malloy"

func (z *ZTest) check() error {
	if z.Script != "" {
		if z.Outputs == nil {
			return errors.New("outputs field missing in a sh test")
		}
		for _, f := range z.Inputs {
			if err := f.check(); err != nil {
				return err
			}
			if f.Re != "" {
				return fmt.Errorf("%s: cannot use regexp in an input", f.Name)
			}
		}
		for _, f := range z.Outputs {
			if err := f.check(); err != nil {
				return err
			}
		}
	} else if z.Document == "" {
		return errors.New("either a document field or script field must be present")
	}
	return nil
}

// FromYAMLFile loads a ZTest from the YAML file named filename.
func FromYAMLFile(filename string) (*ZTest, error) {
	f, err := yamlparser.ParseFile(filename, 0)
	if err != nil {
		return nil, err
	}
	if len(f.Docs) != 1 {
		return nil, errors.New("file must contain one YAML document")
	}
	var z ZTest
	if err := yaml.NodeToValue(f.Docs[0].Body, &z, yaml.DisallowUnknownField()); err != nil {
		return nil, err
	}
	return &z, nil
}

func (z *ZTest) ShouldSkip(path string) string {
	switch {
	case z.Script != "" && path == "":
		return "script test on in-process run"
	case z.Document != "" && path != "":
		return "in-process test on script run"
	case z.Skip != "":
		return z.Skip
	case z.Tag != "" && z.Tag != os.Getenv("ZTEST_TAG"):
		return fmt.Sprintf("tag %q does not match ZTEST_TAG=%q", z.Tag, os.Getenv("ZTEST_TAG"))
	}
	return ""
}

func (z *ZTest) RunScript(ctx context.Context, shellPath, testDir string, tempDir func() string) error {
	if err := z.check(); err != nil {
		return fmt.Errorf("bad yaml format: %w", err)
	}
	return runsh(ctx, shellPath, testDir, tempDir(), z)
}

func (z *ZTest) RunInternal() error {
	if err := z.check(); err != nil {
		return fmt.Errorf("bad yaml format: %w", err)
	}
	resp := z.translate()
	if resp.Needs != nil {
		return fmt.Errorf("translation incomplete, needs %+v", *resp.Needs)
	}
	var out string
	if resp.Translated != nil {
		out = sfmt.Model(resp.Translated.ModelDef)
	}
	problems := compiler.FormatProblems(resp.Problems)
	var outDiffErr, errDiffErr error
	if (z.Output != "" || z.Errors == "") && z.Output != out {
		outDiffErr = diffErr("output", z.Output, out)
	}
	if z.Errors != problems {
		errDiffErr = diffErr("errors", z.Errors, problems)
	}
	return errors.Join(outDiffErr, errDiffErr)
}

func (z *ZTest) translate() *compiler.Response {
	url := z.URL
	if url == "" {
		url = defaultURL
	}
	u := compiler.Update{
		URLs:       z.Imports,
		Tables:     schemas(z.Tables),
		CompileSQL: schemas(z.SQL),
	}
	if z.Fail != nil {
		u.Errors = compiler.Errors{
			URLs:       z.Fail.Imports,
			Tables:     z.Fail.Tables,
			CompileSQL: z.Fail.SQL,
		}
	}
	return compiler.Translate(url, z.Document, u)
}

func schemas(m map[string][]model.Column) map[string]*model.TableSchema {
	out := make(map[string]*model.TableSchema, len(m))
	for key, columns := range m {
		out[key] = &model.TableSchema{Columns: columns}
	}
	return out
}

func (z *ZTest) Run(t *testing.T, path, filename string) {
	if msg := z.ShouldSkip(path); msg != "" {
		t.Skip("skipping test:", msg)
	}
	var err error
	if z.Script != "" {
		err = z.RunScript(t.Context(), path, filepath.Dir(filename), t.TempDir)
	} else {
		err = z.RunInternal()
	}
	if err != nil {
		t.Fatalf("%s: %s", filename, err)
	}
}

func diffErr(name, expected, actual string) error {
	if !utf8.ValidString(expected) {
		expected = hex.Dump([]byte(expected))
		actual = hex.Dump([]byte(actual))
	}
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(expected),
		FromFile: "expected",
		B:        difflib.SplitLines(actual),
		ToFile:   "actual",
		Context:  5,
	})
	if err != nil {
		panic("ztest: " + err.Error())
	}
	return fmt.Errorf("expected and actual %s differ:\n%s", name, diff)
}

func runsh(ctx context.Context, path, testDir, tempDir string, zt *ZTest, extraEnv ...string) error {
	var stdin io.Reader
	for _, f := range zt.Inputs {
		b, _, err := f.load(testDir)
		if err != nil {
			return err
		}
		if f.Name == "stdin" {
			stdin = bytes.NewReader(b)
			continue
		}
		if err := os.WriteFile(filepath.Join(tempDir, f.Name), b, 0644); err != nil {
			return err
		}
	}
	stdout, stderr, err := RunShell(ctx, tempDir, path, zt.Script, stdin, zt.Env, extraEnv)
	if err != nil {
		return fmt.Errorf("script failed: %w\n=== stdout ===\n%s=== stderr ===\n%s",
			err, stdout, stderr)
	}
	for _, f := range zt.Outputs {
		var actual string
		switch f.Name {
		case "stdout":
			actual = stdout
		case "stderr":
			actual = stderr
		default:
			b, err := os.ReadFile(filepath.Join(tempDir, f.Name))
			if err != nil {
				return fmt.Errorf("%s: %w", f.Name, err)
			}
			actual = string(b)
		}
		expected, expectedRE, err := f.load(testDir)
		if err != nil {
			return err
		}
		if expected != nil && string(expected) != actual {
			return diffErr(f.Name, string(expected), actual)
		}
		if expectedRE != nil && !expectedRE.MatchString(actual) {
			return fmt.Errorf("%s: regexp %q does not match %q", f.Name, expectedRE, actual)
		}
	}
	return nil
}
