package main

import (
	"testing"

	"github.com/brimdata/semq/ztest"
)

func TestZTest(t *testing.T) { ztest.Run(t, "testdata/ztest") }
