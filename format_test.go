package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusf_Quiet(t *testing.T) {
	var buf bytes.Buffer

	statusf(&buf, true, "hidden %d\n", 1)
	assert.Empty(t, buf.String())

	statusf(&buf, false, "shown %d\n", 2)
	assert.Equal(t, "shown 2\n", buf.String())
}

func TestCLIContext_StatusfWritesToErr(t *testing.T) {
	var out, errOut bytes.Buffer

	cc := &CLIContext{Out: &out, Err: &errOut}
	cc.Statusf("Logged out.\n")

	assert.Empty(t, out.String())
	assert.Equal(t, "Logged out.\n", errOut.String())
}

func TestPrintJSON_Indented(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, printJSON(&buf, map[string]int{"a": 1}))
	assert.Equal(t, "{\n  \"a\": 1\n}\n", buf.String())
}

func TestFormatTime(t *testing.T) {
	now := time.Now()
	sameYear := time.Date(now.Year(), time.March, 15, 10, 30, 0, 0, time.UTC)
	diffYear := time.Date(2020, time.December, 25, 8, 0, 0, 0, time.UTC)

	t.Run("same year", func(t *testing.T) {
		result := formatTime(sameYear)
		assert.Contains(t, result, "Mar")
		assert.Contains(t, result, "15")
		assert.Contains(t, result, "10:30")
	})

	t.Run("different year", func(t *testing.T) {
		result := formatTime(diffYear)
		assert.Contains(t, result, "Dec")
		assert.Contains(t, result, "25")
		assert.Contains(t, result, "2020")
	})
}

func TestPrintTable(t *testing.T) {
	var buf bytes.Buffer

	headers := []string{"ID", "USERNAME", "ROLE"}
	rows := [][]string{
		{"7", "alice", "admin"},
		{"8", "bob", "merchant"},
	}

	printTable(&buf, headers, rows)
	output := buf.String()

	lines := strings.Split(strings.TrimRight(output, "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "ID  USERNAME  ROLE", strings.TrimRight(lines[0], " "))
	assert.Equal(t, "7   alice     admin", strings.TrimRight(lines[1], " "))
	assert.Equal(t, "8   bob       merchant", lines[2])
}
