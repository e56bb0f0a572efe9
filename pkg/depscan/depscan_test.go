package depscan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScanFindsInclusionToken(t *testing.T) {
	names := Scan("before {{>header}} after")
	assert.True(t, names["header"])
	assert.Len(t, names, 1)
}

func TestScanIsWhitespaceTolerant(t *testing.T) {
	names := Scan("{{> header }}")
	assert.True(t, names["header"])
}

func TestScanDedupesAndSupportsMultiple(t *testing.T) {
	names := Scan("{{>a}} text {{>b}} more {{>a}}")
	assert.Len(t, names, 2)
	assert.True(t, names["a"])
	assert.True(t, names["b"])
}

func TestScanOrderedPreservesFirstOccurrence(t *testing.T) {
	ordered := ScanOrdered("{{>b}} {{>a}} {{>b}}")
	assert.Equal(t, []string{"b", "a"}, ordered)
}

func TestScanNoMatches(t *testing.T) {
	names := Scan("plain text with no includes")
	assert.Empty(t, names)
}
