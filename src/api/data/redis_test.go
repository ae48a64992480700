package data

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResultCacheKeyDeterministic(t *testing.T) {
	a := ResultCacheKey("VSSUT/2020/BTECH/12345", "inst_001", nil)
	b := ResultCacheKey("VSSUT/2020/BTECH/12345", "inst_001", nil)
	assert.Equal(t, a, b)
}

func TestResultCacheKeyDiscriminates(t *testing.T) {
	base := ResultCacheKey("VSSUT/2020/BTECH/12345", "inst_001", nil)

	assert.NotEqual(t, base, ResultCacheKey("VSSUT/2020/BTECH/12346", "inst_001", nil))
	assert.NotEqual(t, base, ResultCacheKey("VSSUT/2020/BTECH/12345", "inst_002", nil))
	assert.NotEqual(t, base, ResultCacheKey("VSSUT/2020/BTECH/12345", "inst_001", []byte("scan")))

	// field boundaries must not smear together
	assert.NotEqual(t,
		ResultCacheKey("ab", "c", nil),
		ResultCacheKey("a", "bc", nil))
}
