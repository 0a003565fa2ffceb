package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRule(t *testing.T) {
	rule, err := ParseRule(`.*\.tiff:staining_method=H&E,tissue=LUNG,disease=LUNG_CANCER`)
	require.NoError(t, err)
	assert.True(t, rule.Pattern.MatchString("/data/slide.tiff"))
	require.Len(t, rule.Assignments, 3)
	assert.Equal(t, Assignment{Key: "staining_method", Value: "H&E"}, rule.Assignments[0])
}

func TestParseRule_Invalid(t *testing.T) {
	for _, spec := range []string{
		"",
		"no-assignments",
		".*:",
		".*:novalue",
		"[:tissue=LUNG", // broken regex
	} {
		_, err := ParseRule(spec)
		assert.Error(t, err, "expected %q to be rejected", spec)
	}
}

func TestApplyRules_AllMatchingRulesApply(t *testing.T) {
	rules, err := ParseRules([]string{
		".*:staining_method=H&E,tissue=LIVER",
		`slide-2:disease=LIVER_CANCER`,
	})
	require.NoError(t, err)

	records := []Record{
		{Reference: "slide-1"},
		{Reference: "slide-2"},
	}
	require.NoError(t, ApplyRules(rules, records))

	assert.Equal(t, "H&E", records[0].StainingMethod)
	assert.Equal(t, "LIVER", records[0].Tissue)
	assert.Empty(t, records[0].Disease)

	// Both rules matched slide-2.
	assert.Equal(t, "H&E", records[1].StainingMethod)
	assert.Equal(t, "LIVER_CANCER", records[1].Disease)
}

func TestApplyRules_LaterRuleWins(t *testing.T) {
	rules, err := ParseRules([]string{
		".*:tissue=LUNG",
		".*:tissue=LIVER",
	})
	require.NoError(t, err)

	records := []Record{{Reference: "slide-1"}}
	require.NoError(t, ApplyRules(rules, records))
	assert.Equal(t, "LIVER", records[0].Tissue)
}

func TestApplyRules_UnknownFieldRejected(t *testing.T) {
	rules, err := ParseRules([]string{".*:checksum_base64_crc32c=forged"})
	require.NoError(t, err)

	records := []Record{{Reference: "slide-1"}}
	err = ApplyRules(rules, records)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-assignable")
}
