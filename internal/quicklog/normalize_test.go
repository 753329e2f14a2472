package quicklog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkivisto/fieldlog/internal/errors"
)

func TestToTitleCase(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"carpenter ant", "Carpenter Ant"},
		{"  carpenter   ant  ", "Carpenter Ant"},
		{"CARPENTER ANT", "Carpenter Ant"},
		{"seven-spot ladybird", "Seven-spot Ladybird"},
		{"", ""},
		{"ant", "Ant"},
	}

	for _, tt := range tests {
		assert.Equalf(t, tt.want, ToTitleCase(tt.in), "input %q", tt.in)
	}
}

func TestToTitleCaseIdempotent(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"carpenter ant", "Seven-spot Ladybird", "  spaced   out  "} {
		once := ToTitleCase(name)
		assert.Equal(t, once, ToTitleCase(once))
	}
}

func TestNormalizeNameReusesKnownSpelling(t *testing.T) {
	t.Parallel()

	known := []string{"RGB Jumping Spider", "Carpenter Ant"}

	// Title-casing alone would produce "Rgb Jumping Spider"
	assert.Equal(t, "RGB Jumping Spider", NormalizeName("rgb jumping spider", known))
	assert.Equal(t, "Carpenter Ant", NormalizeName("CARPENTER   ANT", known))
	assert.Equal(t, "Garden Cross Spider", NormalizeName("garden cross spider", known))
}

func TestValidateCommonName(t *testing.T) {
	t.Parallel()

	name, err := ValidateCommonName("  carpenter   ant ")
	require.NoError(t, err)
	assert.Equal(t, "Carpenter Ant", name)

	_, err = ValidateCommonName("")
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))

	_, err = ValidateCommonName("x")
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestValidateCommonNameRejectsParenthetical(t *testing.T) {
	t.Parallel()

	_, err := ValidateCommonName("Carpenter Ant (Camponotus parius)")
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
	// The error names the exact substring that has to move fields
	assert.Contains(t, err.Error(), "(Camponotus parius)")
}

func TestValidateScientificName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      string
		want    string
		wantErr string
	}{
		{"binomial", "Camponotus parius", "Camponotus parius", ""},
		{"undetermined species", "Camponotus sp.", "Camponotus sp.", ""},
		{"trinomial", "Larus fuscus fuscus", "Larus fuscus fuscus", ""},
		{"empty allowed", "", "", ""},
		{"whitespace normalized", "  Camponotus   parius ", "Camponotus parius", ""},
		{"single word", "Camponotus", "", "at least two parts"},
		{"bare sp", "Camponotus sp", "", `"Camponotus sp."`},
		{"genus lowercase", "camponotus parius", "", "genus must be capitalized"},
		{"epithet uppercase", "Camponotus PARIUS", "", "must be lowercase"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ValidateScientificName(tt.in)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.IsValidation(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
