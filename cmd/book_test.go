// File: cmd/book_test.go
package cmd

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookCmd_MissingCredentials(t *testing.T) {
	resetForTest(t)

	// Site URL is provided but credentials are not, so config validation
	// must stop the run before a browser ever starts.
	t.Setenv("TEESNIPE_SITE_URL", "https://example.com/widget")

	_, err := executeCommand(t, "book")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TEESNIPE_USERNAME")
}

func TestBookCmd_MissingSiteURL(t *testing.T) {
	resetForTest(t)

	t.Setenv("TEESNIPE_USERNAME", "member@example.com")
	t.Setenv("TEESNIPE_PASSWORD", "hunter2")

	_, err := executeCommand(t, "book")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "site.url")
}

func TestBookCmd_RejectsInvalidFlagValues(t *testing.T) {
	testCases := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"party size too large", []string{"book", "--players", "5"}, "party_size"},
		{"unknown mode", []string{"book", "--mode", "yolo"}, "booking.mode"},
		{"malformed time range", []string{"book", "--time-range", "8am-11am"}, "preferred time range"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			resetForTest(t)
			t.Setenv("TEESNIPE_SITE_URL", "https://example.com/widget")
			t.Setenv("TEESNIPE_USERNAME", "member@example.com")
			t.Setenv("TEESNIPE_PASSWORD", "hunter2")

			_, err := executeCommand(t, tc.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestBookCmd_FlagsOverrideDefaults(t *testing.T) {
	resetForTest(t)
	t.Setenv("TEESNIPE_SITE_URL", "https://example.com/widget")
	t.Setenv("TEESNIPE_USERNAME", "member@example.com")
	t.Setenv("TEESNIPE_PASSWORD", "hunter2")

	// An invalid party size proves the flag value reached viper; the run
	// fails at validation instead of launching a browser.
	_, err := executeCommand(t, "book", "--players", "0", "--mode", "immediate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "party_size")
	assert.Equal(t, "immediate", viper.GetString("booking.mode"))
}
