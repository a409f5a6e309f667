package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromCodeDefinedRanges(t *testing.T) {
	tests := []struct {
		name     string
		code     int
		want     ErrorCode
		category Category
	}{
		{"io error", 0, IOError, CategoryRecoverable},
		{"json parse", 1, JSONParseError, CategoryFatal},
		{"unexpected json", 2, UnexpectedJSONFormat, CategoryFatal},
		{"invalid credentials", 52, InvalidCredentials, CategoryFatal},
		{"existing account", 54, ExistingAccount, CategoryFatal},
		{"expired refresh token", 57, ExpiredRefreshToken, CategoryFatal},
		{"internal server error", 58, InternalServerError, CategoryRecoverable},
		{"connection closed", 100, ConnectionClosed, CategoryInfo},
		{"bad message order", 109, BadMessageOrder, CategoryInfo},
		{"bad changesets", 113, BadChangesets, CategoryInfo},
		{"session closed", 200, SessionClosed, CategoryRecoverable},
		{"token expired", 202, TokenExpired, CategoryRecoverable},
		{"bad authentication", 203, BadAuthentication, CategoryFatal},
		{"diverging histories", 211, DivergingHistories, CategoryFatal},
		{"bad changeset", 212, BadChangeset, CategoryFatal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, err := FromCode(tt.code)
			require.NoError(t, err)
			assert.Equal(t, tt.want, code)
			assert.Equal(t, tt.category, code.Category())
		})
	}
}

// Classification must be total over the defined codes and strictly failing
// everywhere else; there is no default bucket.
func TestFromCodeTotalOverTaxonomy(t *testing.T) {
	for code := range codes {
		got, err := FromCode(int(code))
		require.NoError(t, err, "code %d", int(code))
		assert.Equal(t, code, got)
	}
}

func TestFromCodeUnknown(t *testing.T) {
	for _, n := range []int{-1, 3, 49, 59, 99, 114, 199, 214, 299, 100000} {
		_, err := FromCode(n)
		require.Error(t, err, "code %d must not classify", n)
		var unknown *UnknownCodeError
		require.ErrorAs(t, err, &unknown)
		assert.Equal(t, n, unknown.Code)
	}
}

func TestConnectionRangeIsAllInfo(t *testing.T) {
	for code, entry := range codes {
		if code >= 100 && code <= 199 {
			assert.Equal(t, CategoryInfo, entry.category, "%s", code)
		}
	}
}

func TestCategoryString(t *testing.T) {
	assert.Equal(t, "FATAL", CategoryFatal.String())
	assert.Equal(t, "RECOVERABLE", CategoryRecoverable.String())
	assert.Equal(t, "INFO", CategoryInfo.String())
}
