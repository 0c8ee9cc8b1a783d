package common

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseID(t *testing.T) {
	want := uuid.New()
	got, err := ParseID("id", want.String())
	require.NoError(t, err)
	assert.Equal(t, want, got)

	for _, raw := range []string{"", "  ", "not-a-uuid"} {
		_, err := ParseID("id", raw)
		require.Error(t, err, raw)
		assert.ErrorIs(t, err, ErrInvalidInput)
		assert.Equal(t, CodeInvalidInput, ErrorCode(err))
	}

	_, err = ParseID("audit_id", "nope")
	assert.Contains(t, PublicMessage(err), "audit_id must be a valid UUID")
}

func TestExtension(t *testing.T) {
	rule := Extension(map[string]struct{}{"csv": {}, "xlsx": {}})

	assert.Nil(t, rule("csv_file", "ledger.CSV"))
	verr := rule("csv_file", "ledger.txt")
	require.NotNil(t, verr)
	assert.Contains(t, verr.Message, ".csv, .xlsx")
}
