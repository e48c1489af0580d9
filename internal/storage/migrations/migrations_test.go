package migrations

import (
	"errors"
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitStatements(t *testing.T) {
	input := `-- header comment
CREATE TABLE a (x Int64);

-- second
CREATE TABLE b (
    y String
) ENGINE = Memory;
`
	stmts := splitStatements(input)
	require.Len(t, stmts, 2)
	assert.Equal(t, "CREATE TABLE a (x Int64)", stmts[0])
	assert.True(t, strings.HasPrefix(stmts[1], "CREATE TABLE b ("))
	assert.True(t, strings.HasSuffix(stmts[1], "ENGINE = Memory"))
}

func TestSplitStatements_Empty(t *testing.T) {
	assert.Empty(t, splitStatements("-- only a comment\n\n"))
}

func TestValidateNoSemicolonInStrings(t *testing.T) {
	assert.NoError(t, validateNoSemicolonInStrings("SELECT 'a' ; SELECT 'it''s'"))

	err := validateNoSemicolonInStrings("SELECT 'a;b'")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSemicolonInString))
}

func TestDatabaseFromDSN(t *testing.T) {
	db, err := databaseFromDSN("clickhouse://default:@localhost:9000/prices")
	require.NoError(t, err)
	assert.Equal(t, "prices", db)

	_, err = databaseFromDSN("clickhouse://localhost:9000")
	assert.Error(t, err)
}

func TestEmbeddedMigrations(t *testing.T) {
	pg, err := Files(PostgresFS, "postgres")
	require.NoError(t, err)
	assert.Equal(t, []string{"001_events.sql", "002_feature_records.sql"}, pg)

	ch, err := Files(ClickhouseFS, "clickhouse")
	require.NoError(t, err)
	require.Equal(t, []string{"001_price_observations.sql"}, ch)

	for _, file := range ch {
		data, err := fs.ReadFile(ClickhouseFS, "clickhouse/"+file)
		require.NoError(t, err)
		assert.NoError(t, validateNoSemicolonInStrings(string(data)))
		assert.NotEmpty(t, splitStatements(string(data)))
	}
}
