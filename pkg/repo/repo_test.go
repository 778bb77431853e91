package repo

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpSQL(t *testing.T) {
	cases := map[Op]string{
		OpEq:  "=",
		OpNeq: "<>",
		OpGt:  ">",
		OpGte: ">=",
		OpLt:  "<",
		OpLte: "<=",
	}
	for op, want := range cases {
		got, err := op.SQL()
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	_, err := Op("like").SQL()
	require.Error(t, err)
}

func TestSortByDirection(t *testing.T) {
	require.Equal(t, "ASC", SortBy{Ascending: true}.Direction())
	require.Equal(t, "DESC", SortBy{}.Direction())
}

func TestFormatLimitOffset(t *testing.T) {
	require.Equal(t, "LIMIT 10 OFFSET 20", FormatLimitOffset(10, 20))
	require.Equal(t, "LIMIT 10", FormatLimitOffset(10, 0))
	require.Equal(t, "OFFSET 20", FormatLimitOffset(0, 20))
	require.Equal(t, "", FormatLimitOffset(0, 0))
}
