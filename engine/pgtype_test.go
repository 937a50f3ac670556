package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/martinsk/mskql/types"
)

func TestPgTypeOIDKnownTags(t *testing.T) {
	cases := []struct {
		tag  types.Tag
		want uint32
	}{
		{types.TagBoolean, 16},
		{types.TagBigInt, 20},
		{types.TagSmallInt, 21},
		{types.TagInt, 23},
		{types.TagText, 25},
		{types.TagFloat, 700},
		{types.TagNumeric, 1700},
		{types.TagUUID, 2950},
	}
	for _, c := range cases {
		require.Equal(t, c.want, PgTypeOID(c.tag), "tag %v", c.tag)
	}
}
