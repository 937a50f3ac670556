package engine

import "github.com/martinsk/mskql/types"

// Well-known PostgreSQL type OIDs (pg_type.oid), as used by every
// wire-protocol-v3 row description (spec §4.15, §9 GLOSSARY "RowDescription").
const (
	pgOIDBool        = 16
	pgOIDInt8        = 20
	pgOIDInt2        = 21
	pgOIDInt4        = 23
	pgOIDText        = 25
	pgOIDFloat4      = 700
	pgOIDFloat8      = 701
	pgOIDUnknown     = 705
	pgOIDVarchar     = 1043
	pgOIDDate        = 1082
	pgOIDTime        = 1083
	pgOIDTimestamp   = 1114
	pgOIDTimestamptz = 1184
	pgOIDInterval    = 1186
	pgOIDNumeric     = 1700
	pgOIDUUID        = 2950
)

// PgTypeOID maps a column's type tag to the PostgreSQL type OID the wire
// server reports in a RowDescription message. Enum columns report as
// text: the wire protocol never needs to distinguish an application enum
// from a plain varchar for a simple-query client to render it correctly.
func PgTypeOID(tag types.Tag) uint32 {
	switch tag {
	case types.TagSmallInt:
		return pgOIDInt2
	case types.TagInt:
		return pgOIDInt4
	case types.TagBigInt:
		return pgOIDInt8
	case types.TagFloat:
		return pgOIDFloat4
	case types.TagNumeric:
		return pgOIDNumeric
	case types.TagBoolean:
		return pgOIDBool
	case types.TagText, types.TagEnum:
		return pgOIDText
	case types.TagDate:
		return pgOIDDate
	case types.TagTime:
		return pgOIDTime
	case types.TagTimestamp:
		return pgOIDTimestamp
	case types.TagTimestamptz:
		return pgOIDTimestamptz
	case types.TagInterval:
		return pgOIDInterval
	case types.TagUUID:
		return pgOIDUUID
	default:
		return pgOIDUnknown
	}
}
