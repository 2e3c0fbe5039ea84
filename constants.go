package pgdump

// Magic is the 5-byte prefix every custom-format archive begins with.
const Magic = "PGDMP"

// version is a (major, minor, revision) triplet, the same shape the
// archive header stores it in.
type version [3]byte

func (v version) less(o version) bool {
	if v[0] != o[0] {
		return v[0] < o[0]
	}
	if v[1] != o[1] {
		return v[1] < o[1]
	}
	return v[2] < o[2]
}

func (v version) greater(o version) bool {
	return o.less(v)
}

// MinVersion and MaxVersion bound the archive format versions this
// package accepts on read. Historically (1,12,0) and (1,14,0).
var (
	MinVersion = version{1, 12, 0}
	MaxVersion = version{1, 14, 0}
)

// appearAsTable maps a Postgres major-version string to the dump
// format version a freshly created archive should declare in its
// header, so that the matching pg_restore release accepts it.
var appearAsTable = map[string]version{
	"9":    {1, 12, 0},
	"10":   {1, 13, 0},
	"10.3": {1, 13, 0},
	"11":   {1, 13, 0},
	"12":   {1, 14, 0},
	"13":   {1, 14, 0},
	"14":   {1, 14, 0},
	"15":   {1, 14, 0},
	"16":   {1, 14, 0},
}

// defaultAppearAs is used by New when Config.AppearAs is empty.
const defaultAppearAs = "12"

// Format codes, indexed by the header's format byte.
const (
	FormatUnknown = iota
	FormatCustom
	FormatFiles
	FormatTar
	FormatNull
	FormatDirectory
)

var formatNames = []string{"Unknown", "Custom", "Files", "Tar", "Null", "Directory"}

// Default integer and offset widths used when creating a new archive.
const (
	DefaultIntSize    = 4
	DefaultOffsetSize = 8
)

// HeaderSize is the fixed byte length of the archive header: 5-byte
// magic, 3 version bytes, intsize, offsize, format byte. The
// compression flag, creation timestamp, and metadata strings that
// follow it are variable-width and not part of this fixed size.
const HeaderSize = 11

// Section is a coarse restore-ordering bucket.
type Section int

const (
	SectionNone Section = iota
	SectionPreData
	SectionData
	SectionPostData
)

var sectionNames = []string{"None", "Pre-Data", "Data", "Post-Data"}

func (s Section) String() string {
	if s < 0 || int(s) >= len(sectionNames) {
		return "Unknown"
	}
	return sectionNames[s]
}

// Block type tags that prefix a data block in the archive's data
// region.
const (
	BlkData  byte = 0x01
	BlkBlobs byte = 0x03
)

// ZlibInSize is the chunk-size threshold: any BLK_DATA chunk shorter
// than this, when compression is enabled, signals the last chunk.
const ZlibInSize = 4096

// DataState records whether and how an entry's bulk data is located
// within the archive.
type DataState int

const (
	DataStateNone      DataState = 3 // no-data
	DataStatePosNotSet DataState = 1 // offset unknown, scan forward
	DataStatePosSet    DataState = 2 // offset known
)

// Bootstrap entry tags/descs/dump ids present in every archive created
// from scratch.
const (
	DescEncoding    = "ENCODING"
	DescStdStrings  = "STDSTRINGS"
	DescSearchPath  = "SEARCHPATH"
	DumpIDEncoding  = 1
	DumpIDStdString = 2
	DumpIDSearch    = 3
)

// Well-known object-type descriptors. Descriptors outside this set are
// rejected by AddEntry (ErrInvalidDescriptor).
const (
	DescTable              = "TABLE"
	DescTableData          = "TABLE DATA"
	DescBlobs              = "BLOBS"
	DescSchema             = "SCHEMA"
	DescExtension          = "EXTENSION"
	DescAggregate          = "AGGREGATE"
	DescOperator           = "OPERATOR"
	DescOperatorClass      = "OPERATOR CLASS"
	DescOperatorFamily     = "OPERATOR FAMILY"
	DescCast               = "CAST"
	DescCollation          = "COLLATION"
	DescConversion         = "CONVERSION"
	DescLanguage           = "LANGUAGE"
	DescProceduralLanguage = "PROCEDURAL LANGUAGE"
	DescFDW                = "FOREIGN DATA WRAPPER"
	DescServer             = "SERVER"
	DescUserMapping        = "USER MAPPING"
	DescDomain             = "DOMAIN"
	DescType               = "TYPE"
	DescShellType          = "SHELL TYPE"
	DescSequence           = "SEQUENCE"
	DescSequenceSet        = "SEQUENCE SET"
	DescView               = "VIEW"
	DescFunction           = "FUNCTION"
	DescTransform          = "TRANSFORM"
	DescForeignTable       = "FOREIGN TABLE"
	DescDefault            = "DEFAULT"
	DescIndex              = "INDEX"
	DescConstraint         = "CONSTRAINT"
	DescCheckConstraint    = "CHECK CONSTRAINT"
	DescFKConstraint       = "FK CONSTRAINT"
	DescTrigger            = "TRIGGER"
	DescRule               = "RULE"
	DescMaterializedView   = "MATERIALIZED VIEW"
	DescPolicy             = "POLICY"
	DescRowSecurity        = "ROW SECURITY"
	DescPublication        = "PUBLICATION"
	DescSubscription       = "SUBSCRIPTION"
	DescStatistics         = "STATISTICS"
	DescDatabase           = "DATABASE"
	DescComment            = "COMMENT"
	DescACL                = "ACL"
)

// sectionMapping is the fixed desc -> section function: section is a
// pure function of desc, never independently stored. Descriptors not
// listed here are invalid.
var sectionMapping = map[string]Section{
	DescEncoding:   SectionPreData,
	DescStdStrings: SectionPreData,
	DescSearchPath: SectionPreData,

	DescSchema:             SectionPreData,
	DescExtension:          SectionPreData,
	DescType:               SectionPreData,
	DescShellType:          SectionPreData,
	DescDomain:             SectionPreData,
	DescAggregate:          SectionPreData,
	DescOperator:           SectionPreData,
	DescOperatorClass:      SectionPreData,
	DescOperatorFamily:     SectionPreData,
	DescCollation:          SectionPreData,
	DescConversion:         SectionPreData,
	DescLanguage:           SectionPreData,
	DescProceduralLanguage: SectionPreData,
	DescFDW:                SectionPreData,
	DescServer:             SectionPreData,
	DescUserMapping:        SectionPreData,
	DescCast:               SectionPreData,
	DescTable:              SectionPreData,
	DescSequence:           SectionPreData,
	DescView:               SectionPreData,
	DescFunction:           SectionPreData,
	DescTransform:          SectionPreData,
	DescForeignTable:       SectionPreData,
	DescDefault:            SectionPreData,

	DescTableData:   SectionData,
	DescBlobs:       SectionData,
	DescSequenceSet: SectionData,

	DescIndex:            SectionPostData,
	DescConstraint:       SectionPostData,
	DescCheckConstraint:  SectionPostData,
	DescFKConstraint:     SectionPostData,
	DescTrigger:          SectionPostData,
	DescRule:             SectionPostData,
	DescMaterializedView: SectionPostData,
	DescPolicy:           SectionPostData,
	DescRowSecurity:      SectionPostData,
	DescPublication:      SectionPostData,
	DescSubscription:     SectionPostData,
	DescStatistics:       SectionPostData,

	DescDatabase: SectionNone,
	DescComment:  SectionNone,
	DescACL:      SectionNone,
}

// sectionFor returns the section for desc and whether desc is a known
// descriptor.
func sectionFor(desc string) (Section, bool) {
	s, ok := sectionMapping[desc]
	return s, ok
}

// preferredOrder is the stable total order required within each
// section before the topological-sort remainder. Post-Data appends
// preferredPostDataExtra to this list.
var preferredOrder = []string{
	DescSchema,
	DescExtension,
	DescAggregate,
	DescOperator,
	DescCast,
	DescCollation,
	DescConversion,
	DescLanguage,
	DescFDW,
	DescServer,
	DescDomain,
	DescType,
	DescShellType,
}

var preferredPostDataExtra = []string{
	DescCheckConstraint,
	DescConstraint,
	DescIndex,
}
