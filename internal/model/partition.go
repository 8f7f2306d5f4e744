package model

// Partition names an ItemStore partition.
type Partition string

const (
	// Primary holds items that have been detail-fetched. Entries are permanent.
	Primary Partition = "primary"
	// Related holds items discovered through a related stream but not yet fetched.
	Related Partition = "related"
)

// Partitions lists every partition in persistence order.
var Partitions = []Partition{Primary, Related}

// Valid reports whether p is a known partition.
func (p Partition) Valid() bool {
	return p == Primary || p == Related
}

// String returns the partition name.
func (p Partition) String() string {
	return string(p)
}
