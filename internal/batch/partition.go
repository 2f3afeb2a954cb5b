package batch

// DefaultSize is used when a non-positive batch size is requested.
const DefaultSize = 20

// Batch is one consecutive slice of the input paths.
type Batch struct {
	ID     int
	Offset int
	Paths  []string
}

// SongID returns the global id of the path at local index i.
func (b Batch) SongID(i int) int {
	return b.Offset + i
}

// Partition splits paths into consecutive batches of size.
func Partition(paths []string, size int) []Batch {
	if size <= 0 {
		size = DefaultSize
	}
	batches := make([]Batch, 0, (len(paths)+size-1)/size)
	for offset := 0; offset < len(paths); offset += size {
		end := offset + size
		if end > len(paths) {
			end = len(paths)
		}
		batches = append(batches, Batch{
			ID:     len(batches),
			Offset: offset,
			Paths:  paths[offset:end],
		})
	}
	return batches
}
