package divide

type Item struct {
	ParentIndex int
	Index       int
	Begin       int64
	Len         int64
}

// End returns the offset right after the item.
func (i Item) End() int64 {
	return i.Begin + i.Len
}

// Divide is a generic function to recursively divide totalSize into smaller items of given sizes,
// in our case, we use it to divide the torrent stream into pieces.
// Begin is relative to the parent item.
// Returns unbuffered chan of items, so reader should read all items to prevent goroutine leak
func Divide(totalSize int64, sizes []int64) <-chan Item {
	items := make(chan Item)
	go func() {
		divide(items, 0, totalSize, sizes)
		close(items)
	}()
	return items
}

func divide(items chan<- Item, parentIndex int, totalSize int64, sizes []int64) {
	if len(sizes) == 0 {
		panic("empty sizes")
	}
	size := sizes[0]
	if size <= 0 {
		panic("non-positive size")
	}
	sizes = sizes[1:]
	itemsNum := totalSize / size
	if totalSize%size != 0 {
		itemsNum++
	}
	for i := int64(0); i < itemsNum; i++ {
		newSize := size
		isLastItem := i == itemsNum-1
		if isLastItem {
			newSize = totalSize - i*newSize
		}
		if len(sizes) != 0 {
			divide(items, int(i), newSize, sizes)
		} else {
			items <- Item{
				ParentIndex: parentIndex,
				Index:       int(i),
				Begin:       i * size,
				Len:         newSize,
			}
		}
	}
}
