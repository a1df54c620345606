package journalfile

// FieldIterator walks the global field chain rooted at the file header.
type FieldIterator struct {
	r    *Reader
	next uint64
	err  error
}

func (r *Reader) Fields() *FieldIterator {
	return &FieldIterator{r: r, next: r.header.FieldChainHead}
}

// Next returns the next field object, or nil once the chain is
// exhausted. Check Err() after a nil result.
func (it *FieldIterator) Next() *FieldObject {
	if it.err != nil || it.next == 0 {
		return nil
	}
	f, err := it.r.Field(it.next)
	if err != nil {
		it.err = err
		return nil
	}
	it.next = f.NextFieldOffset
	return f
}

func (it *FieldIterator) Err() error { return it.err }

// FindField scans the global field chain for a field by name.
func (r *Reader) FindField(name string) (*FieldObject, error) {
	it := r.Fields()
	for f := it.Next(); f != nil; f = it.Next() {
		if f.Name == name {
			return f, nil
		}
	}
	return nil, it.Err()
}

// DataIterator walks the singly-linked chain of data objects belonging
// to one field.
type DataIterator struct {
	r       *Reader
	next    uint64
	scratch []byte
	err     error
}

func (r *Reader) DataObjectsForField(field *FieldObject) *DataIterator {
	return &DataIterator{r: r, next: field.DataChainHead}
}

func (it *DataIterator) Next() *DataObject {
	if it.err != nil || it.next == 0 {
		return nil
	}
	d, err := it.r.Data(it.next, &it.scratch)
	if err != nil {
		it.err = err
		return nil
	}
	it.next = d.NextDataOffset
	return d
}

func (it *DataIterator) Err() error { return it.err }
