package canvas

// Document is the complete drawing state: three sequences in insertion
// order, which is also the stacking order within each kind. A Document is a
// value; every operation returns a fresh Document and never mutates its
// receiver, so history snapshots stay independent.
type Document struct {
	Paths  []Path  `json:"paths"`
	Shapes []Shape `json:"shapes"`
	Texts  []Text  `json:"texts"`
}

// AddPath appends a committed stroke.
func (d Document) AddPath(p Path) Document {
	paths := make([]Path, len(d.Paths), len(d.Paths)+1)
	copy(paths, d.Paths)
	d.Paths = append(paths, p)
	return d
}

// AddShape appends a committed shape.
func (d Document) AddShape(s Shape) Document {
	shapes := make([]Shape, len(d.Shapes), len(d.Shapes)+1)
	copy(shapes, d.Shapes)
	d.Shapes = append(shapes, s)
	return d
}

// UpsertText replaces the text element with a matching id in place, or
// appends when the id is unknown. This is the only non-append mutation and
// models both "finish editing" and "remote text update".
func (d Document) UpsertText(t Text) Document {
	texts := make([]Text, len(d.Texts), len(d.Texts)+1)
	copy(texts, d.Texts)
	for i := range texts {
		if texts[i].Id == t.Id {
			texts[i] = t
			d.Texts = texts
			return d
		}
	}
	d.Texts = append(texts, t)
	return d
}

// RemoveElements drops every element whose id is in ids, across all three
// kinds. Ids not present are ignored.
func (d Document) RemoveElements(ids ...string) Document {
	if len(ids) == 0 {
		return d
	}
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	paths := make([]Path, 0, len(d.Paths))
	for _, p := range d.Paths {
		if !drop[p.Id] {
			paths = append(paths, p)
		}
	}
	shapes := make([]Shape, 0, len(d.Shapes))
	for _, s := range d.Shapes {
		if !drop[s.Id] {
			shapes = append(shapes, s)
		}
	}
	texts := make([]Text, 0, len(d.Texts))
	for _, t := range d.Texts {
		if !drop[t.Id] {
			texts = append(texts, t)
		}
	}

	d.Paths, d.Shapes, d.Texts = paths, shapes, texts
	return d
}

// Clear returns an empty document.
func (d Document) Clear() Document {
	return Document{}
}

// Count returns the total number of elements.
func (d Document) Count() int {
	return len(d.Paths) + len(d.Shapes) + len(d.Texts)
}

// Empty reports whether the document has no elements.
func (d Document) Empty() bool {
	return d.Count() == 0
}

// ContainsId reports whether any element has the given id.
func (d Document) ContainsId(id string) bool {
	for _, p := range d.Paths {
		if p.Id == id {
			return true
		}
	}
	for _, s := range d.Shapes {
		if s.Id == id {
			return true
		}
	}
	_, ok := d.TextById(id)
	return ok
}

// TextById returns the text element with the given id.
func (d Document) TextById(id string) (Text, bool) {
	for _, t := range d.Texts {
		if t.Id == id {
			return t, true
		}
	}
	return Text{}, false
}
