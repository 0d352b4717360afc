package coco

// ImageIndex maps image ids to their entries.
func (d *Dataset) ImageIndex() (ret map[int]Image) {
	ret = make(map[int]Image, len(d.Images))
	for _, img := range d.Images {
		ret[img.ID] = img
	}

	return
}

// AnnotationsByImage groups annotations by image id, keeping the listed order
// within each group.
func (d *Dataset) AnnotationsByImage() (ret map[int][]Annotation) {
	ret = make(map[int][]Annotation)
	for _, a := range d.Annotations {
		ret[a.ImageID] = append(ret[a.ImageID], a)
	}

	return
}

// OrphanAnnotations returns the annotations whose image id matches no image.
func (d *Dataset) OrphanAnnotations() (ret []Annotation) {
	images := d.ImageIndex()
	for _, a := range d.Annotations {
		if _, ok := images[a.ImageID]; !ok {
			ret = append(ret, a)
		}
	}

	return
}

// CategoryByName looks a category up by its name.
func (d *Dataset) CategoryByName(name string) (Category, bool) {
	for _, c := range d.Categories {
		if c.Name == name {
			return c, true
		}
	}

	return Category{}, false
}

// CategoryByID looks a category up by its id.
func (d *Dataset) CategoryByID(id int) (Category, bool) {
	for _, c := range d.Categories {
		if c.ID == id {
			return c, true
		}
	}

	return Category{}, false
}
