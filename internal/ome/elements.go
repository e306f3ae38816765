package ome

import (
	"strings"

	"github.com/beevik/etree"
)

// Image is a view over an OME Image element.
type Image struct {
	el *etree.Element
}

func (i Image) ID() string   { return attr(i.el, "ID") }
func (i Image) Name() string { return attr(i.el, "Name") }

// AcquisitionDate returns the trimmed acquisition timestamp text.
func (i Image) AcquisitionDate() (string, bool) {
	el := i.el.SelectElement("AcquisitionDate")
	if el == nil {
		return "", false
	}
	return strings.TrimSpace(el.Text()), true
}

// ClearAcquisitionDate removes every AcquisitionDate child and reports
// whether one existed.
func (i Image) ClearAcquisitionDate() bool {
	removed := false
	for _, el := range i.el.SelectElements("AcquisitionDate") {
		i.el.RemoveChild(el)
		removed = true
	}
	return removed
}

// Pixels returns the image's Pixels element.
func (i Image) Pixels() (Pixels, bool) {
	el := i.el.SelectElement("Pixels")
	if el == nil {
		return Pixels{}, false
	}
	return Pixels{el: el}, true
}

// Pixels is a view over an OME Pixels element. Accessors return the raw
// attribute text, empty when absent.
type Pixels struct {
	el *etree.Element
}

func (p Pixels) ID() string                { return attr(p.el, "ID") }
func (p Pixels) DimensionOrder() string    { return attr(p.el, "DimensionOrder") }
func (p Pixels) Type() string              { return attr(p.el, "Type") }
func (p Pixels) BigEndian() string         { return attr(p.el, "BigEndian") }
func (p Pixels) PhysicalSizeX() string     { return attr(p.el, "PhysicalSizeX") }
func (p Pixels) PhysicalSizeXUnit() string { return attr(p.el, "PhysicalSizeXUnit") }
func (p Pixels) PhysicalSizeY() string     { return attr(p.el, "PhysicalSizeY") }
func (p Pixels) PhysicalSizeYUnit() string { return attr(p.el, "PhysicalSizeYUnit") }
func (p Pixels) PhysicalSizeZ() string     { return attr(p.el, "PhysicalSizeZ") }
func (p Pixels) PhysicalSizeZUnit() string { return attr(p.el, "PhysicalSizeZUnit") }
func (p Pixels) SizeC() string             { return attr(p.el, "SizeC") }
func (p Pixels) SizeT() string             { return attr(p.el, "SizeT") }
func (p Pixels) SizeX() string             { return attr(p.el, "SizeX") }
func (p Pixels) SizeY() string             { return attr(p.el, "SizeY") }
func (p Pixels) SizeZ() string             { return attr(p.el, "SizeZ") }

// Planes returns the number of declared Plane elements.
func (p Pixels) Planes() int {
	return len(p.el.SelectElements("Plane"))
}

// Instrument is a view over an OME Instrument element.
type Instrument struct {
	el *etree.Element
}

func (i Instrument) ID() string { return attr(i.el, "ID") }

// Microscope returns the instrument's Microscope element.
func (i Instrument) Microscope() (Microscope, bool) {
	el := i.el.SelectElement("Microscope")
	if el == nil {
		return Microscope{}, false
	}
	return Microscope{el: el}, true
}

// Objectives returns the instrument's Objective elements in order.
func (i Instrument) Objectives() []Objective {
	elems := i.el.SelectElements("Objective")
	out := make([]Objective, len(elems))
	for idx, el := range elems {
		out[idx] = Objective{el: el}
	}
	return out
}

type Microscope struct {
	el *etree.Element
}

func (m Microscope) Model() string        { return attr(m.el, "Model") }
func (m Microscope) Manufacturer() string { return attr(m.el, "Manufacturer") }

type Objective struct {
	el *etree.Element
}

func (o Objective) ID() string                   { return attr(o.el, "ID") }
func (o Objective) Model() string                { return attr(o.el, "Model") }
func (o Objective) NominalMagnification() string { return attr(o.el, "NominalMagnification") }
func (o Objective) LensNA() string               { return attr(o.el, "LensNA") }
func (o Objective) WorkingDistance() string      { return attr(o.el, "WorkingDistance") }
func (o Objective) WorkingDistanceUnit() string  { return attr(o.el, "WorkingDistanceUnit") }
func (o Objective) Immersion() string            { return attr(o.el, "Immersion") }

// Annotations is a view over the StructuredAnnotations block.
type Annotations struct {
	el *etree.Element
}

// Len counts the annotation children.
func (a Annotations) Len() int {
	return len(a.el.ChildElements())
}

func attr(el *etree.Element, key string) string {
	if el == nil {
		return ""
	}
	return strings.TrimSpace(el.SelectAttrValue(key, ""))
}
