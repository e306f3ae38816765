package ome

import (
	"errors"
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"wsiconvert/internal/services"
	"wsiconvert/internal/tiff"
)

const stage = "metadata"

// Document is a parsed OME-XML tree.
type Document struct {
	doc  *etree.Document
	root *etree.Element
}

// Parse reads OME-XML text. The root element must be OME in any namespace.
func Parse(text string) (*Document, error) {
	if strings.TrimSpace(text) == "" {
		return nil, services.Wrap(services.ErrMetadataParse, stage, "parse", "empty ImageDescription", nil)
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromString(text); err != nil {
		return nil, services.Wrap(services.ErrMetadataParse, stage, "parse", "invalid XML", err)
	}
	root := doc.Root()
	if root == nil || root.Tag != "OME" {
		tag := "<none>"
		if root != nil {
			tag = root.FullTag()
		}
		return nil, services.Wrap(services.ErrMetadataParse, stage, "parse", fmt.Sprintf("root element is %s, not OME", tag), nil)
	}
	return &Document{doc: doc, root: root}, nil
}

// Load parses the OME-XML stored in the first IFD of the TIFF at path.
func Load(path string) (*Document, error) {
	text, err := tiff.ReadDescription(path)
	if err != nil {
		return nil, services.Wrap(services.ErrMetadataParse, stage, "read", path, err)
	}
	return Parse(text)
}

// Store replaces the OME-XML of the TIFF at path with text.
func Store(path, text string) error {
	if err := tiff.WriteDescription(path, text); err != nil {
		marker := services.ErrMetadataWrite
		if errors.Is(err, tiff.ErrNotTIFF) || errors.Is(err, tiff.ErrCorrupt) || errors.Is(err, tiff.ErrNoDescription) {
			marker = services.ErrMetadataParse
		}
		return services.Wrap(marker, stage, "write", path, err)
	}
	return nil
}

// Serialize renders the document, including its XML declaration.
func (d *Document) Serialize() (string, error) {
	text, err := d.doc.WriteToString()
	if err != nil {
		return "", services.Wrap(services.ErrMetadataWrite, stage, "serialize", "", err)
	}
	return text, nil
}

// Images returns the declared Image elements in document order.
func (d *Document) Images() []Image {
	elems := d.root.SelectElements("Image")
	images := make([]Image, len(elems))
	for i, el := range elems {
		images[i] = Image{el: el}
	}
	return images
}

// Instruments returns the declared Instrument elements in document order.
func (d *Document) Instruments() []Instrument {
	elems := d.root.SelectElements("Instrument")
	instruments := make([]Instrument, len(elems))
	for i, el := range elems {
		instruments[i] = Instrument{el: el}
	}
	return instruments
}

// StructuredAnnotations returns the annotation block, if present.
func (d *Document) StructuredAnnotations() (Annotations, bool) {
	el := d.root.SelectElement("StructuredAnnotations")
	if el == nil {
		return Annotations{}, false
	}
	return Annotations{el: el}, true
}

// Strip removes every Image's AcquisitionDate and the StructuredAnnotations
// block. It reports whether the document changed.
func (d *Document) Strip() bool {
	changed := false
	for _, img := range d.Images() {
		if img.ClearAcquisitionDate() {
			changed = true
		}
	}
	for {
		el := d.root.SelectElement("StructuredAnnotations")
		if el == nil {
			break
		}
		d.root.RemoveChild(el)
		changed = true
	}
	return changed
}
