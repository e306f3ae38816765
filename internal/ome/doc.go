// Package ome exposes typed views over the OME-XML document embedded in an
// OME-TIFF's ImageDescription.
//
// Only the elements the conversion pipeline reads or edits are modelled:
// Images with their AcquisitionDate and Pixels, Instruments with their
// Microscope and Objectives, and the StructuredAnnotations block. Everything
// else stays in the underlying etree document and is written back unchanged,
// including namespace declarations and element order.
package ome
