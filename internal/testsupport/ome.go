package testsupport

import (
	"fmt"
	"strings"
)

// OMEOptions shapes the document SampleOMEXML returns.
type OMEOptions struct {
	Images           int
	Instruments      int
	Planes           int
	AcquisitionDate  string
	WithAnnotations  bool
	WithoutPixelSize bool
}

// DefaultOME returns options for a typical brightfield slide export.
func DefaultOME() OMEOptions {
	return OMEOptions{
		Images:          2,
		Instruments:     1,
		Planes:          3,
		AcquisitionDate: "2023-04-13T09:30:00",
		WithAnnotations: true,
	}
}

// SampleOMEXML renders an OME-XML document resembling raw2ometiff output for
// a vendor slide.
func SampleOMEXML(opts OMEOptions) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	sb.WriteString(`<OME xmlns="http://www.openmicroscopy.org/Schemas/OME/2016-06" ` +
		`xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" ` +
		`Creator="OME Bio-Formats 6.11.1" UUID="urn:uuid:6f6c1a8e-0000-4000-8000-000000000001" ` +
		`xsi:schemaLocation="http://www.openmicroscopy.org/Schemas/OME/2016-06 http://www.openmicroscopy.org/Schemas/OME/2016-06/ome.xsd">`)
	for i := 0; i < opts.Instruments; i++ {
		fmt.Fprintf(&sb, `<Instrument ID="Instrument:%d">`, i)
		sb.WriteString(`<Microscope Manufacturer="Akoya" Model="Vectra Polaris"/>`)
		fmt.Fprintf(&sb, `<Objective ID="Objective:%d:0" Model="Plan Apo 20x" NominalMagnification="20.0" LensNA="0.75" WorkingDistance="1.0" WorkingDistanceUnit="mm" Immersion="Air"/>`, i)
		sb.WriteString(`</Instrument>`)
	}
	for i := 0; i < opts.Images; i++ {
		fmt.Fprintf(&sb, `<Image ID="Image:%d" Name="slide #%d">`, i, i+1)
		if opts.AcquisitionDate != "" {
			fmt.Fprintf(&sb, `<AcquisitionDate>%s</AcquisitionDate>`, opts.AcquisitionDate)
		}
		if opts.Instruments > 0 {
			sb.WriteString(`<InstrumentRef ID="Instrument:0"/><ObjectiveSettings ID="Objective:0:0"/>`)
		}
		sizeX, sizeY := 46080>>i, 32768>>i
		pixelSize := ` PhysicalSizeX="0.4977" PhysicalSizeXUnit="µm" PhysicalSizeY="0.4977" PhysicalSizeYUnit="µm"`
		if opts.WithoutPixelSize {
			pixelSize = ""
		}
		fmt.Fprintf(&sb, `<Pixels ID="Pixels:%d" BigEndian="false" DimensionOrder="XYCZT" Interleaved="true"%s SignificantBits="8" SizeC="3" SizeT="1" SizeX="%d" SizeY="%d" SizeZ="1" Type="uint8">`,
			i, pixelSize, sizeX, sizeY)
		fmt.Fprintf(&sb, `<Channel ID="Channel:%d:0" SamplesPerPixel="3"><LightPath/></Channel>`, i)
		fmt.Fprintf(&sb, `<TiffData IFD="%d" PlaneCount="1"/>`, i)
		for p := 0; p < opts.Planes; p++ {
			fmt.Fprintf(&sb, `<Plane TheC="%d" TheT="0" TheZ="0"/>`, p)
		}
		sb.WriteString(`</Pixels>`)
		if opts.WithAnnotations {
			sb.WriteString(`<AnnotationRef ID="Annotation:0"/>`)
		}
		sb.WriteString(`</Image>`)
	}
	if opts.WithAnnotations {
		sb.WriteString(`<StructuredAnnotations>`)
		sb.WriteString(`<XMLAnnotation ID="Annotation:0" Namespace="openmicroscopy.org/OriginalMetadata"><Value>`)
		sb.WriteString(`<OriginalMetadata><Key>PatientName</Key><Value>DOE^JANE</Value></OriginalMetadata>`)
		sb.WriteString(`</Value></XMLAnnotation>`)
		sb.WriteString(`<CommentAnnotation ID="Annotation:1"><Value>scanned 2023-04-13 by operator 7</Value></CommentAnnotation>`)
		sb.WriteString(`</StructuredAnnotations>`)
	}
	sb.WriteString(`</OME>`)
	return sb.String()
}
