package musicxml

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type containerXML struct {
	Rootfiles []struct {
		FullPath string `xml:"full-path,attr"`
	} `xml:"rootfiles>rootfile"`
}

// ParseFile reads a score from disk, dispatching on the file extension.
// Plain .musicxml/.xml files are decoded directly; .mxl files are opened as
// zip containers and the rootfile named in META-INF/container.xml is decoded.
func ParseFile(path string) (*Document, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mxl":
		return parseContainer(path)
	case ".musicxml", ".xml":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open score: %w", err)
		}
		defer f.Close()
		return Parse(f)
	default:
		return nil, fmt.Errorf("unsupported score format %q", filepath.Ext(path))
	}
}

func parseContainer(path string) (*Document, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open mxl container: %w", err)
	}
	defer zr.Close()

	root, err := containerRootfile(&zr.Reader)
	if err != nil {
		return nil, err
	}

	for _, file := range zr.File {
		if file.Name != root {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("open rootfile %q: %w", root, err)
		}
		defer rc.Close()
		return Parse(rc)
	}
	return nil, fmt.Errorf("rootfile %q not found in container", root)
}

func containerRootfile(zr *zip.Reader) (string, error) {
	for _, file := range zr.File {
		if file.Name != "META-INF/container.xml" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("open container.xml: %w", err)
		}
		defer rc.Close()

		var c containerXML
		if err := xml.NewDecoder(rc).Decode(&c); err != nil {
			return "", fmt.Errorf("decode container.xml: %w", err)
		}
		for _, rf := range c.Rootfiles {
			if rf.FullPath != "" {
				return rf.FullPath, nil
			}
		}
		return "", fmt.Errorf("container.xml lists no rootfile")
	}

	// Some exporters skip META-INF entirely; fall back to the first
	// score-looking entry in the archive.
	for _, file := range zr.File {
		name := strings.ToLower(file.Name)
		if strings.HasSuffix(name, ".xml") || strings.HasSuffix(name, ".musicxml") {
			if !strings.HasPrefix(name, "meta-inf/") {
				return file.Name, nil
			}
		}
	}
	return "", fmt.Errorf("mxl container has no score entry")
}
