package parser

import (
	"encoding/xml"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// ErrNoManifest is returned when a content package has no imsmanifest.xml.
var ErrNoManifest = errors.New("imsmanifest.xml not found")

// Public manifest types in parser (no import of qti)
type Manifest struct {
	Resources []ManifestResource
}

type ManifestResource struct {
	Identifier string
	Href       string
	Type       string
	Files      []string
}

// Items returns the hrefs of item resources (imsqti_item_*).
func (m Manifest) Items() []string {
	var out []string
	for _, r := range m.Resources {
		if strings.HasPrefix(strings.ToLower(r.Type), "imsqti_item") {
			out = append(out, r.Href)
		}
	}
	return out
}

type imsManifest struct {
	XMLName   xml.Name      `xml:"manifest"`
	Resources []imsResource `xml:"resources>resource"`
}
type imsResource struct {
	Identifier string    `xml:"identifier,attr"`
	Href       string    `xml:"href,attr"`
	Type       string    `xml:"type,attr"`
	Files      []imsFile `xml:"file"`
}
type imsFile struct {
	Href string `xml:"href,attr"`
}

// ParseManifest reads the package manifest under base.
func ParseManifest(base string) (Manifest, error) {
	paths := []string{"imsmanifest.xml", "manifest.xml"}
	var mfPath string
	for _, p := range paths {
		if _, err := os.Stat(filepath.Join(base, p)); err == nil {
			mfPath = filepath.Join(base, p)
			break
		}
	}
	if mfPath == "" {
		return Manifest{}, ErrNoManifest
	}

	b, err := os.ReadFile(mfPath)
	if err != nil {
		return Manifest{}, err
	}

	var mf imsManifest
	if err := xml.Unmarshal(b, &mf); err != nil {
		return Manifest{}, err
	}

	var out Manifest
	for _, r := range mf.Resources {
		res := ManifestResource{
			Identifier: r.Identifier,
			Href:       r.Href,
			Type:       r.Type,
		}
		for _, f := range r.Files {
			res.Files = append(res.Files, f.Href)
		}
		out.Resources = append(out.Resources, res)
	}
	return out, nil
}
