package refimport

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// datFile is the Logiqx XML layout shared by No-Intro, TOSEC, and Redump
// exports.
type datFile struct {
	XMLName xml.Name  `xml:"datafile"`
	Header  datHeader `xml:"header"`
	Games   []datGame `xml:"game"`
}

type datHeader struct {
	Name        string `xml:"name"`
	Description string `xml:"description"`
	Version     string `xml:"version"`
	Homepage    string `xml:"homepage"`
}

type datGame struct {
	Name        string   `xml:"name,attr"`
	CloneOf     string   `xml:"cloneof,attr"`
	Description string   `xml:"description"`
	ROMs        []datROM `xml:"rom"`
}

type datROM struct {
	Name   string `xml:"name,attr"`
	Size   int64  `xml:"size,attr"`
	CRC    string `xml:"crc,attr"`
	MD5    string `xml:"md5,attr"`
	SHA1   string `xml:"sha1,attr"`
	Status string `xml:"status,attr"`
}

// parseDAT decodes one Logiqx XML document.
func parseDAT(r io.Reader) (*datFile, error) {
	decoder := xml.NewDecoder(r)
	var file datFile
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode dat: %w", err)
	}
	if strings.TrimSpace(file.Header.Name) == "" {
		return nil, fmt.Errorf("dat header has no name")
	}
	return &file, nil
}

// detectVocabulary guesses the naming vocabulary from header hints so tag
// parsing uses the right region and status maps.
func detectVocabulary(header datHeader) string {
	haystack := strings.ToLower(header.Name + " " + header.Homepage + " " + header.Description)
	switch {
	case strings.Contains(haystack, "tosec"):
		return "tosec"
	case strings.Contains(haystack, "goodtools") || strings.Contains(haystack, "good tools"):
		return "goodtools"
	default:
		return "nointro"
	}
}
