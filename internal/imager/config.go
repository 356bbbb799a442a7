package imager

import (
	"encoding/xml"
	"os"
	"strconv"
	"strings"

	"codeberg.org/mutker/irsampler/internal/errors"
)

// Config is the subset of the vendor XML configuration the sampler uses.
type Config struct {
	Path      string
	Serial    int
	FrameRate float64
	// Raw is the file content, archived with every output file.
	Raw []byte
}

type xmlConfig struct {
	Serial    string `xml:"serial"`
	FrameRate string `xml:"framerate"`
}

// ReadConfig parses the <serial> and <framerate> elements of the vendor XML
// file at path. Both are read as decimals and truncated, the way the vendor
// tools write them ("18072067.0", "27.0").
func ReadConfig(path string) (*Config, error) {
	errFactory := errors.New()

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errFactory.Wrap(ErrConfigRead, err)
	}

	var doc xmlConfig
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return nil, errFactory.WithData(ErrConfigParse, struct {
			Path  string
			Error string
		}{path, err.Error()})
	}

	serial, err := parseTruncated(doc.Serial)
	if err != nil {
		return nil, errFactory.WithData(ErrConfigParse, struct {
			Path    string
			Element string
			Value   string
		}{path, "serial", doc.Serial})
	}
	fps, err := parseTruncated(doc.FrameRate)
	if err != nil || fps <= 0 {
		return nil, errFactory.WithData(ErrConfigParse, struct {
			Path    string
			Element string
			Value   string
		}{path, "framerate", doc.FrameRate})
	}

	return &Config{
		Path:      path,
		Serial:    serial,
		FrameRate: float64(fps),
		Raw:       raw,
	}, nil
}

func parseTruncated(s string) (int, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}

	return int(f), nil
}
