package platenet

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Sample is one entry of a training manifest
type Sample struct {
	// Plate is the ground truth plate string
	Plate string
	// File is the image file name, relative to the image directory
	File string
}

// utf8BOM is stripped from the start of the manifest
const utf8BOM = "\ufeff"

// LoadManifest reads the training manifest from the given text file.  Each
// line holds "plate,filename".
func LoadManifest(file string) ([]Sample, error) {

	// open the file
	f, err := os.Open(file)

	if err != nil {
		return nil, fmt.Errorf("error opening manifest: %w", err)
	}

	defer f.Close()

	return ReadManifest(f)
}

// ReadManifest parses manifest lines from r.  Blank lines are skipped,
// fields are trimmed, and only the plate format is left to the Label
// encoder.
func ReadManifest(r io.Reader) ([]Sample, error) {

	scanner := bufio.NewScanner(r)

	var samples []Sample
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := scanner.Text()

		if lineNo == 1 {
			line = strings.TrimPrefix(line, utf8BOM)
		}

		line = strings.TrimSpace(line)

		if line == "" {
			continue
		}

		plate, file, ok := strings.Cut(line, ",")

		if !ok {
			return nil, fmt.Errorf("manifest line %d: missing ',' separator", lineNo)
		}

		plate = strings.TrimSpace(plate)
		// anything after a second separator is ignored
		file, _, _ = strings.Cut(file, ",")
		file = strings.TrimSpace(file)

		if plate == "" || file == "" {
			return nil, fmt.Errorf("manifest line %d: empty plate or file name", lineNo)
		}

		samples = append(samples, Sample{Plate: plate, File: file})
	}

	// check for errors during scanning
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading manifest: %w", err)
	}

	return samples, nil
}
