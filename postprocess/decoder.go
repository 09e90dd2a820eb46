package postprocess

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/swdee/go-platenet"
	"gonum.org/v1/gonum/floats"
)

// Decoder defines the struct for multi-head plate model post processing
type Decoder struct {
	Params DecoderParams
	// spans is the alphabet index range arg-max is restricted to at each
	// plate position
	spans [platenet.PlateLength]platenet.Range
	// province is the index range of the province subset
	province platenet.Range
	alphabet *platenet.Alphabet
}

// DecoderParams defines the struct containing the parameters to use for
// decoding
type DecoderParams struct {
	// ProvinceAsGlyph renders the first plate position as the province
	// character instead of its number.  The default numeric rendering is the
	// format existing consumers of the service parse, e.g. "0SY123456" for
	// 深SY123456.
	ProvinceAsGlyph bool
}

// NewDecoder returns an instance of the plate decoder
func NewDecoder(p DecoderParams) *Decoder {

	a := platenet.Standard()

	d := &Decoder{
		Params:   p,
		province: a.Range(platenet.Province),
		alphabet: a,
	}

	for pos, rule := range platenet.Policy() {
		d.spans[pos] = a.Span(rule)
	}

	return d
}

// Indices returns the alphabet index chosen at each plate position, the
// arg-max within the characters legal at that position only
func (d *Decoder) Indices(pred platenet.Prediction) (platenet.Label, error) {

	var label platenet.Label

	if err := pred.Validate(); err != nil {
		return label, err
	}

	for pos, vec := range pred {
		span := d.spans[pos]
		label[pos] = span.Start + floats.MaxIdx(vec[span.Start:span.End])
	}

	return label, nil
}

// Decode takes the per position probability vectors of a single plate and
// returns the plate string
func (d *Decoder) Decode(pred platenet.Prediction) (string, error) {

	label, err := d.Indices(pred)

	if err != nil {
		return "", err
	}

	return d.render(label), nil
}

// render writes the chosen indices as a plate string
func (d *Decoder) render(label platenet.Label) string {

	var b strings.Builder

	for pos, idx := range label {
		if pos == 0 && !d.Params.ProvinceAsGlyph {
			b.WriteString(strconv.Itoa(idx - d.province.Start))
			continue
		}

		// idx lies inside the alphabet by construction of the spans
		c, _ := d.alphabet.Char(idx)
		b.WriteRune(c)
	}

	return b.String()
}

// DecodeBatch decodes every prediction in the batch
func (d *Decoder) DecodeBatch(preds []platenet.Prediction) ([]string, error) {

	results := make([]string, len(preds))

	for i, pred := range preds {
		plate, err := d.Decode(pred)

		if err != nil {
			return nil, fmt.Errorf("prediction %d: %w", i, err)
		}

		results[i] = plate
	}

	return results, nil
}
