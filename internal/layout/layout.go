// Package layout maps satellite product file names to the remote directory
// they are archived under, e.g.
//
//	S2A_MSIL2A_20210601T101031_N0300_R022_T32TQM_20210601T130405.zip
//	→ Sentinel-2/L2A/T32TQM/2021/06/01
package layout

import (
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/koustreak/blobiface/internal/errs"
)

// ProductType is the mission family a product name belongs to.
type ProductType string

const (
	Sentinel2 ProductType = "s2"
	Sentinel3 ProductType = "s3"
	Landsat   ProductType = "landsat"
)

var (
	sentinel2Pattern = regexp.MustCompile(`S2[ABCD]_MSI(L[12][AC])_(\d{8})T\d{6}_.*_.*_(T\d{2}\D{3})_`)
	sentinel3Pattern = regexp.MustCompile(`S3[ABCD]_([A-Z]{2})_(\d)_[A-Z]{3}____(\d{8})T\d{6}_`)
	landsatPattern   = regexp.MustCompile(`L[CE]0\d_([A-Z0-9]*)_\d{6}_(\d{8})_`)
)

var sentinel3Sensors = map[string]string{
	"OL": "OLCI",
	"SL": "SLSTR",
	"SY": "SYNERGY",
}

// Product holds the fields of a product name that decide its remote directory.
type Product struct {
	Type ProductType

	// Level is the processing level, e.g. "L2A" or "L1".
	Level string

	// Tile is the Sentinel-2 MGRS tile, e.g. "T32TQM".
	Tile string

	// Sensor is the Sentinel-3 instrument, e.g. "OLCI".
	Sensor string

	// Collection is the Landsat collection identifier.
	Collection string

	// Sensed is the acquisition date.
	Sensed time.Time
}

// ParseProductType accepts "s2", "s3" and "landsat" in any case.
func ParseProductType(s string) (ProductType, error) {
	switch t := ProductType(strings.ToLower(strings.TrimSpace(s))); t {
	case Sentinel2, Sentinel3, Landsat:
		return t, nil
	default:
		return "", errs.Newf(errs.ErrKindUnsupported, "%s product type not supported", s)
	}
}

// Parse extracts the layout fields from a product file name or path.
func Parse(name string, productType ProductType) (*Product, error) {
	base := filepath.Base(name)

	switch productType {
	case Sentinel2:
		m := sentinel2Pattern.FindStringSubmatch(base)
		if m == nil {
			return nil, mismatch(name, productType)
		}
		sensed, err := parseDate(m[2], name)
		if err != nil {
			return nil, err
		}
		return &Product{Type: Sentinel2, Level: m[1], Tile: m[3], Sensed: sensed}, nil

	case Sentinel3:
		m := sentinel3Pattern.FindStringSubmatch(base)
		if m == nil {
			return nil, mismatch(name, productType)
		}
		sensed, err := parseDate(m[3], name)
		if err != nil {
			return nil, err
		}
		sensor := m[1]
		if full, ok := sentinel3Sensors[sensor]; ok {
			sensor = full
		}
		return &Product{Type: Sentinel3, Sensor: sensor, Level: "L" + m[2], Sensed: sensed}, nil

	case Landsat:
		m := landsatPattern.FindStringSubmatch(base)
		if m == nil {
			return nil, mismatch(name, productType)
		}
		sensed, err := parseDate(m[2], name)
		if err != nil {
			return nil, err
		}
		return &Product{Type: Landsat, Collection: m[1], Sensed: sensed}, nil

	default:
		return nil, errs.Newf(errs.ErrKindUnsupported, "%s product type not supported", productType)
	}
}

// Dir returns the remote directory of the product. aoi (area of interest)
// is only part of the Sentinel-3 and Landsat layouts and is skipped when empty.
func (p *Product) Dir(aoi string) string {
	var parts []string
	switch p.Type {
	case Sentinel2:
		parts = []string{"Sentinel-2", p.Level, p.Tile}
	case Sentinel3:
		parts = []string{"Sentinel-3", p.Sensor, p.Level, aoi}
	case Landsat:
		parts = []string{"Landsat", p.Collection, aoi}
	}
	parts = append(parts,
		fmt.Sprintf("%d", p.Sensed.Year()),
		fmt.Sprintf("%02d", int(p.Sensed.Month())),
		fmt.Sprintf("%02d", p.Sensed.Day()),
	)
	// path.Join drops the empty aoi segment
	return path.Join(parts...)
}

// Prefix is Parse followed by Dir.
func Prefix(name string, productType ProductType, aoi string) (string, error) {
	p, err := Parse(name, productType)
	if err != nil {
		return "", err
	}
	return p.Dir(aoi), nil
}

func parseDate(yyyymmdd, name string) (time.Time, error) {
	t, err := time.Parse("20060102", yyyymmdd)
	if err != nil {
		return time.Time{}, errs.Wrap(errs.ErrKindInvalidInput,
			fmt.Sprintf("product %q has an invalid sensing date", name), err)
	}
	return t, nil
}

func mismatch(name string, productType ProductType) *errs.Error {
	return errs.Newf(errs.ErrKindInvalidInput, "%q is not a %s product name", name, productType)
}
