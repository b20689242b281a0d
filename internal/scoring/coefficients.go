package scoring

import (
	_ "embed"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"golang.org/x/crypto/blake2b"
)

// ErrInvalidCoefficients is returned when a model file does not match the feature set
var ErrInvalidCoefficients = errors.New("invalid coefficients table")

//go:embed model/bureau_risk.pmml
var samplePMML []byte

// Coefficients is the fixed weight table of the risk model. It is loaded once
// and never modified; the digest identifies the exact file that was loaded.
type Coefficients struct {
	version   string
	intercept float64
	weights   map[string]float64
	digest    string
}

// Version returns the model version declared in the file header
func (c *Coefficients) Version() string { return c.version }

// Intercept returns the constant term
func (c *Coefficients) Intercept() float64 { return c.intercept }

// Digest returns the hex blake2b-256 digest of the source file
func (c *Coefficients) Digest() string { return c.digest }

// Weight returns the coefficient for a feature
func (c *Coefficients) Weight(feature string) float64 { return c.weights[feature] }

// Weights returns a copy of the feature coefficients
func (c *Coefficients) Weights() map[string]float64 {
	out := make(map[string]float64, len(c.weights))
	for k, v := range c.weights {
		out[k] = v
	}
	return out
}

// LoadCoefficients reads a PMML regression table from path, or the embedded
// sample table when path is empty
func LoadCoefficients(path string) (*Coefficients, error) {
	if path == "" {
		return ParseCoefficients(samplePMML)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read coefficients file %s: %w", path, err)
	}
	return ParseCoefficients(data)
}

// SampleCoefficients returns the embedded sample table
func SampleCoefficients() *Coefficients {
	c, err := ParseCoefficients(samplePMML)
	if err != nil {
		panic(err)
	}
	return c
}

// ParseCoefficients parses a PMML 4.x RegressionModel. Every feature must have
// exactly one finite coefficient and no unknown predictor may appear.
func ParseCoefficients(data []byte) (*Coefficients, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("%w: failed to parse XML: %v", ErrInvalidCoefficients, err)
	}

	table := doc.FindElement("//RegressionModel/RegressionTable")
	if table == nil {
		return nil, fmt.Errorf("%w: regression table not found", ErrInvalidCoefficients)
	}
	intercept, err := parseFinite(table.SelectAttrValue("intercept", ""))
	if err != nil {
		return nil, fmt.Errorf("%w: intercept: %v", ErrInvalidCoefficients, err)
	}

	known := make(map[string]struct{}, len(features))
	for _, f := range features {
		known[f.name] = struct{}{}
	}

	weights := make(map[string]float64, len(features))
	for _, p := range table.SelectElements("NumericPredictor") {
		name := strings.TrimSpace(p.SelectAttrValue("name", ""))
		if _, ok := known[name]; !ok {
			return nil, fmt.Errorf("%w: unknown predictor %q", ErrInvalidCoefficients, name)
		}
		if _, dup := weights[name]; dup {
			return nil, fmt.Errorf("%w: duplicate predictor %q", ErrInvalidCoefficients, name)
		}
		w, err := parseFinite(p.SelectAttrValue("coefficient", ""))
		if err != nil {
			return nil, fmt.Errorf("%w: predictor %q: %v", ErrInvalidCoefficients, name, err)
		}
		weights[name] = w
	}
	for _, f := range features {
		if _, ok := weights[f.name]; !ok {
			return nil, fmt.Errorf("%w: missing predictor %q", ErrInvalidCoefficients, f.name)
		}
	}

	version := "unversioned"
	if app := doc.FindElement("//Header/Application"); app != nil {
		if v := app.SelectAttrValue("version", ""); v != "" {
			version = v
		}
	}

	sum := blake2b.Sum256(data)
	return &Coefficients{
		version:   version,
		intercept: intercept,
		weights:   weights,
		digest:    hex.EncodeToString(sum[:]),
	}, nil
}

func parseFinite(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("not a finite number: %s", s)
	}
	return v, nil
}
