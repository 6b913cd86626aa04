package threshold

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrInvalidSpec is returned when a threshold definition breaks a catalog invariant
var ErrInvalidSpec = errors.New("invalid threshold spec")

// Catalog is an immutable set of threshold specs keyed by (domain, metric)
type Catalog struct {
	specs map[Key]Spec
}

// NewCatalog validates specs and builds a catalog from them
func NewCatalog(specs []Spec) (*Catalog, error) {
	c := &Catalog{specs: make(map[Key]Spec, len(specs))}

	for _, spec := range specs {
		if err := CheckSpec(spec); err != nil {
			return nil, err
		}
		if _, exists := c.specs[spec.Key()]; exists {
			return nil, fmt.Errorf("%w: duplicate definition for %s", ErrInvalidSpec, spec.Key())
		}
		c.specs[spec.Key()] = spec
	}

	return c, nil
}

// CheckSpec verifies a single spec: ids present, known direction, finite thresholds
// ordered consistently with the direction.
func CheckSpec(spec Spec) error {
	key := spec.Key()

	if spec.DomainID == "" || spec.MetricName == "" {
		return fmt.Errorf("%w: domain and metric are required (%s)", ErrInvalidSpec, key)
	}

	if !spec.Direction.Valid() {
		return fmt.Errorf("%w: %s: unknown direction %q", ErrInvalidSpec, key, spec.Direction)
	}

	for _, v := range []float64{spec.Target, spec.Warning, spec.Critical} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s: thresholds must be finite", ErrInvalidSpec, key)
		}
	}

	switch spec.Direction {
	case LowerIsBetter:
		if !(spec.Target <= spec.Warning && spec.Warning <= spec.Critical) {
			return fmt.Errorf("%w: %s: lower_is_better requires target <= warning <= critical (got %g, %g, %g)",
				ErrInvalidSpec, key, spec.Target, spec.Warning, spec.Critical)
		}
	case HigherIsBetter:
		if !(spec.Target >= spec.Warning && spec.Warning >= spec.Critical) {
			return fmt.Errorf("%w: %s: higher_is_better requires target >= warning >= critical (got %g, %g, %g)",
				ErrInvalidSpec, key, spec.Target, spec.Warning, spec.Critical)
		}
	}

	return nil
}

// Lookup returns the spec for (domainID, metricName) if the metric is monitored
func (c *Catalog) Lookup(domainID, metricName string) (Spec, bool) {
	spec, ok := c.specs[Key{DomainID: domainID, MetricName: metricName}]
	return spec, ok
}

// Len returns the number of monitored metrics
func (c *Catalog) Len() int {
	return len(c.specs)
}

// Domains returns the sorted set of domain ids in the catalog
func (c *Catalog) Domains() []string {
	seen := make(map[string]struct{})
	for key := range c.specs {
		seen[key.DomainID] = struct{}{}
	}

	domains := make([]string, 0, len(seen))
	for d := range seen {
		domains = append(domains, d)
	}
	sort.Strings(domains)
	return domains
}

// Specs returns all specs ordered by domain then metric
func (c *Catalog) Specs() []Spec {
	specs := make([]Spec, 0, len(c.specs))
	for _, spec := range c.specs {
		specs = append(specs, spec)
	}
	sort.Slice(specs, func(i, j int) bool {
		if specs[i].DomainID != specs[j].DomainID {
			return specs[i].DomainID < specs[j].DomainID
		}
		return specs[i].MetricName < specs[j].MetricName
	})
	return specs
}

// DomainSpecs returns the specs of a single domain ordered by metric
func (c *Catalog) DomainSpecs(domainID string) []Spec {
	var specs []Spec
	for _, spec := range c.Specs() {
		if spec.DomainID == domainID {
			specs = append(specs, spec)
		}
	}
	return specs
}

// Classify maps a value onto a status using the spec's thresholds.
// Boundaries are inclusive on the compliant side.
func Classify(spec Spec, value float64) Status {
	if spec.Direction == HigherIsBetter {
		switch {
		case value >= spec.Target:
			return Compliant
		case value >= spec.Warning:
			return Warning
		case value >= spec.Critical:
			return Violation
		default:
			return Critical
		}
	}

	switch {
	case value <= spec.Target:
		return Compliant
	case value <= spec.Warning:
		return Warning
	case value <= spec.Critical:
		return Violation
	default:
		return Critical
	}
}
