// Package shielding holds the canonical catalog of shielding materials and
// their dose attenuation factors.
//
// A factor is the fraction of the unshielded dose that passes through the
// material, so lower is more protective. Factors are compiled from NASA
// TP-3473 and later shielding studies and do not depend on thickness.
package shielding

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownMaterial is returned when a material identifier is not in the catalog.
var ErrUnknownMaterial = errors.New("unknown shielding material")

// Canonical material identifiers.
const (
	None                   = "None"
	LiquidHydrogen         = "Liquid Hydrogen"
	LithiumHydride         = "Lithium Hydride (LiH)"
	LiquidMethane          = "Liquid Methane"
	Water                  = "Water"
	Polyethylene           = "Polyethylene"
	BPEI20                 = "B-PEI 20 wt%"
	BPEI15                 = "B-PEI 15 wt%"
	BPEI10                 = "B-PEI 10 wt%"
	BPEI5                  = "B-PEI 5 wt%"
	PTFE                   = "PTFE (Teflon)"
	Polyetherimide         = "Polyetherimide"
	BPolysulfone10         = "B-Polysulfone 10 wt%"
	BPolyimide10           = "B-Polyimide 10 wt%"
	Polysulfone            = "Polysulfone"
	Aluminum               = "Aluminum"
	Polyimide              = "Polyimide (Kapton)"
	PureEpoxy              = "Pure Epoxy"
	RegolithEpoxyComposite = "Regolith/Epoxy Composite"
	LunarRegolith          = "Lunar Regolith"
	Magnesium              = "Magnesium"
	Iron                   = "Iron"
	Copper                 = "Copper"
	Lead                   = "Lead"
)

// DefaultMaterial is the material preselected when a caller does not choose one.
const DefaultMaterial = Polyethylene

// Material is a single catalog entry.
type Material struct {
	Name   string  `json:"name"`
	Factor float64 `json:"factor"`
}

// materials is the catalog in presentation order. Values are literal and
// must not be derived.
var materials = []Material{
	{None, 1.00},
	{LiquidHydrogen, 0.30},
	{LithiumHydride, 0.35},
	{LiquidMethane, 0.38},
	{Water, 0.40},
	{Polyethylene, 0.50},
	{BPEI20, 0.50},
	{BPEI15, 0.51},
	{BPEI10, 0.53},
	{BPEI5, 0.55},
	{PTFE, 0.60},
	{Polyetherimide, 0.60},
	{BPolysulfone10, 0.60},
	{BPolyimide10, 0.62},
	{Polysulfone, 0.65},
	{Aluminum, 0.70},
	{Polyimide, 0.70},
	{PureEpoxy, 0.70},
	{RegolithEpoxyComposite, 0.72},
	{LunarRegolith, 0.75},
	{Magnesium, 0.78},
	{Iron, 0.80},
	{Copper, 0.85},
	{Lead, 0.95},
}

// legacyNames maps spellings used by older dashboard variants onto
// canonical identifiers. Keys are lowercased.
var legacyNames = map[string]string{
	"b-pei (boron-pei 20 wt %)":         BPEI20,
	"b-pei (20 wt %)":                   BPEI20,
	"boron-loaded polyetherimide (20%)": BPEI20,
	"b-pei (15 wt %)":                   BPEI15,
	"boron-loaded polyetherimide (15%)": BPEI15,
	"b-pei (10 wt %)":                   BPEI10,
	"boron-loaded polyetherimide (10%)": BPEI10,
	"b-pei (5 wt %)":                    BPEI5,
	"boron-loaded polyetherimide (5%)":  BPEI5,
	"b-polysulfone (10 wt %)":           BPolysulfone10,
	"boron-loaded polysulfone (10%)":    BPolysulfone10,
	"b-polyimide (10 wt %)":             BPolyimide10,
	"boron-loaded polyimide (10%)":      BPolyimide10,
	"lih":                               LithiumHydride,
	"lithium hydride":                   LithiumHydride,
	"teflon":                            PTFE,
	"kapton":                            Polyimide,
	"aluminium":                         Aluminum,
	"regolith-epoxy composite":          RegolithEpoxyComposite,
	"lunar regolith/epoxy composite":    RegolithEpoxyComposite,
	"none (unshielded)":                 None,
	"unshielded":                        None,
}

// Catalog is a read-only view over the shielding materials. The zero value
// is not usable; use Default.
type Catalog struct {
	entries []Material
	index   map[string]int
	folded  map[string]int
}

var defaultCatalog = newCatalog(materials)

// Default returns the process-wide canonical catalog.
func Default() *Catalog {
	return defaultCatalog
}

func newCatalog(entries []Material) *Catalog {
	c := &Catalog{
		entries: entries,
		index:   make(map[string]int, len(entries)),
		folded:  make(map[string]int, len(entries)+len(legacyNames)),
	}
	for i, m := range entries {
		c.index[m.Name] = i
		c.folded[strings.ToLower(m.Name)] = i
	}
	for alias, name := range legacyNames {
		if i, ok := c.index[name]; ok {
			c.folded[alias] = i
		}
	}
	return c
}

// Len returns the number of catalog entries.
func (c *Catalog) Len() int {
	return len(c.entries)
}

// All returns a copy of the catalog in presentation order.
func (c *Catalog) All() []Material {
	out := make([]Material, len(c.entries))
	copy(out, c.entries)
	return out
}

// Names returns the canonical identifiers in presentation order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.entries))
	for i, m := range c.entries {
		names[i] = m.Name
	}
	return names
}

// Lookup returns the entry for an exact canonical identifier.
func (c *Catalog) Lookup(id string) (Material, error) {
	i, ok := c.index[id]
	if !ok {
		return Material{}, fmt.Errorf("%w: %q", ErrUnknownMaterial, id)
	}
	return c.entries[i], nil
}

// AttenuationOf returns the attenuation factor for an exact canonical identifier.
func (c *Catalog) AttenuationOf(id string) (float64, error) {
	m, err := c.Lookup(id)
	if err != nil {
		return 0, err
	}
	return m.Factor, nil
}

// Resolve is the lenient form of Lookup used at input boundaries. It accepts
// canonical names in any case and the legacy spellings from older variants,
// and always returns the canonical entry.
func (c *Catalog) Resolve(id string) (Material, error) {
	if i, ok := c.index[id]; ok {
		return c.entries[i], nil
	}
	key := strings.ToLower(strings.TrimSpace(id))
	if i, ok := c.folded[key]; ok {
		return c.entries[i], nil
	}
	return Material{}, fmt.Errorf("%w: %q", ErrUnknownMaterial, id)
}

// AttenuationOf looks up a factor in the default catalog.
func AttenuationOf(id string) (float64, error) {
	return defaultCatalog.AttenuationOf(id)
}
