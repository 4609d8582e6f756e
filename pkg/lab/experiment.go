package lab

import "strconv"

// SeedPlacement is one entry of the canonical initial equipment layout
// supplied by the oracle. X and Y are percentages (0-100) of the canvas
// width/height, origin top-left.
type SeedPlacement struct {
	Name string  `json:"name"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// Experiment is a generated experiment guide.
type Experiment struct {
	Title           string          `json:"title"`
	Objective       string          `json:"objective"`
	Equipment       []string        `json:"equipment"`
	Reagents        []string        `json:"reagents"`
	Steps           []string        `json:"steps"`
	Safety          []string        `json:"safety"`
	CommonErrors    []string        `json:"errors"`
	InitialAssembly []SeedPlacement `json:"initialAssembly"`
}

// EquipmentPrototype is a palette entry the user can drop onto the canvas.
// Prototypes are derived one-to-one from the experiment's equipment list and
// are never stored independently.
type EquipmentPrototype struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Prototypes derives the palette for an experiment.
func (e *Experiment) Prototypes() []EquipmentPrototype {
	protos := make([]EquipmentPrototype, len(e.Equipment))
	for i, name := range e.Equipment {
		// stable within one experiment, re-derived when the experiment changes
		protos[i] = EquipmentPrototype{ID: "proto-" + strconv.Itoa(i), Name: name}
	}
	return protos
}
