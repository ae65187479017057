package evstest

// Kind is the value type of a property.
type Kind string

// Property kinds.
const (
	KindString Kind = "string"
	KindNumber Kind = "number"
	KindBool   Kind = "bool"
)

// Direction of a port.
type Direction int

// Port directions.
const (
	Input Direction = iota
	Output
)

// PropertySpec declares one property and how values are validated.
type PropertySpec struct {
	Kind    Kind
	Default any
	// Min and Max bound numeric values when Max > Min.
	Min, Max float64
}

// PortSpec declares one port of a module type.
type PortSpec struct {
	Direction  Direction
	DataType   string
	Properties map[string]PropertySpec
}

// ModuleType declares the ports and properties of a module type. Property
// keys are "Category/Property".
type ModuleType struct {
	Ports      map[string]PortSpec
	Properties map[string]PropertySpec
}

// DefaultCatalog returns a small set of module types resembling real EVS
// modules.
func DefaultCatalog() map[string]ModuleType {
	return map[string]ModuleType{
		"titles": {
			Ports: map[string]PortSpec{
				"Output Object": {Direction: Output, DataType: "Renderable"},
			},
			Properties: map[string]PropertySpec{
				"Properties/Title":     {Kind: KindString, Default: ""},
				"Properties/Font Size": {Kind: KindNumber, Default: 20.0, Min: 1, Max: 200},
				"Properties/Visible":   {Kind: KindBool, Default: true},
			},
		},
		"viewer": {
			Ports: map[string]PortSpec{
				"Objects": {Direction: Input, DataType: "Renderable"},
			},
			Properties: map[string]PropertySpec{
				"Properties/Background Color": {Kind: KindString, Default: "White"},
				"View/Scale":                  {Kind: KindNumber, Default: 1.0, Min: 0.001, Max: 1000},
				"View/Azimuth":                {Kind: KindNumber, Default: 180.0, Min: 0, Max: 360},
			},
		},
		"read_evs_field": {
			Ports: map[string]PortSpec{
				"Output Field": {Direction: Output, DataType: "Field"},
			},
			Properties: map[string]PropertySpec{
				"Properties/Filename": {Kind: KindString, Default: ""},
			},
		},
		"explode_and_scale": {
			Ports: map[string]PortSpec{
				"Input Field": {
					Direction: Input,
					DataType:  "Field",
					Properties: map[string]PropertySpec{
						"Properties/Visible": {Kind: KindBool, Default: true},
					},
				},
				"Output Field":  {Direction: Output, DataType: "Field"},
				"Output Object": {Direction: Output, DataType: "Renderable"},
			},
			Properties: map[string]PropertySpec{
				"Properties/Z Scale":   {Kind: KindNumber, Default: 1.0, Min: 0.01, Max: 1000},
				"Properties/Explode X": {Kind: KindNumber, Default: 0.0, Min: -100, Max: 100},
			},
		},
	}
}
