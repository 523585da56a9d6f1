// Package cluster defines the Dishwasher Mode and On/Off cluster objects used
// by the mode conformance cases: IDs, attribute and command descriptors,
// status codes, and decoding of attribute values into typed structs.
package cluster

import "fmt"

// ID is a cluster identifier.
type ID uint32

// AttributeID is an attribute identifier within a cluster.
type AttributeID uint32

// CommandID is a command identifier within a cluster.
type CommandID uint32

// Cluster identifiers.
const (
	OnOffID          ID = 0x0006
	DishwasherModeID ID = 0x0059
)

// Dishwasher Mode attributes.
const (
	AttrSupportedModes AttributeID = 0x0000
	AttrCurrentMode    AttributeID = 0x0001
	AttrStartUpMode    AttributeID = 0x0002
	AttrOnMode         AttributeID = 0x0003
)

// On/Off attributes.
const (
	AttrOnOff        AttributeID = 0x0000
	AttrStartUpOnOff AttributeID = 0x4003
)

// Dishwasher Mode commands.
const (
	CmdChangeToMode         CommandID = 0x00
	CmdChangeToModeResponse CommandID = 0x01
)

// Attribute describes one attribute of a cluster.
type Attribute struct {
	Cluster  ID
	ID       AttributeID
	Name     string
	Nullable bool
	Writable bool
}

// String returns "Cluster.Attribute".
func (a Attribute) String() string {
	return fmt.Sprintf("%s.%s", a.Cluster, a.Name)
}

// Command describes one command of a cluster.
type Command struct {
	Cluster ID
	ID      CommandID
	Name    string
}

// String returns "Cluster.Command".
func (c Command) String() string {
	return fmt.Sprintf("%s.%s", c.Cluster, c.Name)
}

// Attribute and command descriptors.
var (
	SupportedModes = Attribute{Cluster: DishwasherModeID, ID: AttrSupportedModes, Name: "SupportedModes"}
	CurrentMode    = Attribute{Cluster: DishwasherModeID, ID: AttrCurrentMode, Name: "CurrentMode"}
	StartUpMode    = Attribute{Cluster: DishwasherModeID, ID: AttrStartUpMode, Name: "StartUpMode", Nullable: true, Writable: true}
	OnMode         = Attribute{Cluster: DishwasherModeID, ID: AttrOnMode, Name: "OnMode", Nullable: true, Writable: true}

	OnOff        = Attribute{Cluster: OnOffID, ID: AttrOnOff, Name: "OnOff"}
	StartUpOnOff = Attribute{Cluster: OnOffID, ID: AttrStartUpOnOff, Name: "StartUpOnOff", Nullable: true, Writable: true}

	ChangeToMode         = Command{Cluster: DishwasherModeID, ID: CmdChangeToMode, Name: "ChangeToMode"}
	ChangeToModeResponse = Command{Cluster: DishwasherModeID, ID: CmdChangeToModeResponse, Name: "ChangeToModeResponse"}
)

var attributes = []Attribute{SupportedModes, CurrentMode, StartUpMode, OnMode, OnOff, StartUpOnOff}

// LookupAttribute finds a known attribute descriptor.
func LookupAttribute(c ID, id AttributeID) (Attribute, bool) {
	for _, a := range attributes {
		if a.Cluster == c && a.ID == id {
			return a, true
		}
	}
	return Attribute{}, false
}

// AttributeByName finds a known attribute by its "Cluster.Attribute" name.
func AttributeByName(name string) (Attribute, bool) {
	for _, a := range attributes {
		if a.String() == name {
			return a, true
		}
	}
	return Attribute{}, false
}

// String returns the cluster name.
func (c ID) String() string {
	switch c {
	case OnOffID:
		return "OnOff"
	case DishwasherModeID:
		return "DishwasherMode"
	default:
		return fmt.Sprintf("Cluster(0x%04X)", uint32(c))
	}
}
