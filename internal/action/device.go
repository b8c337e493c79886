// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package action

import "grimm.is/midonet/internal/topology"

// DeviceActionTag identifies the kind of output a device processor
// produced for the coordinator's Action Interpreter to advance.
type DeviceActionTag int

const (
	ToPort DeviceActionTag = iota
	ToPortSet
	Fork
	Consumed
	Drop
	ErrorDrop
	NotIPv4
	DoDatapathAction
)

func (t DeviceActionTag) String() string {
	switch t {
	case ToPort:
		return "to-port"
	case ToPortSet:
		return "to-port-set"
	case Fork:
		return "fork"
	case Consumed:
		return "consumed"
	case Drop:
		return "drop"
	case ErrorDrop:
		return "error-drop"
	case NotIPv4:
		return "not-ipv4"
	case DoDatapathAction:
		return "do-datapath-action"
	default:
		return "unknown"
	}
}

// DeviceAction is the tagged union a device processor's process(ctx) emits.
type DeviceAction struct {
	Tag DeviceActionTag

	Port      topology.PortID
	PortSetID topology.PortSetID
	Children  []DeviceAction

	// Temporary distinguishes a retry-later Drop from a permanent one.
	Temporary bool

	Datapath DatapathAction

	// PendingVLANPush, if non-nil, is pushed onto the match immediately
	// before this specific ToPort branch is interpreted, rather than
	// before the device processor returns. A Fork's children share one
	// match at fork time (the coordinator clones it per branch); a push
	// applied eagerly by the device processor would otherwise bleed into
	// every sibling branch instead of only the one that needs it.
	PendingVLANPush *uint16
}

func ToPortAction(id topology.PortID) DeviceAction {
	return DeviceAction{Tag: ToPort, Port: id}
}

// ToPortWithVLANPushAction is a ToPort action that pushes vlanID onto the
// match right before this branch is interpreted (spec §4.4 VLAN-bridge
// trunk fork, where a flood sibling must not observe the push).
func ToPortWithVLANPushAction(id topology.PortID, vlanID uint16) DeviceAction {
	v := vlanID
	return DeviceAction{Tag: ToPort, Port: id, PendingVLANPush: &v}
}

func ToPortSetAction(id topology.PortSetID) DeviceAction {
	return DeviceAction{Tag: ToPortSet, PortSetID: id}
}

func ForkAction(children ...DeviceAction) DeviceAction {
	return DeviceAction{Tag: Fork, Children: children}
}

func ConsumedAction() DeviceAction {
	return DeviceAction{Tag: Consumed}
}

func DropAction(temporary bool) DeviceAction {
	return DeviceAction{Tag: Drop, Temporary: temporary}
}

func ErrorDropAction() DeviceAction {
	return DeviceAction{Tag: ErrorDrop}
}

func NotIPv4Action() DeviceAction {
	return DeviceAction{Tag: NotIPv4}
}

func DoDatapathActionAction(a DatapathAction) DeviceAction {
	return DeviceAction{Tag: DoDatapathAction, Datapath: a}
}
