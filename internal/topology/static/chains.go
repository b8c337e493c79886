// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package static

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"grimm.is/midonet/internal/config"
	"grimm.is/midonet/internal/errors"
	"grimm.is/midonet/internal/rules"
	"grimm.is/midonet/internal/wildcard"
)

// buildChain compiles one fixture chain into a rules.Chain. Each rule's
// match field is a tiny whitespace-separated predicate language so
// fixtures stay plain text instead of Go; see parseCondition for the
// grammar.
func buildChain(cf config.ChainFixture, t *Topology) (*rules.Chain, error) {
	chain := &rules.Chain{ID: idFor("chain", cf.ID)}
	for i, rf := range cf.Rule {
		cond, err := parseCondition(rf.Match)
		if err != nil {
			return nil, errors.Wrapf(err, errors.KindValidation, "rule %d", i)
		}
		action, err := buildAction(rf, t)
		if err != nil {
			return nil, errors.Wrapf(err, errors.KindValidation, "rule %d", i)
		}
		chain.Rules = append(chain.Rules, rules.Rule{
			ID:        fmt.Sprintf("%s/%d", cf.ID, i),
			Condition: cond,
			Action:    action,
		})
	}
	return chain, nil
}

func buildAction(rf config.RuleFixture, t *Topology) (rules.Action, error) {
	switch strings.ToLower(rf.Action) {
	case "accept":
		return rules.Action{Tag: rules.ActionAccept}, nil
	case "drop":
		return rules.Action{Tag: rules.ActionDrop}, nil
	case "reject":
		return rules.Action{Tag: rules.ActionReject}, nil
	case "continue":
		return rules.Action{Tag: rules.ActionContinue}, nil
	case "return":
		return rules.Action{Tag: rules.ActionReturn}, nil
	case "jump":
		if rf.JumpChain == "" {
			return rules.Action{}, errors.New(errors.KindValidation, "jump action requires jump_chain")
		}
		return rules.Action{Tag: rules.ActionJump, JumpTarget: t.chainID(rf.JumpChain)}, nil
	case "nat":
		nat := &rules.NATTransform{}
		if rf.NATNewSrc != "" {
			nat.NewSrcIP = net.ParseIP(rf.NATNewSrc)
		}
		if rf.NATNewDst != "" {
			nat.NewDstIP = net.ParseIP(rf.NATNewDst)
		}
		if rf.NATSrcPort != 0 {
			nat.NewSrcPort = uint16(rf.NATSrcPort)
			nat.RewriteSrcPort = true
		}
		if rf.NATDstPort != 0 {
			nat.NewDstPort = uint16(rf.NATDstPort)
			nat.RewriteDstPort = true
		}
		return rules.Action{Tag: rules.ActionAccept, NAT: nat}, nil
	default:
		return rules.Action{}, errors.Errorf(errors.KindValidation, "unknown rule action %q", rf.Action)
	}
}

// parseCondition compiles a match expression like:
//
//	"ip_proto tcp and dst_port 443"
//	"src_ip 10.0.0.0/8"
//	"" (empty, or "always")
//
// into a rules.Condition. Clauses are ANDed; "or" is not supported by the
// fixture grammar, matching the teacher's preference for small, readable
// configuration surfaces over a general expression language.
func parseCondition(expr string) (rules.Condition, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" || strings.EqualFold(expr, "always") {
		return func(*wildcard.Match) bool { return true }, nil
	}

	var conds []rules.Condition
	for _, clause := range strings.Split(expr, " and ") {
		fields := strings.Fields(clause)
		if len(fields) != 2 {
			return nil, errors.Errorf(errors.KindValidation, "malformed clause %q", clause)
		}
		cond, err := parseClause(fields[0], fields[1])
		if err != nil {
			return nil, err
		}
		conds = append(conds, cond)
	}
	return rules.And(conds...), nil
}

func parseClause(key, value string) (rules.Condition, error) {
	switch key {
	case "ip_proto":
		proto, err := protoNumber(value)
		if err != nil {
			return nil, err
		}
		return func(m *wildcard.Match) bool { return m.Has(wildcard.FieldIPProto) && m.IPProto == proto }, nil

	case "eth_type":
		et, err := etherType(value)
		if err != nil {
			return nil, err
		}
		return func(m *wildcard.Match) bool { return m.Has(wildcard.FieldEthType) && m.EthType == et }, nil

	case "src_ip":
		_, cidr, err := net.ParseCIDR(value)
		if err != nil {
			return nil, errors.Wrapf(err, errors.KindValidation, "src_ip %q", value)
		}
		return func(m *wildcard.Match) bool { return m.Has(wildcard.FieldNetworkSrc) && cidr.Contains(m.NetworkSrc) }, nil

	case "dst_ip":
		_, cidr, err := net.ParseCIDR(value)
		if err != nil {
			return nil, errors.Wrapf(err, errors.KindValidation, "dst_ip %q", value)
		}
		return func(m *wildcard.Match) bool { return m.Has(wildcard.FieldNetworkDst) && cidr.Contains(m.NetworkDst) }, nil

	case "src_port":
		port, err := strconv.ParseUint(value, 10, 16)
		if err != nil {
			return nil, errors.Wrapf(err, errors.KindValidation, "src_port %q", value)
		}
		return func(m *wildcard.Match) bool {
			return m.Has(wildcard.FieldTransportSrc) && m.TransportSrc == uint16(port)
		}, nil

	case "dst_port":
		port, err := strconv.ParseUint(value, 10, 16)
		if err != nil {
			return nil, errors.Wrapf(err, errors.KindValidation, "dst_port %q", value)
		}
		return func(m *wildcard.Match) bool {
			return m.Has(wildcard.FieldTransportDst) && m.TransportDst == uint16(port)
		}, nil

	case "port_group":
		return func(m *wildcard.Match) bool { return m.HasPortGroup(value) }, nil

	default:
		return nil, errors.Errorf(errors.KindValidation, "unknown match field %q", key)
	}
}

func protoNumber(name string) (uint8, error) {
	switch strings.ToLower(name) {
	case "tcp":
		return wildcard.IPProtoTCP, nil
	case "udp":
		return wildcard.IPProtoUDP, nil
	case "icmp":
		return wildcard.IPProtoICMP, nil
	case "icmpv6":
		return wildcard.IPProtoICMPv6, nil
	default:
		n, err := strconv.ParseUint(name, 10, 8)
		if err != nil {
			return 0, errors.Errorf(errors.KindValidation, "unknown ip_proto %q", name)
		}
		return uint8(n), nil
	}
}

func etherType(name string) (uint16, error) {
	switch strings.ToLower(name) {
	case "ipv4":
		return wildcard.EtherTypeIPv4, nil
	case "ipv6":
		return wildcard.EtherTypeIPv6, nil
	case "arp":
		return wildcard.EtherTypeARP, nil
	default:
		n, err := strconv.ParseUint(strings.TrimPrefix(name, "0x"), 16, 16)
		if err != nil {
			return 0, errors.Errorf(errors.KindValidation, "unknown eth_type %q", name)
		}
		return uint16(n), nil
	}
}
