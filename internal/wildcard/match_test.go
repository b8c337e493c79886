// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package wildcard

import (
	"net"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatch_PresenceIndependentOfZeroValue(t *testing.T) {
	m := New()
	assert.False(t, m.Has(FieldIPTTL), "unset field must not report present")

	m.SetIPTTL(0)
	assert.True(t, m.Has(FieldIPTTL), "explicit zero value must still mark the field present")
	assert.Equal(t, uint8(0), m.IPTTL)
}

func TestMatch_CloneIsIndependent(t *testing.T) {
	orig := New()
	orig.SetEthernet(net.HardwareAddr{1, 2, 3, 4, 5, 6}, net.HardwareAddr{6, 5, 4, 3, 2, 1})
	orig.SetVLANStack([]uint16{100, 200})
	orig.AddPortGroup("g1")

	clone := orig.Clone()
	require.True(t, orig.Equals(clone))

	clone.PushVLAN(300)
	clone.AddPortGroup("g2")
	clone.EthSrc[0] = 0xff

	assert.Equal(t, []uint16{100, 200}, orig.VLANStack, "mutating the clone's VLAN stack must not affect the original")
	assert.False(t, orig.HasPortGroup("g2"))
	assert.Equal(t, byte(1), orig.EthSrc[0], "clone must hold its own copy of the MAC bytes")
}

func TestMatch_Equals(t *testing.T) {
	base := func() *Match {
		m := New()
		m.SetInputPort(uuid.MustParse("11111111-1111-1111-1111-111111111111"))
		m.SetEthType(EtherTypeIPv4)
		m.SetNetwork(false, net.ParseIP("10.0.0.1"), net.ParseIP("10.0.0.2"))
		return m
	}

	t.Run("identical matches are equal", func(t *testing.T) {
		a, b := base(), base()
		assert.True(t, a.Equals(b))
	})

	t.Run("differing field set is not equal", func(t *testing.T) {
		a, b := base(), base()
		b.SetIPTTL(64)
		assert.False(t, a.Equals(b))
		if diff := cmp.Diff(a.set, b.set); diff == "" {
			t.Fatal("expected field masks to differ")
		}
	})

	t.Run("differing value with same presence is not equal", func(t *testing.T) {
		a, b := base(), base()
		b.SetNetwork(false, net.ParseIP("10.0.0.1"), net.ParseIP("10.0.0.99"))
		assert.False(t, a.Equals(b))
	})

	t.Run("nil matches", func(t *testing.T) {
		var a, b *Match
		assert.True(t, a.Equals(b))
		assert.False(t, base().Equals(nil))
	})
}

func TestMatch_VLANStackPushPop(t *testing.T) {
	m := New()
	m.PushVLAN(10)
	m.PushVLAN(20)
	assert.Equal(t, []uint16{10, 20}, m.VLANStack)

	m.PopVLAN()
	assert.Equal(t, []uint16{10}, m.VLANStack)

	m.PopVLAN()
	m.PopVLAN() // popping an empty stack is a no-op, not a panic
	assert.Empty(t, m.VLANStack)
}

func TestMatch_IsBroadcastAndMulticast(t *testing.T) {
	m := New()
	assert.False(t, m.IsBroadcast(), "unset EthDst is never broadcast")

	m.SetEthernet(nil, net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff})
	assert.True(t, m.IsBroadcast())
	assert.True(t, m.IsMulticast(), "the broadcast address also has the multicast bit set")

	m.SetEthernet(nil, net.HardwareAddr{0x01, 0x00, 0x5e, 0x00, 0x00, 0x01})
	assert.False(t, m.IsBroadcast())
	assert.True(t, m.IsMulticast())

	m.SetEthernet(nil, net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01})
	assert.False(t, m.IsMulticast())
}

func TestMatch_PortGroups(t *testing.T) {
	m := New()
	assert.False(t, m.HasPortGroup("g1"))

	m.AddPortGroup("g1")
	m.AddPortGroup("g2")
	assert.True(t, m.HasPortGroup("g1"))
	assert.True(t, m.HasPortGroup("g2"))
	assert.False(t, m.HasPortGroup("g3"))
}
