// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package memcache

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"grimm.is/midonet/internal/conncache"
)

func TestCache_PutGet(t *testing.T) {
	c := New()
	key := conncache.Key{DeviceID: uuid.New(), Proto: 6, SrcIP: "10.0.0.1", DstIP: "10.0.0.2", SrcPort: 1000, DstPort: 80}

	_, ok := c.Get(key)
	assert.False(t, ok)

	c.Put(key, conncache.Marker{Forward: true}, time.Minute)
	got, ok := c.Get(key)
	assert.True(t, ok)
	assert.True(t, got.Forward)
}

func TestCache_ExpiresOnRead(t *testing.T) {
	now := time.Now()
	c := NewWithClock(func() time.Time { return now })
	key := conncache.Key{DeviceID: uuid.New(), Proto: 17}

	c.Put(key, conncache.Marker{Forward: true}, time.Second)
	now = now.Add(2 * time.Second)

	_, ok := c.Get(key)
	assert.False(t, ok, "an entry past its TTL must not be returned")
}

func TestKey_Reverse(t *testing.T) {
	k := conncache.Key{SrcIP: "a", DstIP: "b", SrcPort: 1, DstPort: 2}
	r := k.Reverse()
	assert.Equal(t, "b", r.SrcIP)
	assert.Equal(t, "a", r.DstIP)
	assert.Equal(t, uint16(2), r.SrcPort)
	assert.Equal(t, uint16(1), r.DstPort)
	assert.Equal(t, k, r.Reverse(), "reversing twice must return to the original key")
}
