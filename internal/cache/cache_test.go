// Airmirror - Airtable to PostgreSQL Mirror for Hackathon Event Portals
// Copyright 2026 Airmirror Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hackbase/airmirror

package cache

import (
	"fmt"
	"testing"
	"time"
)

func TestKey(t *testing.T) {
	tests := []struct {
		namespace string
		parts     []interface{}
		want      string
	}{
		{"events", nil, "events"},
		{"events", []interface{}{"rows"}, "events:rows"},
		{"events", []interface{}{"rows", 50, 0}, "events:rows:50:0"},
		{"dashboard", []interface{}{"summary"}, "dashboard:summary"},
	}

	for _, tt := range tests {
		if got := Key(tt.namespace, tt.parts...); got != tt.want {
			t.Errorf("Key(%q, %v) = %q, want %q", tt.namespace, tt.parts, got, tt.want)
		}
	}
}

func TestCacheSetGet(t *testing.T) {
	c := New(time.Minute)
	defer c.Close()

	if _, ok := c.Get("missing"); ok {
		t.Fatal("Get on empty cache returned ok")
	}

	c.Set("events:rows:50:0", "payload")
	got, ok := c.Get("events:rows:50:0")
	if !ok {
		t.Fatal("Get after Set returned !ok")
	}
	if got != "payload" {
		t.Errorf("Get = %v, want payload", got)
	}
}

func TestCacheExpiration(t *testing.T) {
	c := New(time.Minute)
	defer c.Close()

	c.SetWithTTL("short", "v", 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	if _, ok := c.Get("short"); ok {
		t.Error("expired entry still readable")
	}

	_, _, evictions, _ := c.Snapshot()
	if evictions == 0 {
		t.Error("expired read did not count as eviction")
	}
}

func TestCacheDelete(t *testing.T) {
	c := New(time.Minute)
	defer c.Close()

	c.Set("k", 1)
	c.Delete("k")
	if _, ok := c.Get("k"); ok {
		t.Error("deleted entry still readable")
	}

	// deleting a missing key must not panic
	c.Delete("never-set")
}

func TestCacheInvalidateNamespace(t *testing.T) {
	c := New(time.Minute)
	defer c.Close()

	c.Set("events:rows:50:0", 1)
	c.Set("events:rows:50:50", 2)
	c.Set("events", 3)
	c.Set("signups:rows:50:0", 4)
	c.Set("eventsignups:rows:50:0", 5) // shares prefix characters, not namespace

	removed := c.InvalidateNamespace("events")
	if removed != 3 {
		t.Errorf("InvalidateNamespace removed %d entries, want 3", removed)
	}

	if _, ok := c.Get("signups:rows:50:0"); !ok {
		t.Error("other namespace was invalidated")
	}
	if _, ok := c.Get("eventsignups:rows:50:0"); !ok {
		t.Error("prefix-similar namespace was invalidated")
	}
	if _, ok := c.Get("events:rows:50:0"); ok {
		t.Error("namespaced entry survived invalidation")
	}
}

func TestCacheClear(t *testing.T) {
	c := New(time.Minute)
	defer c.Close()

	for i := 0; i < 10; i++ {
		c.Set(Key("t", i), i)
	}
	c.Clear()

	_, _, _, keys := c.Snapshot()
	if keys != 0 {
		t.Errorf("TotalKeys after Clear = %d, want 0", keys)
	}
}

func TestCacheHitRate(t *testing.T) {
	c := New(time.Minute)
	defer c.Close()

	if rate := c.HitRate(); rate != 0 {
		t.Errorf("HitRate on fresh cache = %f, want 0", rate)
	}

	c.Set("k", 1)
	c.Get("k")       // hit
	c.Get("missing") // miss

	if rate := c.HitRate(); rate != 50 {
		t.Errorf("HitRate = %f, want 50", rate)
	}
}

func TestCacheConcurrentAccess(t *testing.T) {
	c := New(time.Minute)
	defer c.Close()

	done := make(chan struct{})
	for g := 0; g < 8; g++ {
		go func(g int) {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 100; i++ {
				key := Key("events", "rows", i%10)
				c.Set(key, fmt.Sprintf("%d-%d", g, i))
				c.Get(key)
				if i%25 == 0 {
					c.InvalidateNamespace("events")
				}
			}
		}(g)
	}
	for g := 0; g < 8; g++ {
		<-done
	}
}
