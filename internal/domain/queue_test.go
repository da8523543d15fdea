// Copyright (c) 2025-2026, the tierd contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestQueueItemLessOrdersByPriorityThenTime(t *testing.T) {
	t0 := time.Now()
	items := []*QueueItem{
		{ID: "c", Priority: 0, EnqueueTime: t0.Add(1 * time.Second)},
		{ID: "a", Priority: 10, EnqueueTime: t0.Add(3 * time.Second)},
		{ID: "b", Priority: 0, EnqueueTime: t0},
	}

	sort.Slice(items, func(i, j int) bool { return items[i].Less(items[j]) })

	got := []string{items[0].ID, items[1].ID, items[2].ID}
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestQueueItemLessBreaksTiesOnID(t *testing.T) {
	t0 := time.Now()
	first := &QueueItem{ID: "a", Priority: 5, EnqueueTime: t0}
	second := &QueueItem{ID: "b", Priority: 5, EnqueueTime: t0}

	assert.True(t, first.Less(second))
	assert.False(t, second.Less(first))
}
