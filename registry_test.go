// Copyright 2026 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package msgtunnel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry(test *testing.T) {
	r := newRegistry()
	c1 := &channel{id: "c1"}
	c2 := &channel{id: "c2"}

	r.register(c1)
	r.register(c2)
	assert.Equal(test, 2, r.len())
	assert.Same(test, c1, r.lookup("c1"))
	assert.Nil(test, r.lookup("c3"))
	assert.ElementsMatch(test, []*channel{c1, c2}, r.snapshot())

	assert.PanicsWithError(test, `msgtunnel: duplicate channel id "c1"`, func() {
		r.register(&channel{id: "c1"})
	})

	// only the registered handle is removed
	assert.False(test, r.unregister(&channel{id: "c1"}))
	assert.True(test, r.unregister(c1))
	assert.False(test, r.unregister(c1))
	assert.Nil(test, r.lookup("c1"))
	assert.Equal(test, 1, r.len())
}
