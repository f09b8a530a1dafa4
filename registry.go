// Copyright 2026 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package msgtunnel

import (
	"fmt"
	"sync"
)

// registry maps channel ids to the local channels.
type registry struct {
	locker   sync.RWMutex
	channels map[string]*channel
}

func newRegistry() *registry {
	return &registry{channels: make(map[string]*channel)}
}

// register panics if the id is already registered, duplicate ids are
// a correlation bug and never recoverable.
func (r *registry) register(ch *channel) {
	r.locker.Lock()
	defer r.locker.Unlock()

	if _, ok := r.channels[ch.id]; ok {
		panic(fmt.Errorf("msgtunnel: duplicate channel id %q", ch.id))
	}
	r.channels[ch.id] = ch
}

func (r *registry) lookup(id string) *channel {
	r.locker.RLock()
	defer r.locker.RUnlock()
	return r.channels[id]
}

// unregister removes ch, it reports false if ch was not registered.
func (r *registry) unregister(ch *channel) bool {
	r.locker.Lock()
	defer r.locker.Unlock()

	if r.channels[ch.id] != ch {
		return false
	}
	delete(r.channels, ch.id)
	return true
}

func (r *registry) len() int {
	r.locker.RLock()
	defer r.locker.RUnlock()
	return len(r.channels)
}

func (r *registry) snapshot() []*channel {
	r.locker.RLock()
	defer r.locker.RUnlock()

	chs := make([]*channel, 0, len(r.channels))
	for _, ch := range r.channels {
		chs = append(chs, ch)
	}
	return chs
}
