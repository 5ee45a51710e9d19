// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cache

import (
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/bitmark-inc/latticed/background"
	"github.com/bitmark-inc/latticed/fault"
)

type item struct {
	object    interface{}
	expiresAt time.Time
}

type poolData struct {
	sync.RWMutex
	items        map[string]item
	expiresAfter time.Duration
}

// the set of pools; the "exp" tag is each pool's retention, no tag
// means entries live until deleted
type pools struct {
	OrphanBlocks         *poolData `exp:"1h"`
	RejectedTransactions *poolData `exp:"30m"`
	TestA                *poolData `exp:"3s"`
	TestB                *poolData
}

var globalData struct {
	background  *background.T
	initialised bool
}

// Pool - the set of expiring pools, usable after Initialise
var Pool pools

// Initialise - build each pool from its struct tag and start the
// expiry sweep
func Initialise() error {
	if globalData.initialised {
		return fault.ErrAlreadyInitialised
	}

	poolType := reflect.TypeOf(Pool)
	poolValue := reflect.ValueOf(&Pool).Elem()

	for i := 0; i < poolType.NumField(); i++ {
		var exp time.Duration

		fieldInfo := poolType.Field(i)
		expTag := fieldInfo.Tag.Get("exp")
		if len(expTag) > 0 {
			d, err := time.ParseDuration(expTag)
			if err != nil {
				return fmt.Errorf("invalid time duration: %s", expTag)
			}
			exp = d
		}

		p := &poolData{items: make(map[string]item), expiresAfter: exp}
		poolValue.Field(i).Set(reflect.ValueOf(p))
	}

	globalData.background = background.Start(background.Processes{cleaner}, nil)
	globalData.initialised = true

	return nil
}

// Finalise - stop the expiry sweep
func Finalise() {
	if !globalData.initialised {
		return
	}
	background.Stop(globalData.background)
	globalData.initialised = false
}

func (p *poolData) Put(key string, value interface{}) {
	p.Lock()
	defer p.Unlock()

	val := item{object: value}
	if p.expiresAfter > 0 {
		val.expiresAt = time.Now().Add(p.expiresAfter)
	}
	p.items[key] = val
}

func (p *poolData) Get(key string) (interface{}, bool) {
	p.RLock()
	defer p.RUnlock()

	item, ok := p.items[key]
	if !ok {
		return nil, false
	}
	return item.object, true
}

func (p *poolData) Delete(key string) {
	p.Lock()
	defer p.Unlock()

	delete(p.items, key)
}

func (p *poolData) Items() map[string]interface{} {
	p.RLock()
	defer p.RUnlock()

	m := make(map[string]interface{}, len(p.items))
	for k, v := range p.items {
		m[k] = v.object
	}
	return m
}

func (p *poolData) Size() int {
	p.RLock()
	defer p.RUnlock()

	return len(p.items)
}
