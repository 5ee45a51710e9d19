// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cache

import (
	"reflect"
	"time"
)

const expirationCheckInterval = 1 * time.Minute

// cleaner - a background.Process sweeping expired entries out of
// every pool
func cleaner(args interface{}, shutdown <-chan bool, finished chan<- bool) {
	ticker := time.NewTicker(expirationCheckInterval)
loop:
	for {
		select {
		case <-ticker.C:
			deleteExpiredItems()
		case <-shutdown:
			break loop
		}
	}
	ticker.Stop()
	finished <- true
}

func deleteExpiredItems() {
	poolType := reflect.TypeOf(Pool)
	poolValue := reflect.ValueOf(&Pool).Elem()

	for i := 0; i < poolType.NumField(); i++ {
		poolData := poolValue.Field(i).Interface().(*poolData)

		poolData.Lock()
		for key, item := range poolData.items {
			if expired(item.expiresAt) {
				delete(poolData.items, key)
			}
		}
		poolData.Unlock()
	}
}

func expired(exp time.Time) bool {
	return !exp.IsZero() && time.Since(exp) > 0
}
