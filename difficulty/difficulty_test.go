// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package difficulty_test

import (
	"fmt"
	"testing"

	"github.com/bitmark-inc/latticed/difficulty"
)

// test difficulty one
func TestPdiffOne(t *testing.T) {

	expected := 1.0

	actual := difficulty.New().Pdiff()

	if actual != expected {
		t.Errorf("actual: %f  expected: %f  diff: %g", actual, expected, actual-expected)
	}
}

// test 32 bit word
func TestBits(t *testing.T) {

	d := difficulty.New()

	value := uint32(0x1b0404cb)
	expected := 16307.669773817162

	d.SetBits(value)
	actual := d.Pdiff()

	if actual != expected {
		t.Errorf("actual: %f  expected: %f  diff: %g", actual, expected, actual-expected)
	}

	hexActual := d.String()
	hexExpected := fmt.Sprintf("%08x", value)

	if hexActual != hexExpected {
		t.Errorf("hex: actual: %q  expected: %q", hexActual, hexExpected)
	}

	// a second test

	value = uint32(0x1c2ac4af)
	expected = 5.985742435503

	d.SetBits(value)
	actual = d.Pdiff()

	if actual != expected {
		t.Errorf("actual: %f  expected: %f  diff: %g", actual, expected, actual-expected)
	}

	hexActual = d.String()
	hexExpected = fmt.Sprintf("%08x", value)

	if hexActual != hexExpected {
		t.Errorf("hex: actual: %q  expected: %q", hexActual, hexExpected)
	}

}

// test bytes
func TestBytes(t *testing.T) {

	d := difficulty.New()

	value := []byte{0xcb, 0x04, 0x04, 0x1b} // little endian bytes
	expected := 16307.669773817162

	d.SetBytes(value)
	actual := d.Pdiff()

	if actual != expected {
		t.Errorf("actual: %f  expected: %f  diff: %g", actual, expected, actual-expected)
	}
}

// blocks taking twice the target time must halve the difficulty
func TestRetargetSlowBlocks(t *testing.T) {

	d := difficulty.New()
	d.SetPdiff(100.0)

	actual := d.Retarget(60.0, 120.0, 1.0, 4.0)
	expected := 50.0

	if actual != expected {
		t.Errorf("actual: %f  expected: %f", actual, expected)
	}
}

// blocks arriving too fast must raise difficulty, clamped by the
// per-retarget factor
func TestRetargetClamp(t *testing.T) {

	d := difficulty.New()
	d.SetPdiff(100.0)

	// 100x too fast, but change is clamped to 4x
	actual := d.Retarget(60.0, 0.6, 1.0, 4.0)
	expected := 400.0

	if actual != expected {
		t.Errorf("actual: %f  expected: %f", actual, expected)
	}

	// 100x too slow, clamped to 1/4
	d.SetPdiff(100.0)
	actual = d.Retarget(60.0, 6000.0, 1.0, 4.0)
	expected = 25.0

	if actual != expected {
		t.Errorf("actual: %f  expected: %f", actual, expected)
	}
}

// zero or negative elapsed time must be treated as on-target
func TestRetargetDegenerateElapsed(t *testing.T) {

	d := difficulty.New()
	d.SetPdiff(100.0)

	actual := d.Retarget(60.0, 0.0, 1.0, 4.0)
	expected := 100.0

	if actual != expected {
		t.Errorf("actual: %f  expected: %f", actual, expected)
	}
}
