/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package library

import (
	"reflect"
	"testing"
)

func TestSortNatural(t *testing.T) {
	in := []string{"Vol 10", "vol 2", "Vol 1", "extra", "Vol 02", "a100b", "a20b", "B"}
	SortNatural(in)
	want := []string{"a20b", "a100b", "B", "extra", "Vol 1", "vol 2", "Vol 02", "Vol 10"}
	if !reflect.DeepEqual(in, want) {
		t.Fatalf("got %q\nwant %q", in, want)
	}
}

func TestNaturalLessIsStrict(t *testing.T) {
	pairs := [][2]string{{"a", "a"}, {"x01", "x01"}, {"", ""}}
	for _, p := range pairs {
		if NaturalLess(p[0], p[1]) {
			t.Fatalf("NaturalLess(%q,%q) must be false", p[0], p[1])
		}
	}
	if !NaturalLess("", "a") || NaturalLess("a", "") {
		t.Fatalf("empty string sorts first")
	}
	if !NaturalLess("page9", "page10") || !NaturalLess("99999999999999999999a", "100000000000000000000a") {
		t.Fatalf("numeric runs compare by value")
	}
}
