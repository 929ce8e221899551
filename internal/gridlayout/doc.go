/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package gridlayout implements the virtualized cover grid used by the library views.
// Compute derives fixed-size row/column metrics, Scroller owns the clamped scroll offset,
// Pool keeps the realized visuals equal to the visible index range, and Engine wires them
// into a Measure/Arrange pass driven by the host (fyne widget or terminal UI).
// The package performs no I/O and never inspects the visuals it asks the host to create.
package gridlayout
