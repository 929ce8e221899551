/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"mangashelf/internal/library"
)

// Run shows the grid until the user quits and returns the selected item, if
// any.
func Run(ctx context.Context, catalog *library.Catalog, opts Options) (library.Item, bool, error) {
	m := New(catalog, opts)
	defer m.Close()
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return library.Item{}, false, err
	}
	it, ok := m.Selected()
	return it, ok, nil
}
