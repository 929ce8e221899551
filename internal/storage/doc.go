/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package storage manages the per-user SQLite database at <data dir>/library.sqlite.
// It holds the last scan's entries, user metadata, reading progress, key/value settings and the cover
// thumbnail cache (an LRU bounded by MSH_PREVIEWS_MAX_BYTES).
// Everything except metadata and progress can be rebuilt from the library root, so a corrupt database is
// backed up and recreated rather than repaired.
package storage
