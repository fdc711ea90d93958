// Copyright 2025 ModelKit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import "fmt"

// ResolutionError reports that a location resolved to an existing local
// directory which does not contain the expected file. It disables the
// remote fallback: a local directory match must never trigger a silent
// hub fetch of a possibly different artifact.
type ResolutionError struct {
	Location string
	Filename string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("path %q exists locally but the config file %q is missing", e.Location, e.Filename)
}

// NotRegisteredError reports a (name, category) discriminator pair with no
// registered config type.
type NotRegisteredError struct {
	Name string
	Type Type
}

func (e *NotRegisteredError) Error() string {
	return fmt.Sprintf("no config type registered for name %q and category %q", e.Name, e.Type)
}
