package ifgate

import _ "embed"

// Version is the release of the ifgate module.
//
//go:embed VERSION
var Version string
