package appfs

import "embed"

// FS holds embedded assets: SQL migrations and SMS message templates.
//go:embed migrations templates
var FS embed.FS
