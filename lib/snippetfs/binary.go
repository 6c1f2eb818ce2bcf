// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package snippetfs

import (
	"path"
	"strings"
)

var binaryExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true,
	".ico": true, ".webp": true, ".tiff": true, ".pdf": true,
	".zip": true, ".gz": true, ".tgz": true, ".tar": true, ".7z": true,
	".mp3": true, ".mp4": true, ".mov": true, ".wav": true, ".ogg": true,
	".woff": true, ".woff2": true, ".ttf": true, ".otf": true,
	".exe": true, ".dll": true, ".so": true, ".wasm": true,
}

// IsBinary reports whether name is treated as binary content.
func IsBinary(name string) bool {
	return binaryExtensions[strings.ToLower(path.Ext(name))]
}
