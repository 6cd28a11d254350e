// Package docs embeds the OpenAPI document generated from the handler annotations.
package docs

import _ "embed"

// SwaggerJSON is the generated OpenAPI 2.0 document.
//
//go:embed swagger.json
var SwaggerJSON []byte
