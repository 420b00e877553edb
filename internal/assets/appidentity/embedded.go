package appidentityassets

import _ "embed"

// YAML is the embedded application identity used when no external
// `.fulmen/app.yaml` can be found.
//
//go:embed app.yaml
var YAML []byte
