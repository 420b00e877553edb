package appid

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/fulmenhq/gofulmen/appidentity"

	appidentityassets "github.com/namelens/tubelens/internal/assets/appidentity"
)

var embeddedErr error

func init() {
	// Explicit identity overrides remain authoritative (Options.ExplicitPath and
	// FULMEN_APP_IDENTITY_PATH). Embedded identity provides standalone-binary
	// behavior when no external `.fulmen/app.yaml` can be found.
	embeddedErr = appidentity.RegisterEmbeddedIdentityYAML(appidentityassets.YAML)
}

// Default is the identity used when neither a file nor the embedded copy is usable.
func Default() *appidentity.Identity {
	return &appidentity.Identity{
		Vendor:      "namelens",
		BinaryName:  "tubelens",
		EnvPrefix:   "TUBELENS_",
		ConfigName:  "tubelens",
		Description: "Video URL to direct download link resolver",
	}
}

// Get returns the application identity.
func Get(ctx context.Context) (*appidentity.Identity, error) {
	identity, err := appidentity.Get(ctx)
	if err == nil {
		return identity, nil
	}

	var notFound *appidentity.NotFoundError
	explicit := strings.TrimSpace(os.Getenv(appidentity.EnvIdentityPath)) != ""
	if embeddedErr != nil && !explicit && errors.As(err, &notFound) {
		return Default(), nil
	}
	return nil, err
}
