package returnless

import (
	"github.com/ajitpratap0/tap-returnless/pkg/connector/core"
	"github.com/ajitpratap0/tap-returnless/pkg/connector/registry"
)

func init() {
	// Register Returnless source connector in the global registry
	_ = registry.RegisterSource(&registry.ConnectorInfo{
		Name:         ConnectorName,
		Type:         string(core.ConnectorTypeSource),
		Description:  "Extracts the Returnless REST API as Singer messages",
		Version:      Version,
		Capabilities: []string{"discover", "catalog", "state"},
	}, func() (core.Source, error) {
		return NewReturnlessSource(), nil
	})
}
