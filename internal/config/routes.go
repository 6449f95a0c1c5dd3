package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ProxyRoute is one entry of the passthrough route table: a gateway path
// forwarded verbatim to an upstream path. Bespoke auth routes (send/verify/
// logout) have their own handlers; everything the gateway merely relays is
// declared here instead of hand-writing a handler per route.
type ProxyRoute struct {
	Name     string `yaml:"name"`
	Method   string `yaml:"method"`
	Path     string `yaml:"path"`
	Upstream string `yaml:"upstream"`
	// Admin marks routes that require the admin role in addition to a
	// valid session.
	Admin bool `yaml:"admin"`
	// Cache enables the short-TTL profile cache for this route.
	Cache bool `yaml:"cache"`
}

func loadProxyRoutes(path string) ([]ProxyRoute, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		// The route table is optional; the bespoke auth routes still work
		// without it.
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("could not read proxy routes file: %w", err)
	}

	var file struct {
		Routes []ProxyRoute `yaml:"routes"`
	}
	if err := yaml.Unmarshal(bytes, &file); err != nil {
		return nil, fmt.Errorf("could not parse proxy routes yaml: %w", err)
	}

	for i, r := range file.Routes {
		if r.Path == "" || r.Upstream == "" {
			return nil, fmt.Errorf("proxy route %d: path and upstream are required", i)
		}
		if r.Method == "" {
			file.Routes[i].Method = "GET"
		}
	}
	return file.Routes, nil
}
