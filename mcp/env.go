package mcp

import "os"

// Environment variable names read from the host process.
const (
	EnvAPIToken        = "BRIGHTDATA_API_TOKEN"
	EnvBrowserAuth     = "BROWSER_AUTH"
	EnvWebUnlockerZone = "WEB_UNLOCKER_ZONE"
	EnvNodeEnv         = "NODE_ENV"
	EnvPath            = "PATH"
)

// Defaults applied when the optional variables are unset.
const (
	DefaultWebUnlockerZone = "web_unlocker1"
	DefaultNodeEnv         = "production"
	npmRegistry            = "https://registry.npmjs.org/"
	nodeOptions            = "--max-old-space-size=2048"
)

// LookupFunc reads an environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

func (f LookupFunc) orDefault() LookupFunc {
	if f == nil {
		return os.LookupEnv
	}
	return f
}

func (f LookupFunc) present(key string) (string, bool) {
	v, ok := f.orDefault()(key)
	return v, ok && v != ""
}

// RequiredVariables lists the secrets that must be present before a
// connection attempt.
var RequiredVariables = []string{EnvAPIToken, EnvBrowserAuth}

// ValidateEnvironment checks that every required secret is present. It
// returns a *ConfigError naming the first missing variable.
func ValidateEnvironment(lookup LookupFunc) error {
	for _, name := range RequiredVariables {
		if _, ok := lookup.present(name); !ok {
			return &ConfigError{Variable: name}
		}
	}
	return nil
}

// BuildEnvironment derives the subprocess environment. Entries whose source
// value is absent are omitted rather than emitted empty.
func BuildEnvironment(lookup LookupFunc) map[string]string {
	env := make(map[string]string, 8)

	if v, ok := lookup.present(EnvAPIToken); ok {
		env["API_TOKEN"] = v
		env[EnvAPIToken] = v
	}
	if v, ok := lookup.present(EnvBrowserAuth); ok {
		env[EnvBrowserAuth] = v
	}

	env[EnvWebUnlockerZone] = DefaultWebUnlockerZone
	if v, ok := lookup.present(EnvWebUnlockerZone); ok {
		env[EnvWebUnlockerZone] = v
	}
	env[EnvNodeEnv] = DefaultNodeEnv
	if v, ok := lookup.present(EnvNodeEnv); ok {
		env[EnvNodeEnv] = v
	}

	if v, ok := lookup.present(EnvPath); ok {
		env[EnvPath] = v
	}

	env["NPM_CONFIG_REGISTRY"] = npmRegistry
	env["NODE_OPTIONS"] = nodeOptions

	return env
}
