package dockerbuild

import (
	"releaser/internal/config"
)

// Config holds configuration for the containerized builder.
type Config struct {
	Image       string // build image (required)
	Tool        string // build tool binary inside the container
	RecipeDir   string // host recipe directory, bind-mounted into the workspace
	OutputDir   string // host output directory, bind-mounted into the workspace
	RuntimeFlag string // flag carrying the runtime version
	NumlibFlag  string // flag carrying the numeric library version
	Workspace   string // mount root inside the container
}

// LoadConfigFromEnv loads builder configuration from environment variables.
// Tool, recipe, and output settings are shared with the host backend.
func LoadConfigFromEnv() Config {
	return Config{
		Image:       config.GetEnv("BUILD_IMAGE", ""),
		Tool:        config.GetEnv("BUILD_TOOL", "conda-build"),
		RecipeDir:   config.GetEnv("BUILD_RECIPE_DIR", "./recipe"),
		OutputDir:   config.GetEnv("BUILD_OUTPUT_DIR", "./dist"),
		RuntimeFlag: config.GetEnv("BUILD_RUNTIME_FLAG", "--python"),
		NumlibFlag:  config.GetEnv("BUILD_NUMLIB_FLAG", "--numpy"),
		Workspace:   config.GetEnv("BUILD_WORKSPACE", "/workspace"),
	}
}
