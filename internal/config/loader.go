package config

const DefaultPath = "config.yaml"

// LoadFromEnv loads the YAML file named by CONFIG_PATH (config.yaml by default),
// applies environment overrides and validates the result.
func LoadFromEnv() (Config, error) {
	if err := loadDotEnv(); err != nil {
		return Config{}, err
	}
	env := FromEnviron()
	path, ok := env.Lookup("CONFIG_PATH")
	if !ok || path == "" {
		path = DefaultPath
	}
	return Load(path, env)
}

func Load(path string, env EnvSource) (Config, error) {
	cfg, err := LoadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg.ApplyEnv(env)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
