package config

type AppConfig struct {
	Server ServerConfig
	Log    LogConfig
	Rules  Rules
}

func LoadApp() (AppConfig, error) {
	logCfg, err := LoadLog()
	if err != nil {
		return AppConfig{}, err
	}
	serverCfg, err := LoadServer()
	if err != nil {
		return AppConfig{}, err
	}
	rules, err := LoadRules(serverCfg.RulesConfigPath)
	if err != nil {
		return AppConfig{}, err
	}
	return AppConfig{
		Server: serverCfg,
		Log:    logCfg,
		Rules:  rules,
	}, nil
}
