package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Load 读取 /etc/mscript/config.yaml(可选)与 MSCRIPT_* 环境变量，返回完整配置。
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/mscript/")

	v.SetEnvPrefix("MSCRIPT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Missing config file is fine, defaults and env cover everything.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.add_source", false)

	v.SetDefault("paths.config_dir", "/root/.config/mihomo")
	v.SetDefault("paths.state_db", "/var/lib/mscript/mscript.db")
	v.SetDefault("paths.binary_path", "/usr/local/bin/mihomo")
	v.SetDefault("paths.unit_path", "/etc/systemd/system/mihomo.service")

	v.SetDefault("service.name", "mihomo")
	v.SetDefault("service.init_system", "auto")

	v.SetDefault("acme.directory_url", "https://acme-v02.api.letsencrypt.org/directory")
	v.SetDefault("acme.challenge_port", 80)
	v.SetDefault("acme.obtain_timeout", "3m")
	v.SetDefault("acme.renewal_window", "720h") // 30 天
	v.SetDefault("acme.retry_attempts", 2)
	v.SetDefault("acme.self_signed_years", 1)

	v.SetDefault("engine.release_api", "https://api.github.com/repos/MetaCubeX/mihomo/releases/latest")
	v.SetDefault("engine.download_url", "https://github.com/MetaCubeX/mihomo/releases/download")
	v.SetDefault("engine.http_timeout", "2m")
}
