// 文件路径: internal/config/config.go
// 模块说明: 这是 internal 模块里的 config 逻辑，集中声明部署器的全部配置结构。
package config

import "time"

// Config 汇总部署器的全部配置。
type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	Paths   PathsConfig   `mapstructure:"paths"`
	Service ServiceConfig `mapstructure:"service"`
	ACME    ACMEConfig    `mapstructure:"acme"`
	Engine  EngineConfig  `mapstructure:"engine"`
}

// LogConfig 定义日志配置。
type LogConfig struct {
	Level     string `mapstructure:"level"`
	Format    string `mapstructure:"format"`
	AddSource bool   `mapstructure:"add_source"`
}

// PathsConfig 定义配置、证书与状态文件的落盘位置。
type PathsConfig struct {
	ConfigDir  string `mapstructure:"config_dir"`  // mihomo 配置与证书目录
	StateDB    string `mapstructure:"state_db"`    // 部署状态 SQLite 文件
	BinaryPath string `mapstructure:"binary_path"` // mihomo 可执行文件
	UnitPath   string `mapstructure:"unit_path"`   // systemd 服务单元
}

// ServiceConfig 定义被管理服务的身份与守护参数。
type ServiceConfig struct {
	Name       string `mapstructure:"name"`        // systemd 单元名
	InitSystem string `mapstructure:"init_system"` // auto, systemd, openrc, generic
}

// ACMEConfig 定义证书签发行为。
type ACMEConfig struct {
	DirectoryURL    string        `mapstructure:"directory_url"`
	ChallengePort   int           `mapstructure:"challenge_port"`
	ObtainTimeout   time.Duration `mapstructure:"obtain_timeout"`
	RenewalWindow   time.Duration `mapstructure:"renewal_window"`
	RetryAttempts   int           `mapstructure:"retry_attempts"`
	SelfSignedYears int           `mapstructure:"self_signed_years"`
}

// EngineConfig 定义外部代理核心的获取方式。
type EngineConfig struct {
	ReleaseAPI  string        `mapstructure:"release_api"`
	DownloadURL string        `mapstructure:"download_url"`
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`
}
