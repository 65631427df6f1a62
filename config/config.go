package config

import (
	"errors"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port           int // HTTP and websocket
	TCPPort        int // line protocol, 0 disables it
	DBPath         string
	LegacyJSONPath string
	ReadTimeout    int // seconds
	WriteTimeout   int // seconds
	MaxBioLength   int
	MaxAvatarBytes int
	CORSOrigins    []string
	ControlSocket  string
	LogLevel       string
	LogDevelopment bool
}

func defaults(v *viper.Viper) {
	v.SetDefault("port", 3000)
	v.SetDefault("tcp_port", 3215)
	v.SetDefault("db_path", "zorssms.db")
	v.SetDefault("legacy_json_path", "database.json")
	v.SetDefault("read_timeout", 120)
	v.SetDefault("write_timeout", 30)
	v.SetDefault("max_bio_length", 500)
	v.SetDefault("max_avatar_bytes", 5<<20)
	v.SetDefault("cors_origins", "*")
	v.SetDefault("control_socket", "/tmp/zorssms.sock")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_development", false)
}

// Load reads configuration from defaults, an optional zorssms.yaml in the
// working directory, a .env file and ZORSSMS_* environment variables, in
// increasing priority. PORT is honoured as a fallback for the HTTP port.
func Load() *Config {
	_ = godotenv.Load()

	v := viper.New()
	defaults(v)

	v.SetConfigName("zorssms")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			// a broken file must not stop the server; env and defaults still apply
			v = viper.New()
			defaults(v)
		}
	}

	v.SetEnvPrefix("ZORSSMS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("port", "ZORSSMS_PORT", "PORT")

	return fromViper(v)
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{
		Port:           v.GetInt("port"),
		TCPPort:        v.GetInt("tcp_port"),
		DBPath:         v.GetString("db_path"),
		LegacyJSONPath: v.GetString("legacy_json_path"),
		ReadTimeout:    v.GetInt("read_timeout"),
		WriteTimeout:   v.GetInt("write_timeout"),
		MaxBioLength:   v.GetInt("max_bio_length"),
		MaxAvatarBytes: v.GetInt("max_avatar_bytes"),
		ControlSocket:  v.GetString("control_socket"),
		LogLevel:       v.GetString("log_level"),
		LogDevelopment: v.GetBool("log_development"),
	}

	for _, o := range strings.Split(v.GetString("cors_origins"), ",") {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, o)
		}
	}

	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 120
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 30
	}
	if cfg.MaxBioLength <= 0 {
		cfg.MaxBioLength = 500
	}
	if cfg.MaxAvatarBytes <= 0 {
		cfg.MaxAvatarBytes = 5 << 20
	}

	return cfg
}
