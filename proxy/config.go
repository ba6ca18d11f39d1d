package proxy

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
	yaml "gopkg.in/yaml.v2"
)

type yamlConfig struct {
	Proxy struct {
		Debug      bool   `yaml:"debug"`
		LogLevel   string `yaml:"logLevel"`
		StaticLink []struct {
			SrcPath string `yaml:"srcPath"`
			DstPath string `yaml:"dstPath"`
		} `yaml:"staticLink"`
		PrefixLink []struct {
			SrcPrefix string `yaml:"srcPrefix"`
			DstPrefix string `yaml:"dstPrefix"`
		} `yaml:"prefixLink"`
	} `yaml:"proxy"`
}

func optionFromConfigBytes(b []byte) (Option, error) {
	var cfg yamlConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}

	return OptionFunc(func(o *Options) {
		o.DebugMode = cfg.Proxy.Debug
		if cfg.Proxy.LogLevel != "" {
			o.LogLevel = cfg.Proxy.LogLevel
		}

		if o.StaticLinkMap == nil {
			o.StaticLinkMap = make(map[string]string)
		}
		for _, link := range cfg.Proxy.StaticLink {
			if link.SrcPath == "" || link.DstPath == "" {
				continue
			}
			o.StaticLinkMap[link.SrcPath] = link.DstPath
		}

		if o.PrefixLinkMap == nil {
			o.PrefixLinkMap = make(map[string]string)
		}
		for _, link := range cfg.Proxy.PrefixLink {
			if link.SrcPrefix == "" || link.DstPrefix == "" {
				continue
			}
			o.PrefixLinkMap[link.SrcPrefix] = link.DstPrefix
		}
	}), nil
}

// failOption defers a configuration error to the moment options are
// applied, so NewEngine panics with it.
func failOption(name string, err error) Option {
	return OptionFunc(func(*Options) {
		panic(fmt.Errorf("proxy.%s: %w", name, err))
	})
}

// WithConfig applies the proxy section of a gateway.yaml document. Links
// with an empty side are skipped.
func WithConfig(yamlBytes []byte) Option {
	opt, err := optionFromConfigBytes(yamlBytes)
	if err != nil {
		return failOption("WithConfig", err)
	}
	return opt
}

func WithConfigFile(path string) Option {
	b, err := os.ReadFile(path)
	if err != nil {
		return failOption("WithConfigFile", err)
	}
	return WithConfig(b)
}

// EnvPrefix prefixes every environment variable read by WithEnv.
const EnvPrefix = "GATEWAY"

// WithEnv applies GATEWAY_DEBUG and GATEWAY_LOG_LEVEL when they are set.
// The environment is read when the option is applied.
func WithEnv() Option {
	return OptionFunc(func(o *Options) {
		v := viper.New()
		v.SetEnvPrefix(EnvPrefix)
		v.AutomaticEnv()

		if v.IsSet("debug") {
			o.DebugMode = v.GetBool("debug")
		}
		if v.IsSet("log_level") {
			o.LogLevel = v.GetString("log_level")
		}
	})
}
