package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/aura-studio/gateway/httpserver"
	"github.com/aura-studio/gateway/proxy"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// GATEWAY_MODE=local serves over HTTP instead of the Lambda runtime.
const modeLocal = "local"

func main() {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(proxy.EnvPrefix)
	v.AutomaticEnv()
	v.SetDefault("mode", "lambda")

	opts := []proxy.Option{}
	httpOpts := []httpserver.Option{}
	if p, err := proxy.FindDefaultConfigFile(); err == nil {
		opts = append(opts, proxy.WithConfigFile(p))
		httpOpts = append(httpOpts, httpserver.WithConfigFile(p))
	}
	opts = append(opts, proxy.WithEnv())
	if addr := v.GetString("address"); addr != "" {
		httpOpts = append(httpOpts, httpserver.WithAddress(addr))
	}

	app := proxy.HTTPApplication(newRouter())

	if v.GetString("mode") != modeLocal {
		proxy.Serve(app, opts...)
		return
	}

	e := proxy.NewEngine(app, opts...)
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		if err := httpserver.Close(); err != nil {
			e.Logger().WithError(err).Error("shutdown")
		}
	}()

	e.Logger().WithField("mode", modeLocal).Info("gateway started")
	if err := httpserver.Serve(e, httpOpts...); err != nil {
		logrus.Fatal(err)
	}
}
