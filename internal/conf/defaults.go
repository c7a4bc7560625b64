// conf/defaults.go default values for settings
package conf

import "github.com/spf13/viper"

// setDefaultConfig sets default values for every configuration parameter
// viper will unmarshal into Settings, so a freshly-created config file (or
// one missing a section entirely) still yields a working process.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "priconne-watch")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "logs/app.log")
	viper.SetDefault("main.log.rotation", string(RotationDaily))
	viper.SetDefault("main.log.maxsize", 10*1024*1024)

	viper.SetDefault("client.user_agent", "priconne-watch/1.0")

	viper.SetDefault("mongo.database", "priconne")

	viper.SetDefault("telegraph.short_name", "priconne-watch")

	viper.SetDefault("fetch.strategy.base.fuse_limit", 10)
}
