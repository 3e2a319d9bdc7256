// conf/defaults.go default values for settings
package conf

import (
	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "Carplate-Go")

	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.port", "8080")

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "carplate.db")

	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "carplate")
	viper.SetDefault("output.mysql.password", "secret")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")
	viper.SetDefault("output.mysql.database", "carplate")

	viper.SetDefault("images.debug", false)
	viper.SetDefault("images.cachedir", "images/")
	viper.SetDefault("images.defaultimage", "404.jpg")
	viper.SetDefault("images.provider.name", "openverse")
	viper.SetDefault("images.provider.endpoint", "https://api.openverse.org/v1/images/")
	viper.SetDefault("images.provider.ratelimit", 2.0)
	viper.SetDefault("images.provider.size", "large")
	viper.SetDefault("images.provider.color", "orange")
	viper.SetDefault("images.provider.licenses", "commercial,modification")
	viper.SetDefault("images.provider.category", "photograph")

	viper.SetDefault("jobqueue.maxjobs", 100)
	viper.SetDefault("jobqueue.interval", 1)
}
