// conf/defaults.go default values for settings
package conf

import (
	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "fieldlog")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "logs/fieldlog.log")
	viper.SetDefault("main.log.rotation", RotationDaily)
	viper.SetDefault("main.log.maxsize", 1048576)

	viper.SetDefault("site.title", "Field Log")
	viper.SetDefault("site.description", "A backyard biodiversity journal")
	viper.SetDefault("site.baseurl", "")
	viper.SetDefault("site.about", "")

	viper.SetDefault("location.latitude", 0.000)
	viper.SetDefault("location.longitude", 0.000)
	viper.SetDefault("location.timezone", "UTC")

	viper.SetDefault("journal.datadir", "data")
	viper.SetDefault("journal.stagingdir", "staging")
	viper.SetDefault("journal.postsdir", "posts")
	viper.SetDefault("journal.staticdir", "static")
	viper.SetDefault("journal.imagesdir", "images")
	viper.SetDefault("journal.outputdir", "site")

	viper.SetDefault("categories", []string{
		"insect", "arachnid", "plant", "fungus", "mollusk", "other",
	})

	viper.SetDefault("seasons", map[string][]int{
		"winter": {12, 1, 2},
		"spring": {3, 4, 5},
		"summer": {6, 7, 8},
		"autumn": {9, 10, 11},
	})

	viper.SetDefault("weather.provider", "openmeteo")
	viper.SetDefault("weather.debug", false)
	viper.SetDefault("weather.openmeteo.forecastendpoint", "https://api.open-meteo.com/v1/forecast")
	viper.SetDefault("weather.openmeteo.archiveendpoint", "https://archive-api.open-meteo.com/v1/archive")
	viper.SetDefault("weather.openmeteo.timeout", 15)

	viper.SetDefault("taxonomy.enabled", true)
	viper.SetDefault("taxonomy.endpoint", "https://api.gbif.org/v1/species/match")
	viper.SetDefault("taxonomy.cachefile", "taxonomy.json")
	viper.SetDefault("taxonomy.ratelimitms", 300)
	viper.SetDefault("taxonomy.timeout", 10)

	viper.SetDefault("imaging.thumbsize", 300)
	viper.SetDefault("imaging.thumbquality", 90)
	viper.SetDefault("imaging.websize", 1200)
	viper.SetDefault("imaging.webquality", 92)
	viper.SetDefault("imaging.fullquality", 95)
	viper.SetDefault("imaging.maxusagepercent", 95.0)

	viper.SetDefault("feed.maxsightings", 20)
	viper.SetDefault("feed.maxposts", 20)

	viper.SetDefault("deploy.target", "")
	viper.SetDefault("deploy.debug", false)
	viper.SetDefault("deploy.ftp.port", 21)
	viper.SetDefault("deploy.ftp.timeout", 30)
	viper.SetDefault("deploy.sftp.port", 22)

	viper.SetDefault("notify.enabled", false)
	viper.SetDefault("notify.urls", []string{})

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.dsn", "")

	viper.SetDefault("serve.port", 8080)
	viper.SetDefault("serve.metrics", false)
}
