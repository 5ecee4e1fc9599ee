package config

import "github.com/spf13/viper"

var defaults = map[string]any{
	"environment":   "dev",
	"host":          "0.0.0.0",
	"port":          8080,
	"assets_dir":    "assets",
	"max_upload_mb": 10,

	"model.path":         "model/labu_model.tflite",
	"model.label_map":    "model/label_map.json",
	"model.runtime":      "auto",
	"model.cache":        false,
	"model.num_threads":  0,
	"model.onnx_library": "",

	"classifier.threshold": 0.98,

	"preprocess.size":  224,
	"preprocess.alpha": 1.2,
	"preprocess.beta":  10.0,

	"preprocess.max_pixels": 178956970,

	"catalog.file": "",

	"history.enabled": false,
	"db.driver":       DriverSQLite,
	"db.dsn":          "file:./data/ripeness.db?cache=shared",

	"storage.type":      StorageLocal,
	"storage.local_dir": "data/uploads",

	"s3.folder":        "",
	"s3.region_name":   "auto",
	"s3.bucket_name":   "",
	"s3.access_key":    "",
	"s3.secret_key":    "",
	"s3.endpoint_url":  "",
	"s3.model_key":     "model/labu_model.tflite",
	"s3.label_map_key": "model/label_map.json",
}

// SetDefaults registers every known key so environment variables can
// override keys that no config file mentions.
func SetDefaults(v *viper.Viper) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}
