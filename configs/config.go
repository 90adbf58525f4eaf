package config

import (
	"os"
	"strconv"
	"strings"
)

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
}

type Config struct {
	OpenAIAPIKey         string
	InstagramUsername    string
	InstagramPassword    string
	InstagramEnabled     bool
	InstagramSessionFile string
	Host                 string
	Port                 string
	SecretKey            string
	ImagesDir            string
	PostgresURI          string
	DefaultHashtags      []string
	R2                   R2
}

func LoadConfig() *Config {
	return &Config{
		OpenAIAPIKey:         getEnv("OPENAI_API_KEY", ""),
		InstagramUsername:    getEnv("INSTAGRAM_USERNAME", ""),
		InstagramPassword:    getEnv("INSTAGRAM_PASSWORD", ""),
		InstagramEnabled:     getEnvBool("INSTAGRAM_ENABLED", true),
		InstagramSessionFile: getEnv("INSTAGRAM_SESSION_FILE", "instagram_session.json"),
		Host:                 getEnv("HOST", "0.0.0.0"),
		Port:                 getEnv("PORT", "8000"),
		SecretKey:            getEnv("SECRET_KEY", "change-me-in-production"),
		ImagesDir:            getEnv("IMAGES_DIR", "./images"),
		PostgresURI:          getEnv("POSTGRES_URI", ""),
		DefaultHashtags:      getEnvList("DEFAULT_HASHTAGS", "#chatgptdiet,#dietlog,#pfcbalance,#mealrecord"),
		R2: R2{
			AccountID:  getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:  getEnv("R2_ACCESS_KEY", ""),
			SecretKey:  getEnv("R2_SECRET_KEY", ""),
			BucketName: getEnv("R2_BUCKET_NAME", ""),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvList(key, defaultValue string) []string {
	value := os.Getenv(key)
	if value == "" {
		value = defaultValue
	}

	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
