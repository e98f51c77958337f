// Package cfg handles command-line and environment configuration.
package cfg

import "github.com/spf13/viper"

// GetString retrieves a string configuration value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt retrieves an int configuration value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool retrieves a bool configuration value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}
