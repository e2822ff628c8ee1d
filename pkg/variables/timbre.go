package variables

import (
	"log"
	"os"
)

const (
	HTTP_PORT_DEFAULT = "10000"
	HTTP_PORT_NAME    = "HTTP_PORT"

	LOG_LEVEL_DEFAULT = "info"
	LOG_LEVEL_NAME    = "LOG_LEVEL"

	VAPID_PUBLIC_KEY_NAME  = "VAPID_PUBLIC_KEY"
	VAPID_PRIVATE_KEY_NAME = "VAPID_PRIVATE_KEY"

	VAPID_SUBJECT_DEFAULT = "mailto:admin@localhost"
	VAPID_SUBJECT_NAME    = "VAPID_SUBJECT"
)

func Env(variableName, defaultValue string) string {
	if variable := os.Getenv(variableName); variable != "" {
		log.Printf("[%s]: %s", variableName, variable)
		return variable
	}
	log.Printf("[%s_DEFAULT]: %s", variableName, defaultValue)
	return defaultValue
}

// EnvSecret reads a credential without echoing its value into the logs.
func EnvSecret(variableName string) string {
	if variable := os.Getenv(variableName); variable != "" {
		log.Printf("[%s]: set", variableName)
		return variable
	}
	log.Printf("[%s]: unset", variableName)
	return ""
}
