package font

import "fmt"

// ConfigurationError means the deployment lacks something a font origin
// needs, such as the directory API credential.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return "font configuration error: " + e.Message
}

type UnknownWeightError struct {
	Token string
}

func (e *UnknownWeightError) Error() string {
	return fmt.Sprintf("unknown font weight %q", e.Token)
}

// DecodeError is returned for font payloads that are neither SFNT nor WOFF.
type DecodeError struct {
	Source string
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("font decode %s: %s", e.Source, e.Reason)
}
