package config

import "github.com/m-mizutani/goerr/v2"

// Sentinel errors for configuration validation
var (
	ErrInvalidConfig  = goerr.New("invalid configuration")
	ErrMissingSetting = goerr.New("required setting is missing")
	ErrPolicyNotFound = goerr.New("policy file not found")
)

// Context keys for error values
const (
	PolicyPathKey = "policy_path"
	FlagKey       = "flag"
)
