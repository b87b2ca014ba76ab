package config

import zxcvbn "github.com/ccojocar/zxcvbn-go"

const weakTokenScoreThreshold = 3

// IsWeakToken reports whether the admin token is weak enough to warn about.
// An empty token means auth is disabled, which is its own loud warning, so
// it is not treated as weak here.
func IsWeakToken(token string) bool {
	if token == "" {
		return false
	}
	result := zxcvbn.PasswordStrength(token, nil)
	return result.Score < weakTokenScoreThreshold
}
