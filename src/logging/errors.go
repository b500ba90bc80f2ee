package logging

import (
	"errors"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// IsRateLimit reports whether err came from a Discord rate limit.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Response != nil && rest.Response.StatusCode == 429 {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "rate_limit") || strings.Contains(msg, "429")
}
