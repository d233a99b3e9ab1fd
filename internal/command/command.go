// Package command parses chat moderation commands from raw message text.
package command

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Kind identifies which moderation command a message invokes.
type Kind int

const (
	KindNone Kind = iota
	KindMute
	KindUnmute
	KindBan
	KindUnban
	KindInfo
)

const (
	DefaultDurationToken = "10m"
	DefaultDuration      = 10 * time.Minute
	DefaultReason        = "reason not provided"
)

// Invocation is one parsed command, scoped to a single message event.
type Invocation struct {
	Kind     Kind
	TargetID string
	Duration string
	Reason   string
}

var (
	durationRe = regexp.MustCompile(`^\d+[smhdw]$`)
	numericRe  = regexp.MustCompile(`\d+`)
)

var keywords = map[string]Kind{
	"km":  KindMute,
	"kum": KindUnmute,
	"kb":  KindBan,
	"kub": KindUnban,
	"ki":  KindInfo,
}

// Parse splits the message on whitespace and matches the first token,
// lower-cased, against the known keywords. Anything else yields KindNone so
// the bot stays silent on ordinary conversation.
//
// mentionIDs are the IDs of explicitly mentioned users, in message order; the
// first one is the target. Only the unban path falls back to extracting a
// numeric ID from the first argument, since banned users cannot be mentioned
// as members.
func Parse(content string, mentionIDs []string) Invocation {
	fields := strings.Fields(strings.TrimSpace(content))
	if len(fields) == 0 {
		return Invocation{}
	}

	kind, ok := keywords[strings.ToLower(fields[0])]
	if !ok {
		return Invocation{}
	}

	inv := Invocation{Kind: kind}
	if len(mentionIDs) > 0 {
		inv.TargetID = mentionIDs[0]
	}

	switch kind {
	case KindMute:
		inv.Duration = DefaultDurationToken
		inv.Reason = DefaultReason
		if len(fields) > 2 {
			if durationRe.MatchString(fields[2]) {
				inv.Duration = fields[2]
				if rest := strings.Join(fields[3:], " "); rest != "" {
					inv.Reason = rest
				}
			} else {
				// A token like "30mm" is not a duration; it starts the reason.
				inv.Reason = strings.Join(fields[2:], " ")
			}
		}
	case KindBan:
		inv.Reason = DefaultReason
		if len(fields) > 2 {
			inv.Reason = strings.Join(fields[2:], " ")
		}
	case KindUnban:
		if inv.TargetID == "" && len(fields) > 1 {
			inv.TargetID = numericRe.FindString(fields[1])
		}
	}

	return inv
}

// ParseDuration converts a token such as "10m" or "2d" to a duration.
// Anything missing or malformed falls back to ten minutes; upper bounds are
// left to the Discord API.
func ParseDuration(token string) time.Duration {
	if len(token) < 2 {
		return DefaultDuration
	}
	value, err := strconv.Atoi(token[:len(token)-1])
	if err != nil || value < 0 {
		return DefaultDuration
	}

	var unit time.Duration
	switch token[len(token)-1] {
	case 's':
		unit = time.Second
	case 'm':
		unit = time.Minute
	case 'h':
		unit = time.Hour
	case 'd':
		unit = 24 * time.Hour
	case 'w':
		unit = 7 * 24 * time.Hour
	default:
		return DefaultDuration
	}

	// Clamp rather than overflow into a negative duration; the API rejects
	// the clamped value as out of range.
	if int64(value) > math.MaxInt64/int64(unit) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(value) * unit
}
