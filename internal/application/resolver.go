package application

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/vishnuvardhanreddy8653/smart-home/internal/domain"
)

// commandPattern is the fast-path grammar:
//
//	(turn|switch) (on|off) [the] [qualifier] <device-phrase>
//
// The qualifier word, when present, becomes the intent's location
// ("turn on the kitchen light" -> device "light", location "kitchen").
var commandPattern = regexp.MustCompile(`(turn|switch)\s+(on|off)\s+(?:the\s+)?(?:(\w+)\s+)?(light|fan|relay|tv|fridge|refrigerator|home theater|hometheater|ac|heater|all|everything|number \d+|\d+)`)

var digitPattern = regexp.MustCompile(`\d+`)

var affirmations = map[string]bool{
	"yes":     true,
	"yeah":    true,
	"sure":    true,
	"please":  true,
	"confirm": true,
}

var negations = map[string]bool{
	"no":     true,
	"nah":    true,
	"cancel": true,
}

const apologyText = "I'm sorry, I couldn't process that command."

// Resolver turns raw command text into an Intent: deterministic pattern
// matching first, escalation to the fallback oracle only when the grammar
// finds no match.
type Resolver struct {
	fallback FallbackResolver
	logger   *slog.Logger
}

func NewResolver(fallback FallbackResolver, logger *slog.Logger) *Resolver {
	return &Resolver{
		fallback: fallback,
		logger:   logger,
	}
}

// Resolve never fails past its boundary: every outcome, including oracle
// failures, is expressed as an Intent. The session is mutated when the
// command opens or settles a pending offer.
func (r *Resolver) Resolve(ctx context.Context, text string, sess *Session) domain.Intent {
	text = strings.ToLower(strings.TrimSpace(text))

	if offer, ok := sess.Offer(); ok {
		switch {
		case affirmations[text]:
			sess.Clear()
			// Confirmed: resolve the held command inline. Held commands never
			// carry their own offer, so a single substitution is enough and
			// no recursion is needed.
			text = offer
		case negations[text]:
			sess.Clear()
			return domain.Intent{
				Action:       domain.ActionNone,
				ResponseText: "Okay, leaving it off.",
			}
		}
	}

	if intent, ok := r.fastPath(text, sess); ok {
		r.logger.Debug("fast path match",
			"action", intent.Action,
			"device", intent.DeviceType,
		)
		return intent
	}

	r.logger.Debug("no grammar match, escalating to oracle", "text", text)
	return r.slowPath(ctx, text)
}

func (r *Resolver) fastPath(text string, sess *Session) (domain.Intent, bool) {
	m := commandPattern.FindStringSubmatch(text)
	if m == nil {
		return domain.Intent{}, false
	}

	actionWord := m[2]
	location := m[3]
	if location == "" {
		location = "unknown"
	}
	phrase := m[4]

	// "number 3" and bare digits map through the fixed digit table.
	if digit := digitPattern.FindString(phrase); digit != "" {
		if d, ok := domain.DeviceForDigit(digit); ok {
			phrase = string(d)
		}
	}

	action := domain.ActionTurnOn
	if actionWord == "off" {
		action = domain.ActionTurnOff
	}

	if phrase == "all" || phrase == "everything" {
		return domain.Intent{
			Action:       action,
			DeviceType:   string(domain.DeviceTypeAll),
			Location:     "all",
			ResponseText: fmt.Sprintf("OK, turning %s everything.", actionWord),
		}, true
	}

	device := phrase
	if d, ok := domain.NormalizeDevice(phrase); ok {
		device = string(d)
	}

	responseText := fmt.Sprintf("OK, turning %s the %s.", actionWord, device)

	// Turning on the TV prompts a follow-up offer for the home theater.
	if device == string(domain.DeviceTypeTV) && action == domain.ActionTurnOn {
		sess.SetOffer("turn on hometheater")
		responseText = "TV is ON. Shall I turn on the Home Theater as well?"
	}

	return domain.Intent{
		Action:       action,
		DeviceType:   device,
		Location:     location,
		ResponseText: responseText,
	}, true
}

func (r *Resolver) slowPath(ctx context.Context, text string) domain.Intent {
	intent, err := r.fallback.Resolve(ctx, text)
	if err != nil {
		r.logger.Warn("fallback resolver failed", "error", err)
		return domain.Intent{
			Action:       domain.ActionError,
			ResponseText: apologyText,
		}
	}
	return intent
}
