package agentloop

import "regexp"

// RouteMatch is a deterministic-router hit: a tool to call directly,
// skipping the LLM entirely, plus its arguments.
type RouteMatch struct {
	Tool string
	Args map[string]interface{}
}

type routeRule struct {
	pattern *regexp.Regexp
	tool    string
	args    func(text string, groups []string) map[string]interface{}
}

var routeRules = []routeRule{
	{
		pattern: regexp.MustCompile(`(?i)\bwhat(?:'s| is)?\s+(?:the\s+)?(?:time|date)\b`),
		tool:    "current_datetime",
		args:    func(string, []string) map[string]interface{} { return map[string]interface{}{} },
	},
	{
		pattern: regexp.MustCompile(`(?i)\bwallet\s+address\b`),
		tool:    "wallet_address",
		args:    func(string, []string) map[string]interface{} { return map[string]interface{}{} },
	},
	{
		pattern: regexp.MustCompile(`(?i)\bwallet\s+balance\b|\bhow much (?:money|crypto|eth|btc)\b`),
		tool:    "wallet_balance",
		args:    func(string, []string) map[string]interface{} { return map[string]interface{}{} },
	},
	{
		pattern: regexp.MustCompile(`(?i)\bremind me\b|\bschedule a reminder\b|\bset a reminder\b`),
		tool:    "scheduler_add_reminder",
		args:    func(text string, _ []string) map[string]interface{} { return map[string]interface{}{"text": text} },
	},
	{
		pattern: regexp.MustCompile(`(?i)\bpost (?:this |that )?(?:to|on) (?:twitter|x|the feed)\b`),
		tool:    "social_post",
		args:    func(text string, _ []string) map[string]interface{} { return map[string]interface{}{"text": text} },
	},
}

// routeIntent matches userText against the fixed high-confidence intent
// patterns from step 2: date/time, wallet address, wallet balance,
// scheduler verbs, social-network verbs. The first match wins.
func routeIntent(userText string) (RouteMatch, bool) {
	for _, rule := range routeRules {
		m := rule.pattern.FindStringSubmatch(userText)
		if m == nil {
			continue
		}
		return RouteMatch{Tool: rule.tool, Args: rule.args(userText, m)}, true
	}
	return RouteMatch{}, false
}

var walletIntentPattern = regexp.MustCompile(`(?i)\bwallet\s+(address|balance)\b`)
var realtimeIntentPattern = regexp.MustCompile(`(?i)\b(current|latest|right now|today'?s?|this week'?s?|live)\b.*\b(news|price|weather|score|event)\b|\bwhat'?s happening\b`)
var planSignalPattern = regexp.MustCompile(`(?i)\bplan\b|\bstep[- ]by[- ]step\b|\bbreak (?:this |it )?down\b|\bmulti-?step\b`)

func mentionsWalletIntent(userText string) bool { return walletIntentPattern.MatchString(userText) }
func mentionsRealtimeIntent(userText string) bool {
	return realtimeIntentPattern.MatchString(userText)
}
func mentionsPlanSignal(userText string) bool { return planSignalPattern.MatchString(userText) }
