package copilot

import (
	"fmt"
	"strconv"
	"strings"

	"lrp-copilot/internal/simulation"
)

// QueryFromArgs coerces loosely typed arguments, as they arrive from tool
// calls and JSON bodies, into a query. A missing trial count is left at zero
// so the service default applies.
func QueryFromArgs(args map[string]any) Query {
	q := Query{
		Request:     simulation.RequestFromArgs(args),
		Prompt:      argString(args["prompt"]),
		WorkspaceID: argString(args["workspace_id"]),
		NoShocks:    argBool(args["no_shocks"]),
	}
	if argString(args["trials"]) == "" {
		q.Trials = 0
	}
	if argString(args["platform_cap"]) != "" {
		c := simulation.Num(args["platform_cap"])
		q.PlatformCap = &c
	}
	return q
}

func argString(v any) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprintf("%v", v))
}

func argBool(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(val))
		return b
	default:
		return simulation.Num(v) != 0
	}
}
