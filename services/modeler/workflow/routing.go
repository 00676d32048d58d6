// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package workflow

import (
	"strings"

	"github.com/AleutianAI/AleutianModeler/services/modeler/intent"
)

// Route is a routing decision.
type Route string

const (
	RouteValid       Route = "valid"
	RouteUnclear     Route = "unclear"
	RouteUnsupported Route = "unsupported"
	RouteError       Route = "error"

	RouteApply  Route = "apply"
	RouteRevise Route = "revise"
	RouteAbort  Route = "abort"
)

// RouteIntent routes on the cycle intents. An error intent wins over an
// unsupported one, which wins over any actionable tag.
func RouteIntent(c *Cycle) Route {
	valid := false
	unsupported := false
	for _, in := range c.Intents {
		switch kind := in.Kind.Normalize(); {
		case kind == intent.Error:
			return RouteError
		case kind == intent.Unsupported:
			unsupported = true
		case kind.IsActionable():
			valid = true
		}
	}
	switch {
	case unsupported:
		return RouteUnsupported
	case valid:
		return RouteValid
	}
	return RouteUnclear
}

// RouteApproval routes on the cycle approval. Anything unrecognized aborts.
func RouteApproval(c *Cycle) Route {
	switch strings.ToLower(strings.TrimSpace(string(c.Approval))) {
	case "apply", "yes", "y":
		return RouteApply
	case "revise", "change":
		return RouteRevise
	}
	return RouteAbort
}

// intentTarget maps an intent route to the next state. onValid is the
// state a valid request continues to.
func intentTarget(r Route, onValid State) State {
	switch r {
	case RouteError:
		return StateHandleError
	case RouteUnsupported:
		return StateHandleUnsupported
	case RouteValid:
		return onValid
	}
	return StateHandleUnclear
}

func approvalTarget(r Route) State {
	switch r {
	case RouteApply:
		return StateApplyChanges
	case RouteRevise:
		return StateReviseIntent
	}
	return StateAbort
}
